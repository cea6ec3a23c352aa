package validator

import (
	"fmt"
	"strings"

	"github.com/hakenworks/keiyaku/pkg/domain"
)

// fieldKind selects the presence/shape rule applied to a catalog entry.
type fieldKind int

const (
	kindText fieldKind = iota
	kindTextOptional
	kindList
	kindContact
	kindTime
	kindInteger
	kindDecimal
)

// catalogEntry is one row of the statutory field table.
type catalogEntry struct {
	field     string
	label     string
	kind      fieldKind
	minLength int
	get       func(*domain.Contract) any
}

// requiredFields is the fixed catalog of the 16 field categories the
// Worker Dispatch Act Art. 26 mandates on every individual contract.
var requiredFields = []catalogEntry{
	{"work_content", "work description", kindText, 5, func(c *domain.Contract) any { return c.WorkContent }},
	{"responsibility_scope", "scope of responsibility", kindText, 2, func(c *domain.Contract) any { return c.ResponsibilityScope }},
	{"worksite_name", "worksite name", kindText, 2, func(c *domain.Contract) any { return c.WorksiteName }},
	{"worksite_address", "worksite address", kindText, 5, func(c *domain.Contract) any { return c.WorksiteAddress }},
	{"supervisor_name", "supervisor", kindText, 2, func(c *domain.Contract) any { return c.SupervisorName }},
	{"work_days", "work calendar", kindList, 1, func(c *domain.Contract) any { return c.WorkDays }},
	{"work_start_time", "shift start time", kindTime, 0, func(c *domain.Contract) any { return c.WorkStartTime }},
	{"work_end_time", "shift end time", kindTime, 0, func(c *domain.Contract) any { return c.WorkEndTime }},
	{"break_minutes", "break duration", kindInteger, 0, func(c *domain.Contract) any { return c.BreakMinutes }},
	{"safety_measures", "safety and hygiene measures", kindTextOptional, 0, func(c *domain.Contract) any { return c.SafetyMeasures }},
	{"agency_complaint_contact", "agency complaint contact", kindContact, 0, func(c *domain.Contract) any { return c.AgencyComplaint }},
	{"client_complaint_contact", "client complaint contact", kindContact, 0, func(c *domain.Contract) any { return c.ClientComplaint }},
	{"termination_measures", "termination measures", kindTextOptional, 0, func(c *domain.Contract) any { return c.TerminationMeasures }},
	{"agency_manager", "agency responsible manager", kindContact, 0, func(c *domain.Contract) any { return c.AgencyManager }},
	{"client_manager", "client responsible manager", kindContact, 0, func(c *domain.Contract) any { return c.ClientManager }},
	{"hourly_rate", "dispatch billing rate", kindDecimal, 0, func(c *domain.Contract) any { return c.HourlyRate }},
}

// checkRequiredFields runs the generic dispatch loop over the catalog.
func checkRequiredFields(c *domain.Contract, res *Result) {
	for _, entry := range requiredFields {
		res.FieldsChecked++
		if checkEntry(entry, entry.get(c), res) {
			res.FieldsValid++
		}
	}
}

// checkEntry applies one catalog rule; it returns true when the field
// counts as valid.
func checkEntry(e catalogEntry, value any, res *Result) bool {
	switch e.kind {
	case kindText:
		s, _ := value.(string)
		s = strings.TrimSpace(s)
		if s == "" {
			res.addError(missing(e))
			return false
		}
		if e.minLength > 0 && len([]rune(s)) < e.minLength {
			res.addWarning(Issue{
				Field:   e.field,
				Code:    CodeFieldTooShort,
				Message: fmt.Sprintf("%s is too short (at least %d characters recommended)", e.label, e.minLength),
				Label:   e.label,
				Value:   s,
			})
			return false
		}
		return true

	case kindTextOptional:
		s, _ := value.(string)
		if strings.TrimSpace(s) == "" {
			res.addWarning(Issue{
				Field:   e.field,
				Code:    CodeOptionalFieldMissing,
				Message: fmt.Sprintf("%s should be documented", e.label),
				Label:   e.label,
			})
			return false
		}
		return true

	case kindList:
		list, _ := value.([]string)
		if len(list) < e.minLength {
			res.addError(missing(e))
			return false
		}
		return true

	case kindContact:
		block, _ := value.(*domain.ContactBlock)
		if block == nil {
			res.addError(missing(e))
			return false
		}
		if block.Incomplete() {
			res.addWarning(Issue{
				Field:      e.field,
				Code:       CodeIncompleteContact,
				Message:    fmt.Sprintf("%s is incomplete", e.label),
				Label:      e.label,
				Suggestion: "enter the contact's name and department",
			})
			return false
		}
		return true

	case kindTime:
		t, _ := value.(*domain.TimeOfDay)
		if t == nil {
			res.addError(missing(e))
			return false
		}
		if !t.Valid() {
			res.addError(Issue{
				Field:   e.field,
				Code:    CodeInvalidValue,
				Message: fmt.Sprintf("%s is not a valid time of day", e.label),
				Label:   e.label,
				Value:   t.String(),
			})
			return false
		}
		return true

	case kindInteger:
		n, _ := value.(*int)
		if n == nil {
			res.addError(missing(e))
			return false
		}
		if *n < 0 {
			res.addError(Issue{
				Field:   e.field,
				Code:    CodeInvalidValue,
				Message: fmt.Sprintf("%s must be a non-negative number", e.label),
				Label:   e.label,
				Value:   fmt.Sprintf("%d", *n),
			})
			return false
		}
		return true

	case kindDecimal:
		f, _ := value.(*float64)
		if f == nil {
			res.addError(missing(e))
			return false
		}
		if *f <= 0 {
			res.addError(Issue{
				Field:   e.field,
				Code:    CodeInvalidValue,
				Message: fmt.Sprintf("%s must be a positive number", e.label),
				Label:   e.label,
				Value:   fmt.Sprintf("%g", *f),
			})
			return false
		}
		return true
	}
	return false
}

func missing(e catalogEntry) Issue {
	return Issue{
		Field:   e.field,
		Code:    CodeRequiredFieldMissing,
		Message: fmt.Sprintf("%s is required", e.label),
		Label:   e.label,
	}
}
