// Package validator checks a single dispatch contract against the
// fixed statutory field catalog (Worker Dispatch Act Art. 26) plus
// period, overtime and rate rules.
//
// Validate is a pure function: malformed input never panics or returns
// an error, every problem becomes a structured entry on the result.
package validator

import (
	"fmt"

	"github.com/hakenworks/keiyaku/pkg/domain"
)

// Issue codes. Codes carrying a statutory citation are mapped by
// LegalReference.
const (
	CodeRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	CodeFieldTooShort        = "FIELD_TOO_SHORT"
	CodeOptionalFieldMissing = "OPTIONAL_FIELD_MISSING"
	CodeIncompleteContact    = "INCOMPLETE_CONTACT_INFO"
	CodeInvalidValue         = "INVALID_VALUE"
	CodeInvalidDateRange     = "INVALID_DATE_RANGE"
	CodeDurationExceeded     = "DURATION_EXCEEDS_LIMIT"
	CodeLongDuration         = "LONG_DURATION"
	CodeExceedsCutoffDate    = "EXCEEDS_CUTOFF_DATE"
	CodeWorksiteIncomplete   = "WORKSITE_INCOMPLETE"
	CodeWorkerNotFound       = "WORKER_NOT_FOUND"
	CodeWorkerResigned       = "WORKER_RESIGNED"
	CodeWorkerOverlap        = "WORKER_OVERLAP"
	CodeHighDailyOvertime    = "HIGH_DAILY_OVERTIME"
	CodeExceedsMonthlyLimit  = "EXCEEDS_MONTHLY_LIMIT"
	CodeLowOvertimeRate      = "LOW_OVERTIME_RATE"
	CodeLowHourlyRate        = "LOW_HOURLY_RATE"
)

// LegalReference returns the statute behind a code, or "" when the
// rule is business practice rather than law.
func LegalReference(code string) string {
	switch code {
	case CodeRequiredFieldMissing, CodeIncompleteContact, CodeWorksiteIncomplete:
		return "Worker Dispatch Act Art. 26"
	case CodeDurationExceeded, CodeExceedsCutoffDate:
		return "Worker Dispatch Act Art. 40-2"
	case CodeExceedsMonthlyLimit, CodeHighDailyOvertime:
		return "Labor Standards Act Art. 36 agreement"
	case CodeLowOvertimeRate:
		return "Labor Standards Act Art. 37"
	}
	return ""
}

// IssueSeverity distinguishes blocking errors from advisories.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// Issue is one structured validation finding.
type Issue struct {
	Field      string        `json:"field"`
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	Label      string        `json:"label"`
	Severity   IssueSeverity `json:"severity"`
	Value      string        `json:"value,omitempty"`
	Suggestion string        `json:"suggestion,omitempty"`
}

// Result is the outcome of validating one contract.
type Result struct {
	IsValid       bool    `json:"is_valid"`
	Errors        []Issue `json:"errors"`
	Warnings      []Issue `json:"warnings"`
	FieldsChecked int     `json:"fields_checked"`
	FieldsValid   int     `json:"fields_valid"`
	Score         int     `json:"compliance_score"`
}

func (r *Result) addError(i Issue) {
	i.Severity = SeverityError
	r.Errors = append(r.Errors, i)
}

func (r *Result) addWarning(i Issue) {
	i.Severity = SeverityWarning
	r.Warnings = append(r.Warnings, i)
}

// WorkerAssignment supplies per-worker context for availability checks.
// A nil Worker means the referenced worker number resolved to nothing.
type WorkerAssignment struct {
	Ref            string
	Worker         *domain.Worker
	OtherContracts []*domain.Contract // existing draft/active contracts of this worker
}

// Options carries the optional cross-entity context.
type Options struct {
	Worksite *domain.Worksite
	Workers  []WorkerAssignment
}

const (
	maxDurationDays    = 365 * 3
	longDurationDays   = 365
	dailyOvertimeCap   = 4.0
	monthlyOvertimeCap = 45.0
	overtimeMultiplier = 1.25
	minPlausibleHourly = 900.0
)

// Validate runs the full rule catalog over one contract.
func Validate(c *domain.Contract, opts Options) *Result {
	res := &Result{}
	if c == nil {
		res.addError(Issue{Field: "contract", Code: CodeRequiredFieldMissing, Message: "contract record is missing", Label: "contract"})
		res.IsValid = false
		return res
	}

	checkRequiredFields(c, res)
	checkDates(c, res)
	if opts.Worksite != nil {
		checkWorksite(c, opts.Worksite, res)
	}
	checkWorkers(c, opts.Workers, res)
	checkOvertime(c, res)
	checkRates(c, res)

	res.Score = score(res)
	res.IsValid = len(res.Errors) == 0
	return res
}

func checkDates(c *domain.Contract, res *Result) {
	if c.DispatchStart == nil {
		res.addError(Issue{Field: "dispatch_start_date", Code: CodeRequiredFieldMissing, Message: "dispatch start date is required", Label: "dispatch start"})
		return
	}
	if c.DispatchEnd == nil {
		res.addError(Issue{Field: "dispatch_end_date", Code: CodeRequiredFieldMissing, Message: "dispatch end date is required", Label: "dispatch end"})
		return
	}
	start := domain.Day(*c.DispatchStart)
	end := domain.Day(*c.DispatchEnd)
	if !end.After(start) {
		res.addError(Issue{
			Field:   "dispatch_end_date",
			Code:    CodeInvalidDateRange,
			Message: "dispatch end date must be after the start date",
			Label:   "dispatch period",
			Value:   fmt.Sprintf("%s -> %s", start.Format("2006-01-02"), end.Format("2006-01-02")),
		})
	}
	days := c.DurationDays()
	if days > maxDurationDays {
		res.addError(Issue{
			Field:   "dispatch_end_date",
			Code:    CodeDurationExceeded,
			Message: "dispatch period may not exceed 3 years",
			Label:   "dispatch period",
			Value:   fmt.Sprintf("%d days", days),
		})
	} else if days > longDurationDays {
		res.addWarning(Issue{
			Field:   "dispatch_end_date",
			Code:    CodeLongDuration,
			Message: fmt.Sprintf("dispatch period is %d days (about %d months)", days, days/30),
			Label:   "dispatch period",
		})
	}
}

func checkWorksite(c *domain.Contract, w *domain.Worksite, res *Result) {
	if w.ClientResponsibleName == "" {
		res.addWarning(Issue{
			Field:      "worksite",
			Code:       CodeWorksiteIncomplete,
			Message:    fmt.Sprintf("worksite %q has no client responsible person configured", w.DisplayName()),
			Label:      "worksite configuration",
			Suggestion: "update the worksite record",
		})
	}
	if w.CutoffDate != nil && c.DispatchEnd != nil {
		if domain.Day(*c.DispatchEnd).After(domain.Day(*w.CutoffDate)) {
			res.addError(Issue{
				Field:   "dispatch_end_date",
				Code:    CodeExceedsCutoffDate,
				Message: fmt.Sprintf("dispatch end date exceeds the worksite cutoff date (%s)", w.CutoffDate.Format("2006-01-02")),
				Label:   "cutoff date",
				Value:   fmt.Sprintf("end: %s, cutoff: %s", c.DispatchEnd.Format("2006-01-02"), w.CutoffDate.Format("2006-01-02")),
			})
		}
	}
}

func checkWorkers(c *domain.Contract, workers []WorkerAssignment, res *Result) {
	for _, wa := range workers {
		if wa.Worker == nil {
			res.addError(Issue{
				Field:   "worker_ids",
				Code:    CodeWorkerNotFound,
				Message: fmt.Sprintf("worker %q not found", wa.Ref),
				Label:   "worker",
				Value:   wa.Ref,
			})
			continue
		}
		if wa.Worker.Status == domain.WorkerResigned {
			res.addError(Issue{
				Field:   "worker_ids",
				Code:    CodeWorkerResigned,
				Message: fmt.Sprintf("worker %q has resigned", wa.Worker.Name),
				Label:   "worker status",
			})
			continue
		}
		if c.DispatchStart == nil || c.DispatchEnd == nil {
			continue
		}
		for _, other := range wa.OtherContracts {
			if other == nil || other.ID == c.ID {
				continue
			}
			if other.Status != domain.ContractActive && other.Status != domain.ContractDraft {
				continue
			}
			if other.DispatchStart == nil || other.DispatchEnd == nil {
				continue
			}
			if !domain.Day(*other.DispatchEnd).Before(domain.Day(*c.DispatchStart)) &&
				!domain.Day(*other.DispatchStart).After(domain.Day(*c.DispatchEnd)) {
				res.addWarning(Issue{
					Field:   "worker_ids",
					Code:    CodeWorkerOverlap,
					Message: fmt.Sprintf("worker %q has an overlapping contract (%s)", wa.Worker.Name, other.ContractNumber),
					Label:   "assignment overlap",
				})
				break
			}
		}
	}
}

func checkOvertime(c *domain.Contract, res *Result) {
	if c.OvertimeMaxHoursDay != nil && *c.OvertimeMaxHoursDay > dailyOvertimeCap {
		res.addWarning(Issue{
			Field:   "overtime_max_hours_day",
			Code:    CodeHighDailyOvertime,
			Message: fmt.Sprintf("daily overtime ceiling (%.1fh) exceeds the usual %.0fh limit", *c.OvertimeMaxHoursDay, dailyOvertimeCap),
			Label:   "daily overtime",
			Value:   fmt.Sprintf("%.1f", *c.OvertimeMaxHoursDay),
		})
	}
	if c.OvertimeMaxHoursMon != nil && *c.OvertimeMaxHoursMon > monthlyOvertimeCap {
		res.addError(Issue{
			Field:   "overtime_max_hours_month",
			Code:    CodeExceedsMonthlyLimit,
			Message: fmt.Sprintf("monthly overtime ceiling (%.1fh) exceeds the statutory %.0fh limit", *c.OvertimeMaxHoursMon, monthlyOvertimeCap),
			Label:   "monthly overtime",
			Value:   fmt.Sprintf("%.1f", *c.OvertimeMaxHoursMon),
		})
	}
}

func checkRates(c *domain.Contract, res *Result) {
	if c.HourlyRate != nil && c.OvertimeRate != nil && *c.HourlyRate > 0 {
		minOvertime := *c.HourlyRate * overtimeMultiplier
		if *c.OvertimeRate < minOvertime {
			res.addWarning(Issue{
				Field:      "overtime_rate",
				Code:       CodeLowOvertimeRate,
				Message:    fmt.Sprintf("overtime rate (%.0f) is below 1.25x the base rate", *c.OvertimeRate),
				Label:      "overtime rate",
				Suggestion: fmt.Sprintf("recommended: %.0f or more", minOvertime),
			})
		}
	}
	if c.HourlyRate != nil && *c.HourlyRate > 0 && *c.HourlyRate < minPlausibleHourly {
		res.addWarning(Issue{
			Field:   "hourly_rate",
			Code:    CodeLowHourlyRate,
			Message: fmt.Sprintf("hourly rate (%.0f) may be below minimum wage", *c.HourlyRate),
			Label:   "hourly rate",
		})
	}
}

// score implements clamp(100*valid/checked - 10*errors - 2*warnings, 0, 100).
func score(res *Result) int {
	if res.FieldsChecked == 0 {
		return 0
	}
	fieldScore := float64(res.FieldsValid) / float64(res.FieldsChecked) * 100
	s := fieldScore - float64(len(res.Errors))*10 - float64(len(res.Warnings))*2
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return int(s)
}
