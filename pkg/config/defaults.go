package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hakenworks/keiyaku/pkg/domain"
)

// ContactDefaults is a fallback contact block from the defaults
// profile.
type ContactDefaults struct {
	Name       string `yaml:"name" json:"name"`
	Department string `yaml:"department" json:"department"`
	Phone      string `yaml:"phone,omitempty" json:"phone,omitempty"`
}

// Defaults is the agency-side boilerplate applied to contracts that
// come in without it: the agency's own manager and complaint contact,
// standard shift bounds and the standard clause texts.
type Defaults struct {
	AgencyManager   ContactDefaults `yaml:"agency_manager" json:"agency_manager"`
	AgencyComplaint ContactDefaults `yaml:"agency_complaint_contact" json:"agency_complaint_contact"`

	WorkStartTime string `yaml:"work_start_time,omitempty" json:"work_start_time,omitempty"` // "08:30"
	WorkEndTime   string `yaml:"work_end_time,omitempty" json:"work_end_time,omitempty"`
	BreakMinutes  int    `yaml:"break_minutes,omitempty" json:"break_minutes,omitempty"`

	SafetyMeasures      string `yaml:"safety_measures,omitempty" json:"safety_measures,omitempty"`
	TerminationMeasures string `yaml:"termination_measures,omitempty" json:"termination_measures,omitempty"`
}

// LoadDefaults reads the defaults profile from a YAML file.
func LoadDefaults(path string) (*Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load defaults %q: %w", path, err)
	}
	var d Defaults
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse defaults %q: %w", path, err)
	}
	return &d, nil
}

// Apply fills the blanks of a contract from the defaults profile.
// Fields already carrying a value are never overwritten.
func (d *Defaults) Apply(c *domain.Contract) {
	if c == nil {
		return
	}
	if c.AgencyManager.Empty() && d.AgencyManager.Name != "" {
		c.AgencyManager = &domain.ContactBlock{
			Name:       d.AgencyManager.Name,
			Department: d.AgencyManager.Department,
			Phone:      d.AgencyManager.Phone,
		}
	}
	if c.AgencyComplaint.Empty() && d.AgencyComplaint.Name != "" {
		c.AgencyComplaint = &domain.ContactBlock{
			Name:       d.AgencyComplaint.Name,
			Department: d.AgencyComplaint.Department,
			Phone:      d.AgencyComplaint.Phone,
		}
	}
	if c.WorkStartTime == nil {
		if t, ok := parseTimeOfDay(d.WorkStartTime); ok {
			c.WorkStartTime = t
		}
	}
	if c.WorkEndTime == nil {
		if t, ok := parseTimeOfDay(d.WorkEndTime); ok {
			c.WorkEndTime = t
		}
	}
	if c.BreakMinutes == nil && d.BreakMinutes > 0 {
		v := d.BreakMinutes
		c.BreakMinutes = &v
	}
	if c.SafetyMeasures == "" {
		c.SafetyMeasures = d.SafetyMeasures
	}
	if c.TerminationMeasures == "" {
		c.TerminationMeasures = d.TerminationMeasures
	}
}

func parseTimeOfDay(s string) (*domain.TimeOfDay, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return nil, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return nil, false
	}
	t := domain.TimeOfDay{Hour: h, Minute: m}
	if !t.Valid() {
		return nil, false
	}
	return &t, true
}
