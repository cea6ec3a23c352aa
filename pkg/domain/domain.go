// Package domain contains the core business types shared by the
// validator, auditor, alert sweeper and reconciliation resolver.
//
// Contract, Worksite and Worker are owned by the external store; every
// report/result/alert produced from them is transient and recomputed on
// each call.
package domain

import (
	"time"
)

// ContactBlock is a structured person reference (responsible manager or
// complaint contact) embedded in a contract.
type ContactBlock struct {
	Name       string `json:"name"`
	Department string `json:"department"`
	Phone      string `json:"phone,omitempty"`
}

// Empty reports whether the block carries no usable information.
func (c *ContactBlock) Empty() bool {
	return c == nil || (c.Name == "" && c.Department == "" && c.Phone == "")
}

// Incomplete reports whether the block exists but lacks both a name and
// a department.
func (c *ContactBlock) Incomplete() bool {
	return c != nil && c.Name == "" && c.Department == ""
}

// Contract is a dispatch-labor contract (kobetsu keiyakusho) placing
// workers at a client worksite for a bounded period.
type Contract struct {
	ID             int64          `json:"id"`
	ContractNumber string         `json:"contract_number"`
	WorksiteID     int64          `json:"worksite_id"`
	Status         ContractStatus `json:"status"`

	// The 16 statutory field categories.
	WorkContent         string        `json:"work_content"`
	ResponsibilityScope string        `json:"responsibility_scope"`
	WorksiteName        string        `json:"worksite_name"`
	WorksiteAddress     string        `json:"worksite_address"`
	SupervisorName      string        `json:"supervisor_name"`
	WorkDays            []string      `json:"work_days"`
	WorkStartTime       *TimeOfDay    `json:"work_start_time"`
	WorkEndTime         *TimeOfDay    `json:"work_end_time"`
	BreakMinutes        *int          `json:"break_minutes"`
	SafetyMeasures      string        `json:"safety_measures"`
	AgencyComplaint     *ContactBlock `json:"agency_complaint_contact"`
	ClientComplaint     *ContactBlock `json:"client_complaint_contact"`
	TerminationMeasures string        `json:"termination_measures"`
	AgencyManager       *ContactBlock `json:"agency_manager"`
	ClientManager       *ContactBlock `json:"client_manager"`
	HourlyRate          *float64      `json:"hourly_rate"`

	OvertimeRate         *float64 `json:"overtime_rate"`
	OvertimeMaxHoursDay  *float64 `json:"overtime_max_hours_day"`
	OvertimeMaxHoursMon  *float64 `json:"overtime_max_hours_month"`
	NumberOfWorkers      int      `json:"number_of_workers"`
	SupervisorDepartment string   `json:"supervisor_department,omitempty"`

	DispatchStart *time.Time `json:"dispatch_start_date"`
	DispatchEnd   *time.Time `json:"dispatch_end_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DurationDays returns the dispatch period length in days, or -1 when
// either bound is missing.
func (c *Contract) DurationDays() int {
	if c.DispatchStart == nil || c.DispatchEnd == nil {
		return -1
	}
	return int(c.DispatchEnd.Sub(*c.DispatchStart).Hours() / 24)
}

// Covers reports whether the dispatch period contains the given day.
func (c *Contract) Covers(day time.Time) bool {
	if c.DispatchStart == nil || c.DispatchEnd == nil {
		return false
	}
	d := Day(day)
	return !d.Before(Day(*c.DispatchStart)) && !d.After(Day(*c.DispatchEnd))
}

// Worksite is a client location (factory/plant) receiving dispatched
// labor. The cutoff date is the legal ceiling after which the unit
// cannot keep using dispatched workers without rotation.
type Worksite struct {
	ID          int64  `json:"id"`
	WorksiteKey string `json:"worksite_key"` // natural key: company_plant
	CompanyName string `json:"company_name"`
	PlantName   string `json:"plant_name"`
	IsActive    bool   `json:"is_active"`

	CompanyAddress string `json:"company_address"`
	PlantAddress   string `json:"plant_address"`

	ClientResponsibleName       string `json:"client_responsible_name"`
	ClientResponsibleDepartment string `json:"client_responsible_department"`
	ClientComplaintName         string `json:"client_complaint_name"`
	AgencyResponsibleName       string `json:"agency_responsible_name"`
	AgencyComplaintName         string `json:"agency_complaint_name"`

	CutoffDate *time.Time `json:"cutoff_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName is the human label used in violations and alerts.
func (w *Worksite) DisplayName() string {
	if w.PlantName == "" {
		return w.CompanyName
	}
	return w.CompanyName + " " + w.PlantName
}

// Worker is a dispatched employee identified by a business worker
// number (the natural key used during reconciliation).
type Worker struct {
	ID           int64        `json:"id"`
	WorkerNumber string       `json:"worker_number"`
	Name         string       `json:"name"`
	NameKana     string       `json:"name_kana"`
	Status       WorkerStatus `json:"status"`

	CompanyName string   `json:"company_name"`
	Department  string   `json:"department"`
	LineName    string   `json:"line_name"`
	WorksiteID  int64    `json:"worksite_id,omitempty"`
	HourlyRate  *float64 `json:"hourly_rate"`
	BillingRate *float64 `json:"billing_rate"`

	Nationality    string     `json:"nationality,omitempty"`
	ResidencyType  string     `json:"residency_type,omitempty"` // visa classification
	DocumentExpiry *time.Time `json:"document_expiry,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Foreign reports whether the worker requires residency documentation.
func (w *Worker) Foreign() bool {
	switch w.Nationality {
	case "", "JP", "Japan", "Japanese":
		return false
	}
	return true
}

// TimeOfDay is a wall-clock time without a date, used for shift bounds.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Valid reports whether the value is a real wall-clock time.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

func (t TimeOfDay) String() string {
	return time.Date(0, 1, 1, t.Hour, t.Minute, 0, 0, time.UTC).Format("15:04")
}

// Day truncates a timestamp to a UTC calendar day so that date
// comparisons ignore the time component.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysUntil returns the whole days from today until target (negative
// when target is in the past).
func DaysUntil(today, target time.Time) int {
	return int(Day(target).Sub(Day(today)).Hours() / 24)
}
