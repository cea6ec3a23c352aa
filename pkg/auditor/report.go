package auditor

import (
	"time"

	"github.com/hakenworks/keiyaku/pkg/domain"
)

// Violation is one compliance finding on a specific entity.
type Violation struct {
	ViolationID    string          `json:"violation_id"`
	Severity       domain.Severity `json:"severity"`
	Category       string          `json:"category"` // contract, worksite, worker
	EntityType     string          `json:"entity_type"`
	EntityID       int64           `json:"entity_id"`
	EntityName     string          `json:"entity_name"`
	ViolationType  string          `json:"violation_type"`
	Message        string          `json:"message"`
	LegalReference string          `json:"legal_reference,omitempty"`
	Remediation    string          `json:"remediation,omitempty"`
	Field          string          `json:"field,omitempty"`
	Value          string          `json:"value,omitempty"`
}

// CheckError records a phase that failed without stopping the audit.
type CheckError struct {
	Check   string `json:"check"`
	Message string `json:"message"`
}

// Report is the full compliance audit result. It is transient and
// recomputed on every call; re-auditing unchanged data yields an
// identical report modulo ReportID and GeneratedAt.
type Report struct {
	ReportID    string     `json:"report_id"`
	GeneratedAt time.Time  `json:"generated_at"`
	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
	Scope       string     `json:"scope"` // full, contracts

	TotalAudited int `json:"total_entities_audited"`
	Score        int `json:"compliance_score"`

	Violations []Violation  `json:"violations"`
	Advisories []Violation  `json:"advisories"`
	Errors     []CheckError `json:"check_errors,omitempty"`

	ContractsAudited   int `json:"contracts_audited"`
	ContractsCompliant int `json:"contracts_compliant"`
	WorksitesAudited   int `json:"worksites_audited"`
	WorksitesCompliant int `json:"worksites_compliant"`
	WorkersAudited     int `json:"workers_audited"`
}

// BySeverity counts violations per severity level.
func (r *Report) BySeverity() map[domain.Severity]int {
	out := map[domain.Severity]int{
		domain.SeverityCritical: 0,
		domain.SeverityHigh:     0,
		domain.SeverityMedium:   0,
		domain.SeverityLow:      0,
	}
	for _, v := range r.Violations {
		out[v.Severity]++
	}
	return out
}

// Summary is the cheap dashboard variant produced without a
// per-contract validation pass.
type Summary struct {
	QuickScore          int       `json:"quick_score"`
	ActiveContracts     int       `json:"active_contracts"`
	ExpiredButActive    int       `json:"expired_but_active"`
	IncompleteWorksites int       `json:"incomplete_worksites"`
	Compliant           bool      `json:"compliant"`
	GeneratedAt         time.Time `json:"generated_at"`
}
