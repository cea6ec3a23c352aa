package reconcile

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/width"

	"github.com/hakenworks/keiyaku/pkg/domain"
)

// normalize folds a raw source or stored value into comparable form:
// whitespace trimmed, full-width characters folded to half-width, and
// the source system's no-data markers collapsed to the empty string.
func normalize(s string) string {
	s = strings.TrimSpace(width.Fold.String(s))
	switch strings.ToLower(s) {
	case "", "0", "nan", "none":
		return ""
	}
	return s
}

// rate renders a numeric field for comparison. Zero means the source
// had no opinion.
func rate(v *float64) string {
	if v == nil || *v == 0 {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func day(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// workerField describes one reconciled worker attribute. recommended
// is the strategy surfaced to the operator for conflicts on the field;
// it is advisory and never applied on its own.
type workerField struct {
	name        string
	label       string
	severity    domain.Severity
	recommended domain.ConflictStrategy
	get         func(*domain.Worker) string
	set         func(dst, src *domain.Worker)
}

var workerFields = []workerField{
	{
		name: "name", label: "name", severity: domain.SeverityHigh,
		recommended: domain.StrategyNewestWins,
		get:         func(w *domain.Worker) string { return w.Name },
		set:         func(dst, src *domain.Worker) { dst.Name = src.Name },
	},
	{
		name: "name_kana", label: "name (kana)", severity: domain.SeverityMedium,
		recommended: domain.StrategyNewestWins,
		get:         func(w *domain.Worker) string { return w.NameKana },
		set:         func(dst, src *domain.Worker) { dst.NameKana = src.NameKana },
	},
	{
		name: "company_name", label: "company", severity: domain.SeverityHigh,
		recommended: domain.StrategyNewestWins,
		get:         func(w *domain.Worker) string { return w.CompanyName },
		set:         func(dst, src *domain.Worker) { dst.CompanyName = src.CompanyName },
	},
	{
		name: "department", label: "department", severity: domain.SeverityMedium,
		recommended: domain.StrategyNewestWins,
		get:         func(w *domain.Worker) string { return w.Department },
		set:         func(dst, src *domain.Worker) { dst.Department = src.Department },
	},
	{
		name: "line_name", label: "line", severity: domain.SeverityMedium,
		recommended: domain.StrategyNewestWins,
		get:         func(w *domain.Worker) string { return w.LineName },
		set:         func(dst, src *domain.Worker) { dst.LineName = src.LineName },
	},
	{
		name: "hourly_rate", label: "hourly rate", severity: domain.SeverityHigh,
		recommended: domain.StrategySourceWins,
		get:         func(w *domain.Worker) string { return rate(w.HourlyRate) },
		set:         func(dst, src *domain.Worker) { dst.HourlyRate = src.HourlyRate },
	},
	{
		name: "status", label: "status", severity: domain.SeverityCritical,
		recommended: domain.StrategyManual,
		get:         func(w *domain.Worker) string { return string(w.Status) },
		set:         func(dst, src *domain.Worker) { dst.Status = src.Status },
	},
}

// worksiteField describes one reconciled worksite attribute. The
// worksite side of the source extract is authoritative for plant
// metadata, so every field carries a source-wins recommendation.
type worksiteField struct {
	name     string
	label    string
	severity domain.Severity
	get      func(*domain.Worksite) string
	set      func(dst, src *domain.Worksite)
}

var worksiteFields = []worksiteField{
	{
		name: "company_address", label: "company address", severity: domain.SeverityMedium,
		get: func(w *domain.Worksite) string { return w.CompanyAddress },
		set: func(dst, src *domain.Worksite) { dst.CompanyAddress = src.CompanyAddress },
	},
	{
		name: "plant_address", label: "plant address", severity: domain.SeverityMedium,
		get: func(w *domain.Worksite) string { return w.PlantAddress },
		set: func(dst, src *domain.Worksite) { dst.PlantAddress = src.PlantAddress },
	},
	{
		name: "client_responsible_name", label: "client responsible person", severity: domain.SeverityHigh,
		get: func(w *domain.Worksite) string { return w.ClientResponsibleName },
		set: func(dst, src *domain.Worksite) { dst.ClientResponsibleName = src.ClientResponsibleName },
	},
	{
		name: "cutoff_date", label: "dispatch period limit", severity: domain.SeverityHigh,
		get: func(w *domain.Worksite) string { return day(w.CutoffDate) },
		set: func(dst, src *domain.Worksite) { dst.CutoffDate = src.CutoffDate },
	},
}
