package domain

// Severity is the shared ordered taxonomy for violations and conflicts.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

func (s Severity) String() string { return string(s) }

// IsValid returns true if the severity is a recognized value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Weight is the penalty weight used by the auditor's overall score.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 20
	case SeverityHigh:
		return 10
	case SeverityMedium:
		return 5
	case SeverityLow:
		return 2
	}
	return 5
}

// Rank orders severities for max-of comparisons (higher is worse).
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// MaxSeverity returns the worse of two severities.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Priority classifies alerts by required reaction time.
type Priority string

const (
	PriorityCritical Priority = "critical" // immediate action
	PriorityHigh     Priority = "high"     // same day
	PriorityMedium   Priority = "medium"   // within 3 days
	PriorityLow      Priority = "low"      // within the week
	PriorityInfo     Priority = "info"     // no action needed
)

func (p Priority) String() string { return string(p) }

// IsValid returns true if the priority is a recognized value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow, PriorityInfo:
		return true
	}
	return false
}

// Rank orders priorities (higher is more urgent).
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 5
	case PriorityHigh:
		return 4
	case PriorityMedium:
		return 3
	case PriorityLow:
		return 2
	case PriorityInfo:
		return 1
	}
	return 0
}

// MaxPriority returns the more urgent of two priorities.
func MaxPriority(a, b Priority) Priority {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ContractStatus is the lifecycle state of a contract. An "active"
// contract whose end date has passed keeps its status; that situation
// is reported as a violation, never auto-corrected.
type ContractStatus string

const (
	ContractDraft      ContractStatus = "draft"
	ContractActive     ContractStatus = "active"
	ContractExpired    ContractStatus = "expired"
	ContractTerminated ContractStatus = "terminated"
)

func (s ContractStatus) String() string { return string(s) }

// IsValid returns true if the status is a recognized value.
func (s ContractStatus) IsValid() bool {
	switch s {
	case ContractDraft, ContractActive, ContractExpired, ContractTerminated:
		return true
	}
	return false
}

// WorkerStatus is the employment state of a worker.
type WorkerStatus string

const (
	WorkerActive   WorkerStatus = "active"
	WorkerResigned WorkerStatus = "resigned"
)

func (s WorkerStatus) String() string { return string(s) }

// IsValid returns true if the status is a recognized value.
func (s WorkerStatus) IsValid() bool {
	return s == WorkerActive || s == WorkerResigned
}

// AlertType categorizes sweeper findings.
type AlertType string

const (
	AlertContractExpiring   AlertType = "contract_expiring"
	AlertContractExpired    AlertType = "contract_expired"
	AlertWorkerUnassigned   AlertType = "worker_unassigned"
	AlertWorksiteIncomplete AlertType = "worksite_incomplete"
	AlertCutoffApproaching  AlertType = "cutoff_approaching"
	AlertDocumentExpiring   AlertType = "document_expiring"
	AlertCheckFailed        AlertType = "check_failed"
)

func (t AlertType) String() string { return string(t) }

// ConflictStrategy selects how a reconciliation conflict is resolved.
type ConflictStrategy string

const (
	StrategySourceWins ConflictStrategy = "source_wins" // external source overwrites store
	StrategyDBWins     ConflictStrategy = "db_wins"     // stored value kept
	StrategyNewestWins ConflictStrategy = "newest_wins" // most recently modified side
	StrategyManual     ConflictStrategy = "manual"      // human decision required
)

func (s ConflictStrategy) String() string { return string(s) }

// IsValid returns true if the strategy is a recognized value.
func (s ConflictStrategy) IsValid() bool {
	switch s {
	case StrategySourceWins, StrategyDBWins, StrategyNewestWins, StrategyManual:
		return true
	}
	return false
}

// SyncClass is the analyzer's classification of one source record.
type SyncClass string

const (
	SyncCreate    SyncClass = "create"
	SyncUpdate    SyncClass = "update"
	SyncUnchanged SyncClass = "unchanged"
	SyncStoreOnly SyncClass = "store_only"
)

func (c SyncClass) String() string { return string(c) }
