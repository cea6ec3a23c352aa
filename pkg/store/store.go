// Package store defines the persistence accessors consumed by the
// compliance core and provides SQLite, Postgres and in-memory
// implementations of them.
//
// The core only reads Contract/Worksite/Worker records; the single
// write path is the reconciliation resolver's apply phase, which must
// run inside one WithTx call so partial application is never
// externally observable.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/hakenworks/keiyaku/pkg/domain"
)

var (
	// ErrNotFound is returned when a keyed lookup matches nothing.
	ErrNotFound = errors.New("record not found")
	// ErrLockHeld is returned when a reconciliation run lock is
	// already owned by another run.
	ErrLockHeld = errors.New("run lock already held")
)

// ContractFilter restricts ListContracts. Nil fields are ignored.
type ContractFilter struct {
	Status     *domain.ContractStatus
	WorksiteID *int64
	StartFrom  *time.Time // dispatch_start >= StartFrom
	EndUntil   *time.Time // dispatch_end <= EndUntil
	EndOn      *time.Time // dispatch_end == EndOn (exact day)
	EndBefore  *time.Time // dispatch_end < EndBefore
}

// WorksiteFilter restricts ListWorksites. Nil fields are ignored.
type WorksiteFilter struct {
	ActiveOnly    bool
	CutoffFrom    *time.Time // cutoff_date >= CutoffFrom
	CutoffUntil   *time.Time // cutoff_date <= CutoffUntil
	RequireCutoff bool       // only worksites with a cutoff date set
}

// WorkerFilter restricts ListWorkers. Nil fields are ignored.
type WorkerFilter struct {
	Status      *domain.WorkerStatus
	WorksiteID  *int64
	ExpiryFrom  *time.Time // document_expiry >= ExpiryFrom
	ExpiryUntil *time.Time // document_expiry <= ExpiryUntil
}

// ContractStore is the contract accessor surface.
type ContractStore interface {
	GetContract(ctx context.Context, id int64) (*domain.Contract, error)
	ListContracts(ctx context.Context, f ContractFilter) ([]*domain.Contract, error)
	PutContract(ctx context.Context, c *domain.Contract) error
	UpdateContract(ctx context.Context, c *domain.Contract) error
}

// WorksiteStore is the worksite accessor surface.
type WorksiteStore interface {
	GetWorksite(ctx context.Context, id int64) (*domain.Worksite, error)
	GetWorksiteByKey(ctx context.Context, key string) (*domain.Worksite, error)
	ListWorksites(ctx context.Context, f WorksiteFilter) ([]*domain.Worksite, error)
	PutWorksite(ctx context.Context, w *domain.Worksite) error
	UpdateWorksite(ctx context.Context, w *domain.Worksite) error
}

// WorkerStore is the worker accessor surface.
type WorkerStore interface {
	GetWorker(ctx context.Context, id int64) (*domain.Worker, error)
	GetWorkerByNumber(ctx context.Context, number string) (*domain.Worker, error)
	ListWorkers(ctx context.Context, f WorkerFilter) ([]*domain.Worker, error)
	PutWorker(ctx context.Context, w *domain.Worker) error
	UpdateWorker(ctx context.Context, w *domain.Worker) error
}

// AssignmentStore links workers to the contracts that place them.
type AssignmentStore interface {
	AssignWorker(ctx context.Context, contractID, workerID int64) error
	ListContractWorkers(ctx context.Context, contractID int64) ([]*domain.Worker, error)
	ListWorkerContracts(ctx context.Context, workerID int64) ([]*domain.Contract, error)
}

// Sequencer issues monthly contract numbers from a store-level atomic
// counter. The increment must happen inside the database (single-row
// atomic update), never in process memory, so concurrent callers can
// never observe a duplicate.
type Sequencer interface {
	NextContractNumber(ctx context.Context, yearMonth string) (string, error)
}

// Store is the full accessor consumed by the auditor, sweeper and
// resolver. WithTx runs fn against a transactional view of the same
// store; returning an error rolls every write back.
type Store interface {
	ContractStore
	WorksiteStore
	WorkerStore
	AssignmentStore
	Sequencer

	WithTx(ctx context.Context, fn func(tx Store) error) error
}
