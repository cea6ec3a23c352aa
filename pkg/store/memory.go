package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hakenworks/keiyaku/pkg/domain"
)

// Memory is an in-memory Store used in tests and small deployments.
// WithTx takes a full copy of the state and swaps it back in only when
// fn succeeds, matching the transactional contract of the SQL stores.
type Memory struct {
	mu        sync.RWMutex
	contracts map[int64]*domain.Contract
	worksites map[int64]*domain.Worksite
	workers   map[int64]*domain.Worker
	assigned  map[int64][]int64 // contract id -> worker ids
	sequences map[string]int
	nextID    int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		contracts: make(map[int64]*domain.Contract),
		worksites: make(map[int64]*domain.Worksite),
		workers:   make(map[int64]*domain.Worker),
		assigned:  make(map[int64][]int64),
		sequences: make(map[string]int),
	}
}

func (m *Memory) allocID() int64 {
	m.nextID++
	return m.nextID
}

func (m *Memory) GetContract(ctx context.Context, id int64) (*domain.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contracts[id]
	if !ok {
		return nil, fmt.Errorf("contract %d: %w", id, ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) ListContracts(ctx context.Context, f ContractFilter) ([]*domain.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Contract
	for _, c := range m.contracts {
		if !matchContract(c, f) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func matchContract(c *domain.Contract, f ContractFilter) bool {
	if f.Status != nil && c.Status != *f.Status {
		return false
	}
	if f.WorksiteID != nil && c.WorksiteID != *f.WorksiteID {
		return false
	}
	if f.StartFrom != nil && (c.DispatchStart == nil || domain.Day(*c.DispatchStart).Before(domain.Day(*f.StartFrom))) {
		return false
	}
	if f.EndUntil != nil && (c.DispatchEnd == nil || domain.Day(*c.DispatchEnd).After(domain.Day(*f.EndUntil))) {
		return false
	}
	if f.EndOn != nil && (c.DispatchEnd == nil || !domain.Day(*c.DispatchEnd).Equal(domain.Day(*f.EndOn))) {
		return false
	}
	if f.EndBefore != nil && (c.DispatchEnd == nil || !domain.Day(*c.DispatchEnd).Before(domain.Day(*f.EndBefore))) {
		return false
	}
	return true
}

func (m *Memory) PutContract(ctx context.Context, c *domain.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = m.allocID()
	} else if c.ID > m.nextID {
		m.nextID = c.ID
	}
	cp := *c
	m.contracts[c.ID] = &cp
	return nil
}

func (m *Memory) UpdateContract(ctx context.Context, c *domain.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contracts[c.ID]; !ok {
		return fmt.Errorf("contract %d: %w", c.ID, ErrNotFound)
	}
	cp := *c
	m.contracts[c.ID] = &cp
	return nil
}

func (m *Memory) GetWorksite(ctx context.Context, id int64) (*domain.Worksite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.worksites[id]
	if !ok {
		return nil, fmt.Errorf("worksite %d: %w", id, ErrNotFound)
	}
	cp := *w
	return &cp, nil
}

func (m *Memory) GetWorksiteByKey(ctx context.Context, key string) (*domain.Worksite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.worksites {
		if w.WorksiteKey == key {
			cp := *w
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("worksite %q: %w", key, ErrNotFound)
}

func (m *Memory) ListWorksites(ctx context.Context, f WorksiteFilter) ([]*domain.Worksite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Worksite
	for _, w := range m.worksites {
		if f.ActiveOnly && !w.IsActive {
			continue
		}
		if f.RequireCutoff && w.CutoffDate == nil {
			continue
		}
		if f.CutoffFrom != nil && (w.CutoffDate == nil || domain.Day(*w.CutoffDate).Before(domain.Day(*f.CutoffFrom))) {
			continue
		}
		if f.CutoffUntil != nil && (w.CutoffDate == nil || domain.Day(*w.CutoffDate).After(domain.Day(*f.CutoffUntil))) {
			continue
		}
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) PutWorksite(ctx context.Context, w *domain.Worksite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.ID == 0 {
		w.ID = m.allocID()
	} else if w.ID > m.nextID {
		m.nextID = w.ID
	}
	cp := *w
	m.worksites[w.ID] = &cp
	return nil
}

func (m *Memory) UpdateWorksite(ctx context.Context, w *domain.Worksite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.worksites[w.ID]; !ok {
		return fmt.Errorf("worksite %d: %w", w.ID, ErrNotFound)
	}
	cp := *w
	m.worksites[w.ID] = &cp
	return nil
}

func (m *Memory) GetWorker(ctx context.Context, id int64) (*domain.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workers[id]
	if !ok {
		return nil, fmt.Errorf("worker %d: %w", id, ErrNotFound)
	}
	cp := *w
	return &cp, nil
}

func (m *Memory) GetWorkerByNumber(ctx context.Context, number string) (*domain.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.workers {
		if w.WorkerNumber == number {
			cp := *w
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("worker %q: %w", number, ErrNotFound)
}

func (m *Memory) ListWorkers(ctx context.Context, f WorkerFilter) ([]*domain.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Worker
	for _, w := range m.workers {
		if f.Status != nil && w.Status != *f.Status {
			continue
		}
		if f.WorksiteID != nil && w.WorksiteID != *f.WorksiteID {
			continue
		}
		if f.ExpiryFrom != nil && (w.DocumentExpiry == nil || domain.Day(*w.DocumentExpiry).Before(domain.Day(*f.ExpiryFrom))) {
			continue
		}
		if f.ExpiryUntil != nil && (w.DocumentExpiry == nil || domain.Day(*w.DocumentExpiry).After(domain.Day(*f.ExpiryUntil))) {
			continue
		}
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) PutWorker(ctx context.Context, w *domain.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.ID == 0 {
		w.ID = m.allocID()
	} else if w.ID > m.nextID {
		m.nextID = w.ID
	}
	cp := *w
	m.workers[w.ID] = &cp
	return nil
}

func (m *Memory) UpdateWorker(ctx context.Context, w *domain.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workers[w.ID]; !ok {
		return fmt.Errorf("worker %d: %w", w.ID, ErrNotFound)
	}
	cp := *w
	m.workers[w.ID] = &cp
	return nil
}

func (m *Memory) AssignWorker(ctx context.Context, contractID, workerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contracts[contractID]; !ok {
		return fmt.Errorf("contract %d: %w", contractID, ErrNotFound)
	}
	if _, ok := m.workers[workerID]; !ok {
		return fmt.Errorf("worker %d: %w", workerID, ErrNotFound)
	}
	for _, id := range m.assigned[contractID] {
		if id == workerID {
			return nil
		}
	}
	m.assigned[contractID] = append(m.assigned[contractID], workerID)
	return nil
}

func (m *Memory) ListContractWorkers(ctx context.Context, contractID int64) ([]*domain.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Worker
	for _, id := range m.assigned[contractID] {
		if w, ok := m.workers[id]; ok {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) ListWorkerContracts(ctx context.Context, workerID int64) ([]*domain.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Contract
	for contractID, workerIDs := range m.assigned {
		for _, id := range workerIDs {
			if id == workerID {
				if c, ok := m.contracts[contractID]; ok {
					cp := *c
					out = append(out, &cp)
				}
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) NextContractNumber(ctx context.Context, yearMonth string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[yearMonth]++
	return fmt.Sprintf("K-%s-%04d", yearMonth, m.sequences[yearMonth]), nil
}

// WithTx snapshots the whole state, runs fn against the live store and
// restores the snapshot when fn fails.
func (m *Memory) WithTx(ctx context.Context, fn func(tx Store) error) error {
	m.mu.Lock()
	contracts := make(map[int64]*domain.Contract, len(m.contracts))
	for k, v := range m.contracts {
		cp := *v
		contracts[k] = &cp
	}
	worksites := make(map[int64]*domain.Worksite, len(m.worksites))
	for k, v := range m.worksites {
		cp := *v
		worksites[k] = &cp
	}
	workers := make(map[int64]*domain.Worker, len(m.workers))
	for k, v := range m.workers {
		cp := *v
		workers[k] = &cp
	}
	assigned := make(map[int64][]int64, len(m.assigned))
	for k, v := range m.assigned {
		assigned[k] = append([]int64(nil), v...)
	}
	sequences := make(map[string]int, len(m.sequences))
	for k, v := range m.sequences {
		sequences[k] = v
	}
	nextID := m.nextID
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.contracts = contracts
		m.worksites = worksites
		m.workers = workers
		m.assigned = assigned
		m.sequences = sequences
		m.nextID = nextID
		m.mu.Unlock()
		return err
	}
	return nil
}

var _ Store = (*Memory)(nil)
