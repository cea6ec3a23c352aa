// Package audit keeps an append-only, hash-chained trail of
// compliance-relevant runs: audits, alert sweeps, reconciliation runs
// and snapshot restores. The trail is an operational breadcrumb the
// caller can export, not a persistence layer.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrChainBroken is returned by Verify when an entry's hash does
	// not line up with its predecessor.
	ErrChainBroken = errors.New("trail hash chain is broken")
)

// EventType categorizes trail entries.
type EventType string

const (
	EventComplianceAudit EventType = "compliance_audit"
	EventAlertSweep      EventType = "alert_sweep"
	EventSyncRun         EventType = "sync_run"
	EventSnapshotRestore EventType = "snapshot_restore"
)

// Entry is one immutable trail record.
type Entry struct {
	EventID     string          `json:"event_id"`
	Sequence    uint64          `json:"sequence"`
	Timestamp   time.Time       `json:"timestamp"`
	Type        EventType       `json:"event_type"`
	Subject     string          `json:"subject"`
	Action      string          `json:"action"`
	Payload     json.RawMessage `json:"payload"`
	PayloadHash string          `json:"payload_hash"`
	PrevHash    string          `json:"prev_hash"`
	EntryHash   string          `json:"entry_hash"`
}

// Trail is an append-only event log with hash chaining.
type Trail struct {
	mu       sync.RWMutex
	entries  []*Entry
	sequence uint64
	head     string
	clock    func() time.Time
}

// NewTrail creates an empty trail.
func NewTrail() *Trail {
	return &Trail{head: "genesis", clock: time.Now}
}

// WithClock overrides the clock for testing.
func (t *Trail) WithClock(clock func() time.Time) *Trail {
	t.clock = clock
	return t
}

// Record appends an event. The payload is serialized and hashed into
// the chain; a serialization failure is the only error path.
func (t *Trail) Record(eventType EventType, subject, action string, payload any) (*Entry, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("serialize trail payload: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.sequence++
	e := &Entry{
		EventID:     uuid.New().String(),
		Sequence:    t.sequence,
		Timestamp:   t.clock().UTC(),
		Type:        eventType,
		Subject:     subject,
		Action:      action,
		Payload:     body,
		PayloadHash: hash(body),
		PrevHash:    t.head,
	}
	e.EntryHash = entryHash(e)
	t.head = e.EntryHash
	t.entries = append(t.entries, e)
	return e, nil
}

// List returns the entries in append order.
func (t *Trail) List() []*Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// ByType returns entries of one event type in append order.
func (t *Trail) ByType(eventType EventType) []*Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*Entry
	for _, e := range t.entries {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Verify walks the whole chain and reports the first break.
func (t *Trail) Verify() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	prev := "genesis"
	for _, e := range t.entries {
		if e.PrevHash != prev {
			return fmt.Errorf("entry %d: %w", e.Sequence, ErrChainBroken)
		}
		if entryHash(e) != e.EntryHash {
			return fmt.Errorf("entry %d: %w", e.Sequence, ErrChainBroken)
		}
		prev = e.EntryHash
	}
	return nil
}

func hash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func entryHash(e *Entry) string {
	material := fmt.Sprintf("%d|%s|%s|%s|%s|%s",
		e.Sequence, e.Timestamp.Format(time.RFC3339Nano), e.Type, e.Subject, e.PayloadHash, e.PrevHash)
	return hash([]byte(material))
}
