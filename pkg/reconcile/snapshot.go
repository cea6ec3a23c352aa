package reconcile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"github.com/hakenworks/keiyaku/pkg/artifacts"
	"github.com/hakenworks/keiyaku/pkg/audit"
	"github.com/hakenworks/keiyaku/pkg/domain"
	"github.com/hakenworks/keiyaku/pkg/store"
)

const snapshotPrefix = "snapshots/"

// Snapshot is the full state of one collection at the moment a
// resolve run started, serialized as canonical JSON (RFC 8785) so the
// same state always produces the same bytes.
type Snapshot struct {
	SnapshotID string             `json:"snapshot_id"`
	Collection Collection         `json:"collection"`
	TakenAt    time.Time          `json:"taken_at"`
	Workers    []*domain.Worker   `json:"workers,omitempty"`
	Worksites  []*domain.Worksite `json:"worksites,omitempty"`
}

// SnapshotInfo identifies one stored snapshot.
type SnapshotInfo struct {
	SnapshotID string     `json:"snapshot_id"`
	Collection Collection `json:"collection"`
	Key        string     `json:"key"`
}

func snapshotKey(collection Collection, id string) string {
	return fmt.Sprintf("%s%s/%s.json", snapshotPrefix, collection, id)
}

func (r *Resolver) writeSnapshot(ctx context.Context, collection Collection) (id, contentHash string, err error) {
	now := r.clock().UTC()
	snap := &Snapshot{
		SnapshotID: fmt.Sprintf("SNAP-%s-%s", now.Format("20060102-150405"), uuid.NewString()[:8]),
		Collection: collection,
		TakenAt:    now,
	}

	switch collection {
	case CollectionWorkers:
		workers, err := r.store.ListWorkers(ctx, store.WorkerFilter{})
		if err != nil {
			return "", "", fmt.Errorf("list workers: %w", err)
		}
		sort.Slice(workers, func(i, j int) bool { return workers[i].WorkerNumber < workers[j].WorkerNumber })
		snap.Workers = workers
	case CollectionWorksites:
		worksites, err := r.store.ListWorksites(ctx, store.WorksiteFilter{})
		if err != nil {
			return "", "", fmt.Errorf("list worksites: %w", err)
		}
		sort.Slice(worksites, func(i, j int) bool { return worksites[i].WorksiteKey < worksites[j].WorksiteKey })
		snap.Worksites = worksites
	default:
		return "", "", fmt.Errorf("unknown collection: %q", collection)
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return "", "", fmt.Errorf("marshal snapshot: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", "", fmt.Errorf("canonicalize snapshot: %w", err)
	}
	if err := r.snaps.Put(ctx, snapshotKey(collection, snap.SnapshotID), canonical); err != nil {
		return "", "", err
	}
	sum := sha256.Sum256(canonical)
	return snap.SnapshotID, hex.EncodeToString(sum[:]), nil
}

// ListSnapshots returns every stored snapshot, newest id last.
func (r *Resolver) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	if r.snaps == nil {
		return nil, fmt.Errorf("no snapshot store configured")
	}
	keys, err := r.snaps.List(ctx, snapshotPrefix)
	if err != nil {
		return nil, err
	}
	var out []SnapshotInfo
	for _, key := range keys {
		rest := strings.TrimPrefix(key, snapshotPrefix)
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 || !strings.HasSuffix(parts[1], ".json") {
			continue
		}
		out = append(out, SnapshotInfo{
			SnapshotID: strings.TrimSuffix(parts[1], ".json"),
			Collection: Collection(parts[0]),
			Key:        key,
		})
	}
	return out, nil
}

// Restore rewinds the snapshot's collection: every record listed in
// the snapshot gets its field values replaced with the snapshot state,
// in one transaction. Records created after the snapshot are left
// untouched.
func (r *Resolver) Restore(ctx context.Context, snapshotID string) error {
	if r.snaps == nil {
		return fmt.Errorf("no snapshot store configured")
	}
	infos, err := r.ListSnapshots(ctx)
	if err != nil {
		return err
	}
	var info *SnapshotInfo
	for i := range infos {
		if infos[i].SnapshotID == snapshotID {
			info = &infos[i]
			break
		}
	}
	if info == nil {
		return fmt.Errorf("snapshot %s: %w", snapshotID, artifacts.ErrNotFound)
	}

	data, err := r.snaps.Get(ctx, info.Key)
	if err != nil {
		return err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", snapshotID, err)
	}

	err = r.store.WithTx(ctx, func(tx store.Store) error {
		for _, w := range snap.Workers {
			if err := restoreWorker(ctx, tx, w); err != nil {
				return err
			}
		}
		for _, w := range snap.Worksites {
			if err := restoreWorksite(ctx, tx, w); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("restore snapshot %s: %w", snapshotID, err)
	}

	if r.trail != nil {
		if _, err := r.trail.Record(audit.EventSnapshotRestore, snapshotID, "snapshot.restored", map[string]any{
			"collection": snap.Collection,
			"workers":    len(snap.Workers),
			"worksites":  len(snap.Worksites),
		}); err != nil {
			r.log.Error("audit trail record failed", "error", err)
		}
	}
	r.log.Info("snapshot restored", "snapshot_id", snapshotID, "collection", snap.Collection)
	return nil
}

func restoreWorker(ctx context.Context, tx store.Store, w *domain.Worker) error {
	current, err := tx.GetWorkerByNumber(ctx, w.WorkerNumber)
	if errors.Is(err, store.ErrNotFound) {
		if err := tx.PutWorker(ctx, w); err != nil {
			return fmt.Errorf("recreate worker %s: %w", w.WorkerNumber, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup worker %s: %w", w.WorkerNumber, err)
	}
	w.ID = current.ID
	if err := tx.UpdateWorker(ctx, w); err != nil {
		return fmt.Errorf("restore worker %s: %w", w.WorkerNumber, err)
	}
	return nil
}

func restoreWorksite(ctx context.Context, tx store.Store, w *domain.Worksite) error {
	current, err := tx.GetWorksiteByKey(ctx, w.WorksiteKey)
	if errors.Is(err, store.ErrNotFound) {
		if err := tx.PutWorksite(ctx, w); err != nil {
			return fmt.Errorf("recreate worksite %s: %w", w.WorksiteKey, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup worksite %s: %w", w.WorksiteKey, err)
	}
	w.ID = current.ID
	if err := tx.UpdateWorksite(ctx, w); err != nil {
		return fmt.Errorf("restore worksite %s: %w", w.WorksiteKey, err)
	}
	return nil
}
