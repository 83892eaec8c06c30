package store

import (
	"context"
	"time"

	"github.com/ankittk/pabellon/internal/board"
	"github.com/ankittk/pabellon/pkg/models"
)

// Journal persists observed status changes and the last board snapshot.
// Implementations: SQLite (this package) and PostgreSQL (internal/store/postgres).
type Journal interface {
	RecordStatusChanges(ctx context.Context, changes []board.StatusChange) error
	ListStatusChanges(ctx context.Context, opts ListOptions) ([]StatusChangeRecord, error)
	SaveSnapshot(ctx context.Context, cycle uint64, rooms []board.RoomAssignments) error
	// LoadSnapshot returns nil, nil when no snapshot was saved yet.
	LoadSnapshot(ctx context.Context) (*Snapshot, error)
	Close() error
}

// ListOptions filters ListStatusChanges. Zero values mean no filter.
type ListOptions struct {
	CirugiaID int64
	Since     time.Time
	Limit     int // default models.DefaultEventListLimit
}

func (o ListOptions) limit() int {
	if o.Limit <= 0 {
		return models.DefaultEventListLimit
	}
	return o.Limit
}

// StatusChangeRecord is one journal row.
type StatusChangeRecord struct {
	ID         int64         `json:"id"`
	CirugiaID  int64         `json:"cirugia_id"`
	PabellonID int64         `json:"pabellon_id"`
	Pabellon   string        `json:"pabellon"`
	Old        models.Estado `json:"old"`
	New        models.Estado `json:"new"`
	Cycle      uint64        `json:"cycle"`
	At         time.Time     `json:"at"`
}

// Snapshot is the persisted board.
type Snapshot struct {
	Cycle   uint64                  `json:"cycle"`
	TakenAt time.Time               `json:"taken_at"`
	Rooms   []board.RoomAssignments `json:"rooms"`
}

// Nop is a Journal that stores nothing (journal.driver: none).
type Nop struct{}

func (Nop) RecordStatusChanges(context.Context, []board.StatusChange) error { return nil }

func (Nop) ListStatusChanges(context.Context, ListOptions) ([]StatusChangeRecord, error) {
	return []StatusChangeRecord{}, nil
}

func (Nop) SaveSnapshot(context.Context, uint64, []board.RoomAssignments) error { return nil }

func (Nop) LoadSnapshot(context.Context) (*Snapshot, error) { return nil, nil }

func (Nop) Close() error { return nil }
