package board

import (
	"context"

	"go.uber.org/zap"

	"github.com/ankittk/pabellon/internal/otel"
	"github.com/ankittk/pabellon/pkg/models"
)

// Apply merges a fetched board into the held one and reports whether it was
// applied. Results of a cycle older than the last applied cycle are dropped.
//
// In both modes the held room list becomes the fetched one, in fetched order;
// rooms absent from proposed are removed. When the same assignment id is
// listed under two rooms, the room later in proposed keeps it. In ModeMerge
// an assignment already on the board is updated in place and keeps its
// pointer; ModeReplace allocates fresh entries.
//
// After the merge every assignment present before and after with a different
// status yields one StatusChange, handed to the notifier; then observers run.
func (b *Board) Apply(ctx context.Context, cycle uint64, proposed []RoomAssignments, mode Mode) bool {
	b.mu.Lock()
	if cycle < b.applied {
		b.mu.Unlock()
		b.log.Debug("dropping stale refresh", zap.Uint64("cycle", cycle), zap.Uint64("applied", b.applied))
		return false
	}

	before := make(map[int64]models.Estado, len(b.entries))
	for id, c := range b.entries {
		before[id] = c.Estado
	}

	entries := make(map[int64]*models.Cirugia, len(b.entries))
	owner := make(map[int64]*room, len(b.entries))
	rooms := make([]*room, 0, len(proposed))
	index := make(map[int64]*room, len(proposed))

	for _, pr := range proposed {
		r, ok := index[pr.Pabellon.ID]
		if !ok {
			r = &room{}
			index[pr.Pabellon.ID] = r
			rooms = append(rooms, r)
		}
		r.pab = pr.Pabellon
		r.ids = r.ids[:0]
		for i := range pr.Cirugias {
			c := pr.Cirugias[i]
			if c.PabellonID != pr.Pabellon.ID {
				b.log.Debug("assignment listed under another room",
					zap.Int64("cirugia_id", c.ID), zap.Int64("pabellon_id", c.PabellonID), zap.Int64("listed_under", pr.Pabellon.ID))
				c.PabellonID = pr.Pabellon.ID
			}
			if prev, dup := owner[c.ID]; dup {
				prev.ids = removeID(prev.ids, c.ID)
			}
			entry := entries[c.ID]
			if entry == nil && mode == ModeMerge {
				entry = b.entries[c.ID]
			}
			if entry == nil {
				entry = new(models.Cirugia)
			}
			*entry = c
			entries[c.ID] = entry
			owner[c.ID] = r
			r.ids = append(r.ids, c.ID)
		}
	}

	b.rooms = rooms
	b.entries = entries
	b.applied = cycle

	var changes []StatusChange
	now := b.now().UTC()
	for _, r := range rooms {
		for _, id := range r.ids {
			old, ok := before[id]
			if !ok {
				continue
			}
			if cur := entries[id].Estado; cur != old {
				changes = append(changes, StatusChange{
					CirugiaID:  id,
					PabellonID: r.pab.ID,
					Pabellon:   r.pab.Nombre,
					Old:        old,
					New:        cur,
					Cycle:      cycle,
					At:         now,
				})
			}
		}
	}
	observers := make([]func(Update), 0, len(b.observer))
	for _, fn := range b.observer {
		observers = append(observers, fn)
	}
	b.mu.Unlock()

	b.log.Debug("refresh applied",
		zap.Uint64("cycle", cycle), zap.Stringer("mode", mode),
		zap.Int("rooms", len(rooms)), zap.Int("cirugias", len(entries)), zap.Int("status_changes", len(changes)))

	for _, ch := range changes {
		otel.RecordStatusChange(ctx, string(ch.Old), string(ch.New))
	}
	if len(changes) > 0 && b.notifier != nil {
		b.notifier.NotifyStatusChanges(ctx, changes)
	}
	up := Update{Cycle: cycle, Mode: mode, Changes: changes}
	for _, fn := range observers {
		fn(up)
	}
	return true
}

func removeID(ids []int64, id int64) []int64 {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
