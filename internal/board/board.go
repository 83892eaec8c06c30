// Package board holds the operating-room board: rooms, the assignments
// scheduled into them, the reconciliation that merges each poll result into
// the held state, the poller that drives it and the controller that turns
// user actions into backend calls.
package board

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ankittk/pabellon/pkg/models"
)

// Mode selects how a refresh result is applied.
type Mode int

const (
	// ModeMerge updates the held board in place, keeping the identity of
	// assignments the server still reports. Background polls use it.
	ModeMerge Mode = iota
	// ModeReplace swaps the whole board for the fetched one.
	ModeReplace
)

func (m Mode) String() string {
	if m == ModeReplace {
		return "replace"
	}
	return "merge"
}

// RoomAssignments is one room and its assignment list as fetched.
type RoomAssignments struct {
	Pabellon models.Pabellon  `json:"pabellon"`
	Cirugias []models.Cirugia `json:"cirugias"`
}

// StatusChange is emitted for each assignment whose status differs between
// the board before and after a refresh.
type StatusChange struct {
	CirugiaID  int64         `json:"cirugia_id"`
	PabellonID int64         `json:"pabellon_id"`
	Pabellon   string        `json:"pabellon"`
	Old        models.Estado `json:"old"`
	New        models.Estado `json:"new"`
	Cycle      uint64        `json:"cycle"`
	At         time.Time     `json:"at"`
}

// StatusNotifier receives the status changes of an applied refresh.
type StatusNotifier interface {
	NotifyStatusChanges(ctx context.Context, changes []StatusChange)
}

// Update describes an applied refresh; observers receive it after the
// status notifier has run.
type Update struct {
	Cycle   uint64
	Mode    Mode
	Changes []StatusChange
}

type room struct {
	pab models.Pabellon
	ids []int64
}

// Board is the in-memory room→assignment board. Assignments are held in a
// map keyed by id so a merge updates the value behind a stable pointer.
// Only Apply mutates it.
type Board struct {
	log      *zap.Logger
	notifier StatusNotifier
	now      func() time.Time

	mu       sync.RWMutex
	rooms    []*room
	entries  map[int64]*models.Cirugia
	applied  uint64 // cycle id of the last applied refresh
	observer map[int]func(Update)
	nextObs  int

	cycles atomic.Uint64
}

// Option configures a Board.
type Option func(*Board)

// WithLogger sets the board logger (default zap.L()).
func WithLogger(l *zap.Logger) Option {
	return func(b *Board) { b.log = l }
}

// WithNotifier sets where status changes are sent.
func WithNotifier(n StatusNotifier) Option {
	return func(b *Board) { b.notifier = n }
}

// New returns an empty board.
func New(opts ...Option) *Board {
	b := &Board{
		log:      zap.L(),
		now:      time.Now,
		entries:  map[int64]*models.Cirugia{},
		observer: map[int]func(Update){},
	}
	for _, o := range opts {
		o(b)
	}
	b.log = b.log.Named("board")
	return b
}

// BeginCycle allocates the id for a new refresh cycle. Ids increase
// monotonically; Apply drops results of a cycle older than the last applied.
func (b *Board) BeginCycle() uint64 {
	return b.cycles.Add(1)
}

// Subscribe registers fn to be called after every applied refresh. The
// returned func unregisters it.
func (b *Board) Subscribe(fn func(Update)) func() {
	b.mu.Lock()
	id := b.nextObs
	b.nextObs++
	b.observer[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.observer, id)
		b.mu.Unlock()
	}
}

// Empty reports whether no refresh has populated the board yet.
func (b *Board) Empty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms) == 0
}

// LastCycle returns the id of the last applied refresh (0 if none).
func (b *Board) LastCycle() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.applied
}

// Lookup returns a copy of the assignment and its owning room.
func (b *Board) Lookup(id int64) (models.Cirugia, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.entries[id]
	if !ok {
		return models.Cirugia{}, false
	}
	return *c, true
}

// Entry returns the live assignment held for id. The pointer stays the same
// across merge refreshes for as long as the server keeps reporting the id; a
// replace refresh allocates new entries. Read its fields inside Read, since a
// running poller may update them.
func (b *Board) Entry(id int64) (*models.Cirugia, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.entries[id]
	return c, ok
}

// Read runs fn with the board read-locked.
func (b *Board) Read(fn func()) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	fn()
}

// Snapshot returns a deep copy of the board in display order.
func (b *Board) Snapshot() []RoomAssignments {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]RoomAssignments, 0, len(b.rooms))
	for _, r := range b.rooms {
		ra := RoomAssignments{Pabellon: r.pab, Cirugias: make([]models.Cirugia, 0, len(r.ids))}
		for _, id := range r.ids {
			ra.Cirugias = append(ra.Cirugias, *b.entries[id])
		}
		out = append(out, ra)
	}
	return out
}

// CountByEstado returns how many assignments hold each status.
func (b *Board) CountByEstado() map[string]int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := map[string]int64{}
	for _, c := range b.entries {
		out[string(c.Estado)]++
	}
	return out
}
