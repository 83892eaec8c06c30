// Package notify fans board status changes out to the configured sinks
// (log, SSE stream, journal, Slack, Redis).
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ankittk/pabellon/internal/board"
)

// Notifier is one destination for status changes.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, changes []board.StatusChange) error
}

// Registry holds notifiers in registration order. It implements
// board.StatusNotifier; a failing notifier is logged and does not stop the others.
type Registry struct {
	log *zap.Logger

	mu     sync.RWMutex
	order  []string
	byName map[string]Notifier
}

var _ board.StatusNotifier = (*Registry)(nil)

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.L()
	}
	return &Registry{log: log.Named("notify"), byName: make(map[string]Notifier)}
}

// Register adds n, replacing any notifier with the same name.
func (r *Registry) Register(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[n.Name()]; !ok {
		r.order = append(r.order, n.Name())
	}
	r.byName[n.Name()] = n
}

func (r *Registry) Get(name string) Notifier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// Names lists registered notifiers in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Notify sends changes to the named notifier.
func (r *Registry) Notify(ctx context.Context, name string, changes []board.StatusChange) error {
	n := r.Get(name)
	if n == nil {
		return fmt.Errorf("notifier %q not found", name)
	}
	return n.Notify(ctx, changes)
}

// NotifyStatusChanges sends changes to every notifier.
func (r *Registry) NotifyStatusChanges(ctx context.Context, changes []board.StatusChange) {
	r.mu.RLock()
	list := make([]Notifier, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.byName[name])
	}
	r.mu.RUnlock()
	for _, n := range list {
		if err := n.Notify(ctx, changes); err != nil {
			r.log.Warn("notifier failed", zap.String("notifier", n.Name()), zap.Error(err))
		}
	}
}

// Message renders one change for humans.
func Message(c board.StatusChange) string {
	room := c.Pabellon
	if room == "" {
		room = fmt.Sprintf("Pabellón #%d", c.PabellonID)
	}
	return fmt.Sprintf("%s: cirugía #%d %s → %s", room, c.CirugiaID, c.Old, c.New)
}

func messages(changes []board.StatusChange) string {
	lines := make([]string, len(changes))
	for i, c := range changes {
		lines[i] = Message(c)
	}
	return strings.Join(lines, "\n")
}

// Log writes each change to a zap logger.
type Log struct {
	Logger *zap.Logger
}

func (Log) Name() string { return "log" }

func (l Log) Notify(_ context.Context, changes []board.StatusChange) error {
	lg := l.Logger
	if lg == nil {
		lg = zap.L()
	}
	for _, c := range changes {
		lg.Info("status change",
			zap.Int64("cirugia_id", c.CirugiaID),
			zap.Int64("pabellon_id", c.PabellonID),
			zap.String("pabellon", c.Pabellon),
			zap.String("from", string(c.Old)),
			zap.String("to", string(c.New)),
			zap.Uint64("cycle", c.Cycle))
	}
	return nil
}

// Publisher is the SSE side of the local view server.
type Publisher interface {
	PublishJSON(v any)
}

// SSE publishes one status_change event per change.
type SSE struct {
	Hub Publisher
}

func (SSE) Name() string { return "sse" }

func (s SSE) Notify(_ context.Context, changes []board.StatusChange) error {
	for _, c := range changes {
		s.Hub.PublishJSON(map[string]any{
			"type":        "status_change",
			"cirugia_id":  c.CirugiaID,
			"pabellon_id": c.PabellonID,
			"pabellon":    c.Pabellon,
			"old":         c.Old,
			"new":         c.New,
			"cycle":       c.Cycle,
			"timestamp":   c.At,
		})
	}
	return nil
}

// Recorder persists status changes. *store.Journal satisfies it.
type Recorder interface {
	RecordStatusChanges(ctx context.Context, changes []board.StatusChange) error
}

// Journal records changes in the local journal.
type Journal struct {
	Store Recorder
}

func (Journal) Name() string { return "journal" }

func (j Journal) Notify(ctx context.Context, changes []board.StatusChange) error {
	return j.Store.RecordStatusChanges(ctx, changes)
}
