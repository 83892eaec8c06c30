package board

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ankittk/pabellon/pkg/models"
)

type fakeFetcher struct {
	mu         sync.Mutex
	rooms      []models.Pabellon
	cirugias   map[int64][]models.Cirugia
	roomsErr   error
	roomErr    map[int64]error
	recomputes int
	roomCalls  int
	filters    []models.CirugiaFilter

	// blockFirst, when set, blocks the first ListPabellones call until closed;
	// entered is signalled when that call starts.
	blockFirst chan struct{}
	entered    chan struct{}
}

func (f *fakeFetcher) ListPabellones(ctx context.Context) ([]models.Pabellon, error) {
	f.mu.Lock()
	f.roomCalls++
	call := f.roomCalls
	block, entered := f.blockFirst, f.entered
	f.mu.Unlock()
	if call == 1 && block != nil {
		close(entered)
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.roomsErr != nil {
		return nil, f.roomsErr
	}
	return append([]models.Pabellon(nil), f.rooms...), nil
}

func (f *fakeFetcher) ListCirugias(ctx context.Context, flt models.CirugiaFilter) ([]models.Cirugia, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, flt)
	if err := f.roomErr[flt.PabellonID]; err != nil {
		return nil, err
	}
	return append([]models.Cirugia(nil), f.cirugias[flt.PabellonID]...), nil
}

func (f *fakeFetcher) ActualizarEstados(context.Context) error {
	f.mu.Lock()
	f.recomputes++
	f.mu.Unlock()
	return nil
}

func (f *fakeFetcher) set(room int64, list ...models.Cirugia) {
	f.mu.Lock()
	f.cirugias[room] = list
	f.mu.Unlock()
}

type countingRefs struct{ n atomic.Int32 }

func (c *countingRefs) Refresh(context.Context) error {
	c.n.Add(1)
	return errors.New("doctores: down")
}

func newFetcher() *fakeFetcher {
	return &fakeFetcher{
		rooms:    []models.Pabellon{pab(1, "P1"), pab(2, "P2")},
		cirugias: map[int64][]models.Cirugia{},
		roomErr:  map[int64]error{},
	}
}

func TestPoller_refreshBuildsBoard(t *testing.T) {
	f := newFetcher()
	f.set(1, cir(10, 1, models.EstadoProgramada))
	f.set(2, cir(20, 2, models.EstadoEnCurso), cir(21, 2, models.EstadoProgramada))
	refs := &countingRefs{}
	b := New()
	p := NewPoller(b, f, PollerOptions{Fecha: "2025-03-01", Recompute: true, Refs: refs})

	if err := p.Refresh(context.Background(), ModeReplace); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	snap := b.Snapshot()
	if len(snap) != 2 || len(snap[0].Cirugias) != 1 || len(snap[1].Cirugias) != 2 {
		t.Fatalf("board: %+v", snap)
	}
	if f.recomputes != 1 {
		t.Errorf("recompute calls: %d", f.recomputes)
	}
	if refs.n.Load() != 1 {
		t.Errorf("reference refreshes: %d", refs.n.Load())
	}
	for _, flt := range f.filters {
		if flt.Fecha != "2025-03-01" {
			t.Errorf("filter without fecha: %+v", flt)
		}
	}
}

func TestPoller_roomListFailureLeavesBoard(t *testing.T) {
	f := newFetcher()
	f.set(1, cir(10, 1, models.EstadoProgramada))
	b := New()
	p := NewPoller(b, f, PollerOptions{})
	if err := p.Refresh(context.Background(), ModeReplace); err != nil {
		t.Fatal(err)
	}
	last := b.LastCycle()

	f.mu.Lock()
	f.roomsErr = errors.New("502 bad gateway")
	f.mu.Unlock()
	if err := p.Refresh(context.Background(), ModeMerge); err == nil {
		t.Fatal("expected room-list error")
	}
	if b.LastCycle() != last {
		t.Error("board changed after aborted cycle")
	}
	if _, ok := b.Lookup(10); !ok {
		t.Error("board lost data after aborted cycle")
	}
}

func TestPoller_roomFailureIsEmptyList(t *testing.T) {
	f := newFetcher()
	f.set(1, cir(10, 1, models.EstadoProgramada))
	f.set(2, cir(20, 2, models.EstadoProgramada))
	b := New()
	p := NewPoller(b, f, PollerOptions{})
	if err := p.Refresh(context.Background(), ModeReplace); err != nil {
		t.Fatal(err)
	}
	f.mu.Lock()
	f.roomErr[2] = errors.New("timeout")
	f.mu.Unlock()
	if err := p.Refresh(context.Background(), ModeMerge); err != nil {
		t.Fatalf("per-room failure must not fail the cycle: %v", err)
	}
	if _, ok := b.Lookup(20); ok {
		t.Error("room 2 should be empty after its fetch failed")
	}
	if _, ok := b.Lookup(10); !ok {
		t.Error("room 1 should be unaffected")
	}
}

// A slow cycle that finishes after a newer one must not overwrite it.
func TestPoller_overlappingCyclesKeepNewest(t *testing.T) {
	f := newFetcher()
	f.blockFirst = make(chan struct{})
	f.entered = make(chan struct{})
	f.set(1, cir(10, 1, models.EstadoEnCurso))
	b := New()
	var updates []uint64
	var mu sync.Mutex
	b.Subscribe(func(u Update) {
		mu.Lock()
		updates = append(updates, u.Cycle)
		mu.Unlock()
	})
	p := NewPoller(b, f, PollerOptions{})

	slow := make(chan error, 1)
	go func() { slow <- p.Refresh(context.Background(), ModeMerge) }()
	<-f.entered

	if err := p.Refresh(context.Background(), ModeMerge); err != nil {
		t.Fatal(err)
	}
	close(f.blockFirst)
	if err := <-slow; err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(updates) != 1 || updates[0] != 2 {
		t.Errorf("applied cycles: %v (want only cycle 2)", updates)
	}
	if b.LastCycle() != 2 {
		t.Errorf("LastCycle: %d", b.LastCycle())
	}
}

func TestPoller_startTicksAndStop(t *testing.T) {
	f := newFetcher()
	f.set(1, cir(10, 1, models.EstadoProgramada))
	b := New()
	got := make(chan Update, 16)
	b.Subscribe(func(u Update) {
		select {
		case got <- u:
		default:
		}
	})
	p := NewPoller(b, f, PollerOptions{Interval: 10 * time.Millisecond})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}

	timeout := time.After(2 * time.Second)
	var modes []Mode
	for len(modes) < 2 {
		select {
		case u := <-got:
			modes = append(modes, u.Mode)
		case <-timeout:
			t.Fatalf("only %d cycles applied", len(modes))
		}
	}
	if modes[0] != ModeReplace || modes[1] != ModeMerge {
		t.Errorf("modes: %v", modes)
	}

	p.Stop()
	if err := p.Refresh(context.Background(), ModeReplace); !errors.Is(err, ErrStopped) {
		t.Errorf("Refresh after Stop: %v", err)
	}
	if err := p.Start(context.Background()); err == nil {
		t.Error("Start after Stop should fail")
	}
}

func TestPoller_defaults(t *testing.T) {
	p := NewPoller(New(), newFetcher(), PollerOptions{})
	if p.Interval() != 10*time.Second {
		t.Errorf("default interval: %v", p.Interval())
	}
	p.Stop() // never started
}
