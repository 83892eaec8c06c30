package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ankittk/pabellon/internal/otel"
	"github.com/ankittk/pabellon/pkg/models"
)

// ErrStopped is returned by Refresh once the poller has been stopped.
var ErrStopped = errors.New("poller stopped")

// Fetcher is the read side of the backend the poller needs. *client.Client satisfies it.
type Fetcher interface {
	ListPabellones(ctx context.Context) ([]models.Pabellon, error)
	ListCirugias(ctx context.Context, f models.CirugiaFilter) ([]models.Cirugia, error)
	ActualizarEstados(ctx context.Context) error
}

// RefRefresher reloads reference data alongside each cycle. *refdata.Cache satisfies it.
type RefRefresher interface {
	Refresh(ctx context.Context) error
}

// PollerOptions configures a Poller.
type PollerOptions struct {
	Interval  time.Duration // default 10s
	Fecha     string        // only fetch assignments for this date (YYYY-MM-DD); empty = all
	Recompute bool          // ask the backend to recompute statuses before each cycle
	Refs      RefRefresher  // optional
	Logger    *zap.Logger
}

// Poller refreshes a Board on a fixed interval. Start and Stop bound its
// lifetime; Refresh runs one cycle on demand (used after mutations).
type Poller struct {
	board *Board
	src   Fetcher
	opts  PollerOptions
	log   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped atomic.Bool
}

// NewPoller returns a poller for b reading from src.
func NewPoller(b *Board, src Fetcher, opts PollerOptions) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = time.Duration(models.DefaultPollIntervalSec) * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.L()
	}
	return &Poller{board: b, src: src, opts: opts, log: opts.Logger.Named("poller")}
}

// Interval returns the configured tick interval.
func (p *Poller) Interval() time.Duration { return p.opts.Interval }

// Start runs an initial replace cycle and then a merge cycle every interval
// until ctx is done or Stop is called. It returns immediately.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return errors.New("poller already started")
	}
	if p.stopped.Load() {
		return ErrStopped
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
	return nil
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	p.log.Info("poller started", zap.Duration("interval", p.opts.Interval), zap.String("fecha", p.opts.Fecha))
	if err := p.Refresh(ctx, ModeReplace); err != nil {
		p.logCycleError(err)
	}
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.log.Info("poller stopped")
			return
		case <-ticker.C:
			// Each tick runs on its own goroutine so a slow cycle does not
			// delay the next; the cycle id orders their results.
			go func() {
				if err := p.Refresh(ctx, ModeMerge); err != nil {
					p.logCycleError(err)
				}
			}()
		}
	}
}

func (p *Poller) logCycleError(err error) {
	if errors.Is(err, ErrStopped) || errors.Is(err, context.Canceled) {
		return
	}
	p.log.Warn("board refresh failed; keeping previous board", zap.Error(err))
}

// Stop stops scheduling cycles and waits for the loop to exit. Results of
// cycles still in flight are discarded when they arrive.
func (p *Poller) Stop() {
	p.stopped.Store(true)
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Refresh runs one cycle: optional status recompute, room list, per-room
// assignment lists fetched concurrently, reference data in parallel, then
// Apply with mode. A room-list failure aborts the cycle and leaves the board
// untouched; a failed room fetch counts as an empty list for that room.
func (p *Poller) Refresh(ctx context.Context, mode Mode) (err error) {
	if p.stopped.Load() {
		return ErrStopped
	}
	cycle := p.board.BeginCycle()
	start := time.Now()
	ctx, span := otel.Tracer().Start(ctx, "board.refresh")
	span.SetAttributes(otel.AttrCycle.Int64(int64(cycle)), otel.AttrMode.String(mode.String()))
	result := "applied"
	defer func() {
		if err != nil && result == "applied" {
			result = "failed"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(otel.AttrResult.String(result))
		span.End()
		otel.RecordPollCycle(ctx, mode.String(), result, time.Since(start))
	}()

	if p.opts.Recompute {
		if err := p.src.ActualizarEstados(ctx); err != nil {
			p.log.Warn("status recompute failed", zap.Error(err))
		}
	}

	var (
		g        errgroup.Group
		proposed []RoomAssignments
	)
	if p.opts.Refs != nil {
		g.Go(func() error {
			_ = p.opts.Refs.Refresh(ctx)
			return nil
		})
	}
	g.Go(func() error {
		var err error
		proposed, err = p.fetch(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if p.stopped.Load() {
		result = "stopped"
		return ErrStopped
	}
	if !p.board.Apply(ctx, cycle, proposed, mode) {
		result = "stale"
	}
	return nil
}

func (p *Poller) fetch(ctx context.Context) ([]RoomAssignments, error) {
	rooms, err := p.src.ListPabellones(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pabellones: %w", err)
	}
	proposed := make([]RoomAssignments, len(rooms))
	var g errgroup.Group
	g.SetLimit(max(len(rooms), 1))
	for i, r := range rooms {
		proposed[i].Pabellon = r
		g.Go(func() error {
			list, err := p.src.ListCirugias(ctx, models.CirugiaFilter{PabellonID: r.ID, Fecha: p.opts.Fecha})
			if err != nil {
				p.log.Warn("room fetch failed; treating as empty",
					zap.Int64("pabellon_id", r.ID), zap.String("pabellon", r.Nombre), zap.Error(err))
				return nil
			}
			proposed[i].Cirugias = list
			return nil
		})
	}
	_ = g.Wait()
	return proposed, nil
}
