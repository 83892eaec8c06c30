package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ankittk/pabellon/internal/board"
	"github.com/ankittk/pabellon/internal/config"
	"github.com/ankittk/pabellon/internal/httpapi"
	"github.com/ankittk/pabellon/internal/notify"
	"github.com/ankittk/pabellon/internal/otel"
	"github.com/ankittk/pabellon/internal/refdata"
	"github.com/ankittk/pabellon/internal/session"
	"github.com/ankittk/pabellon/internal/store"
	"github.com/ankittk/pabellon/internal/store/postgres"
	"github.com/ankittk/pabellon/pkg/client"
)

// Runtime is the assembled board client: gateway, reference cache, board,
// poller, controller, notifiers, journal and view server.
type Runtime struct {
	Config     *config.Config
	Home       string
	Log        *zap.Logger
	Session    *session.Store
	Client     *client.Client
	Refs       *refdata.Cache
	Board      *board.Board
	Poller     *board.Poller
	Controller *board.Controller
	Notifiers  *notify.Registry
	Journal    store.Journal
	App        *httpapi.App

	closers []func(context.Context) error
}

// NewClient returns a gateway client for cfg authenticated by tokens.
func NewClient(cfg *config.Config, tokens client.TokenSource) *client.Client {
	c := client.New(cfg.API.URL, tokens)
	if cfg.API.Timeout > 0 {
		c.HTTPClient = client.InstrumentedHTTPClient(cfg.API.Timeout)
	}
	return c
}

// OpenJournal opens the journal selected by cfg.Journal.
func OpenJournal(cfg *config.Config, home string) (store.Journal, error) {
	switch cfg.Journal.Driver {
	case "postgres":
		return postgres.Open(cfg.Journal.DSN)
	case "sqlite", "":
		if cfg.Journal.DSN != "" {
			return store.OpenWithOptions(store.OpenOptions{Driver: "sqlite", DSN: cfg.Journal.DSN})
		}
		return store.Open(home)
	default:
		return store.OpenWithOptions(store.OpenOptions{Driver: cfg.Journal.Driver, Home: home})
	}
}

// Build wires every component from opts. Nothing runs until Run.
func Build(ctx context.Context, opts StartOptions) (*Runtime, error) {
	if opts.Home == "" {
		return nil, errors.New("home is required")
	}
	cfg := opts.Config
	if cfg == nil {
		var err error
		cfg, err = config.Load(opts.Home, opts.EnvFile)
		if err != nil {
			return nil, err
		}
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}
	log := zap.L().Named("daemon")
	rt := &Runtime{Config: cfg, Home: opts.Home, Log: log}

	rt.Session = session.NewStore(opts.Home)
	if _, err := rt.Session.Load(); err != nil {
		return nil, fmt.Errorf("no usable session (run `pabellon login`): %w", err)
	}
	rt.Client = NewClient(cfg, rt.Session)

	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics {
		h, err := otel.InitMeterProvider(ctx, cfg.Telemetry.ServiceName)
		if err != nil {
			log.Warn("otel metrics init failed, using plain metrics", zap.Error(err))
		} else {
			metricsHandler = h
		}
	}
	shutdownTracing, err := otel.InitTracerProvider(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint, true)
	if err != nil {
		log.Warn("otel tracing init failed", zap.Error(err))
	}
	rt.closers = append(rt.closers, shutdownTracing)

	journal, err := OpenJournal(cfg, opts.Home)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	rt.Journal = journal
	rt.closers = append(rt.closers, func(context.Context) error { return journal.Close() })

	rt.Refs = refdata.New(rt.Client, zap.L())
	rt.Notifiers = notify.NewRegistry(zap.L())
	rt.Board = board.New(board.WithLogger(zap.L()), board.WithNotifier(rt.Notifiers))
	rt.Poller = board.NewPoller(rt.Board, rt.Client, board.PollerOptions{
		Interval:  cfg.Poll.Interval,
		Fecha:     cfg.Poll.Fecha,
		Recompute: cfg.Poll.Recompute,
		Refs:      rt.Refs,
		Logger:    zap.L(),
	})
	rt.Controller = board.NewController(rt.Client, rt.Board, rt.Poller, zap.L())

	if metricsHandler != nil {
		if err := otel.InitMetricsWithBoardCount(ctx, rt.Board.CountByEstado); err != nil {
			log.Warn("otel instruments init failed", zap.Error(err))
		}
	}

	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("PABELLON_API_KEY")
	}
	rt.App, err = httpapi.NewApp(httpapi.ServerOptions{
		Addr:           fmt.Sprintf("0.0.0.0:%d", cfg.Server.Port),
		Dev:            opts.Dev,
		APIKey:         apiKey,
		MetricsHandler: metricsHandler,
		UseOtelHTTP:    metricsHandler != nil,
		Logger:         zap.L(),
		Board:          rt.Board,
		Labels:         rt.Refs,
		Refresher:      rt.Poller,
		Controller:     rt.Controller,
		Events:         journal,
	})
	if err != nil {
		_ = rt.Close(context.Background())
		return nil, err
	}

	rt.Notifiers.Register(notify.Log{Logger: zap.L().Named("status")})
	rt.Notifiers.Register(notify.SSE{Hub: rt.App.Hub})
	rt.Notifiers.Register(notify.Journal{Store: journal})
	if u := cfg.Notify.SlackWebhookURL; u != "" {
		rt.Notifiers.Register(notify.SlackWebhook{WebhookURL: u, Username: "pabellon"})
	}
	if addr := cfg.Notify.RedisAddr; addr != "" {
		r, err := notify.NewRedis(addr, cfg.Notify.RedisPassword, cfg.Notify.RedisChannel, zap.L())
		if err != nil {
			log.Warn("redis notifier disabled", zap.Error(err))
		} else {
			rt.Notifiers.Register(r)
			rt.closers = append(rt.closers, func(context.Context) error { return r.Close() })
		}
	}

	rt.Board.Subscribe(rt.saveSnapshot)
	return rt, nil
}

// saveSnapshot persists the board after every applied cycle.
func (rt *Runtime) saveSnapshot(u board.Update) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Journal.SaveSnapshot(ctx, u.Cycle, rt.Board.Snapshot()); err != nil {
		rt.Log.Warn("save board snapshot failed", zap.Uint64("cycle", u.Cycle), zap.Error(err))
	}
}

// WarmStart loads the last saved board so the view has content before the
// first poll completes. It reports whether a snapshot was applied.
func (rt *Runtime) WarmStart(ctx context.Context) (bool, error) {
	snap, err := rt.Journal.LoadSnapshot(ctx)
	if err != nil || snap == nil {
		return false, err
	}
	applied := rt.Board.Apply(ctx, rt.Board.BeginCycle(), snap.Rooms, board.ModeReplace)
	if applied {
		rt.Log.Info("board warm-started from snapshot",
			zap.Time("taken_at", snap.TakenAt), zap.Int("rooms", len(snap.Rooms)))
	}
	return applied, nil
}

// Run warm-starts the board, starts the poller and serves until ctx is done.
func (rt *Runtime) Run(ctx context.Context) error {
	if _, err := rt.WarmStart(ctx); err != nil {
		rt.Log.Warn("warm start failed", zap.Error(err))
	}
	if err := rt.Poller.Start(ctx); err != nil {
		return err
	}
	defer rt.Poller.Stop()

	rt.Log.Info("view server listening", zap.String("addr", rt.App.Server.Addr))
	errCh := make(chan error, 1)
	go func() { errCh <- rt.App.Server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = rt.App.Server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close releases the journal, notifier connections and tracing, in reverse order.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
