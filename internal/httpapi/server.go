// Package httpapi is the local board view server: JSON board, mutations,
// the status-change journal and a live SSE stream.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/ankittk/pabellon/internal/board"
	"github.com/ankittk/pabellon/internal/store"
	"github.com/ankittk/pabellon/pkg/models"
)

// defaultMaxRequestBodyBytes is the default limit for request body size (1 MiB) to prevent OOM.
const defaultMaxRequestBodyBytes = 1 << 20

// limitBody wraps r.Body with http.MaxBytesReader so handlers cannot read more than maxBytes.
func limitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
}

// bodyLimitMiddleware limits request body size for POST, PUT, PATCH to prevent OOM.
func bodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			limitBody(w, r, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware sets CORS headers for dev mode (board front-end served from another origin).
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Mutator is the write side exposed over HTTP. *board.Controller satisfies it.
type Mutator interface {
	Create(ctx context.Context, form board.CirugiaForm) (*models.Cirugia, error)
	Update(ctx context.Context, id int64, form board.CirugiaForm) (*models.Cirugia, error)
	Delete(ctx context.Context, id int64) error
	Move(ctx context.Context, id, from, to int64) error
	AddExtraTime(ctx context.Context, id int64, delta int) error
	Transition(ctx context.Context, id int64, estado models.Estado) error
}

// EventLister reads the status-change journal. store.Journal satisfies it.
type EventLister interface {
	ListStatusChanges(ctx context.Context, opts store.ListOptions) ([]store.StatusChangeRecord, error)
}

// ServerOptions configures the view server. Board is required; the other
// collaborators are optional and their routes answer 503 when absent.
type ServerOptions struct {
	Addr           string
	Dev            bool
	APIKey         string       // if set, require X-API-Key header or query api_key
	MetricsHandler http.Handler // if set, used for /metrics (OTel Prometheus handler)
	UseOtelHTTP    bool         // if true, wrap handler with otelhttp for request metrics
	Logger         *zap.Logger

	Board      *board.Board
	Labels     board.Labeler
	Refresher  board.Refresher
	Controller Mutator
	Events     EventLister
}

// App holds the HTTP server and the SSE hub.
type App struct {
	Server *http.Server
	Hub    *SSEHub

	opts ServerOptions
	log  *zap.Logger
}

// NewApp creates the view server and registers all routes. Every board
// update is published on the hub as a board_update event.
func NewApp(opts ServerOptions) (*App, error) {
	if opts.Board == nil {
		return nil, errMissingBoard
	}
	log := opts.Logger
	if log == nil {
		log = zap.L()
	}
	app := &App{Hub: NewSSEHub(), opts: opts, log: log.Named("httpapi")}
	app.Hub.Hello = func() any {
		return map[string]any{"type": "connected", "cycle": opts.Board.LastCycle()}
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"ok":    true,
			"cycle": opts.Board.LastCycle(),
			"empty": opts.Board.Empty(),
		})
	})
	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	} else {
		mux.HandleFunc("GET /metrics", app.handlePlainMetrics)
	}
	mux.HandleFunc("GET /stream", app.Hub.Handler())

	mux.HandleFunc("GET /board", app.handleBoard)
	mux.HandleFunc("POST /board/refresh", app.handleRefresh)
	mux.HandleFunc("POST /cirugias", app.handleCreate)
	mux.HandleFunc("PUT /cirugias/{id}", app.handleUpdate)
	mux.HandleFunc("DELETE /cirugias/{id}", app.handleDelete)
	mux.HandleFunc("POST /cirugias/{id}/move", app.handleMove)
	mux.HandleFunc("POST /cirugias/{id}/extra-time", app.handleExtraTime)
	mux.HandleFunc("POST /cirugias/{id}/estado", app.handleEstado)
	mux.HandleFunc("GET /events", app.handleEvents)

	unsubscribe := opts.Board.Subscribe(func(u board.Update) {
		app.Hub.PublishJSON(map[string]any{
			"type":    "board_update",
			"cycle":   u.Cycle,
			"mode":    u.Mode.String(),
			"changes": len(u.Changes),
		})
	})

	var handler http.Handler = mux
	handler = bodyLimitMiddleware(defaultMaxRequestBodyBytes, handler)
	if opts.Dev {
		handler = corsMiddleware(handler)
	}
	if opts.APIKey != "" {
		handler = apiKeyMiddleware(opts.APIKey, handler)
	}
	handler = requestLogMiddleware(app.log, handler)
	if opts.UseOtelHTTP {
		handler = otelhttp.NewHandler(handler, "pabellon")
	}
	app.Server = &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	app.Server.RegisterOnShutdown(unsubscribe)
	return app, nil
}

// responseRecorder captures status code for logging and forwards Flusher if supported.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func apiKeyMiddleware(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/health" || path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if key != apiKey {
			writeJSONError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogMiddleware(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		log.Debug("request",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", rec.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeJSONError sends a JSON body {"error": "message"} with the given status code.
func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message})
}
