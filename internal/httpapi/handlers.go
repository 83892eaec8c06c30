package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ankittk/pabellon/internal/board"
	"github.com/ankittk/pabellon/internal/store"
	"github.com/ankittk/pabellon/pkg/client"
	"github.com/ankittk/pabellon/pkg/models"
)

var errMissingBoard = errors.New("httpapi: board is required")

func (a *App) handleBoard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.opts.Board.View(a.opts.Labels))
}

func (a *App) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if a.opts.Refresher == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "poller not running")
		return
	}
	mode := board.ModeReplace
	if r.URL.Query().Get("mode") == "merge" {
		mode = board.ModeMerge
	}
	if err := a.opts.Refresher.Refresh(r.Context(), mode); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "cycle": a.opts.Board.LastCycle()})
}

func (a *App) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !a.requireController(w) {
		return
	}
	var form board.CirugiaForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	c, err := a.opts.Controller.Create(r.Context(), form)
	if err != nil {
		a.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(c)
}

func (a *App) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	var form board.CirugiaForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	c, err := a.opts.Controller.Update(r.Context(), id, form)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, c)
}

func (a *App) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	if err := a.opts.Controller.Delete(r.Context(), id); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleMove(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		From int64 `json:"from"`
		To   int64 `json:"pabellon_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	from := body.From
	if from == 0 {
		cur, found := a.opts.Board.Lookup(id)
		if !found {
			a.writeError(w, fmt.Errorf("cirugia %d: %w", id, board.ErrNotOnBoard))
			return
		}
		from = cur.PabellonID
	}
	if err := a.opts.Controller.Move(r.Context(), id, from, body.To); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (a *App) handleExtraTime(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Minutes json.RawMessage `json:"minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	// Accept both 15 and "15"; the board form sends text.
	raw := strings.Trim(string(body.Minutes), `"`)
	delta, err := board.ParseMinutes(raw)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if err := a.opts.Controller.AddExtraTime(r.Context(), id, delta); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (a *App) handleEstado(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Estado models.Estado `json:"nuevo_estado"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := a.opts.Controller.Transition(r.Context(), id, body.Estado); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (a *App) handleEvents(w http.ResponseWriter, r *http.Request) {
	if a.opts.Events == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}
	q := r.URL.Query()
	var opts store.ListOptions
	if s := q.Get("cirugia_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid cirugia_id")
			return
		}
		opts.CirugiaID = id
	}
	if s := q.Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		opts.Since = t
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = n
	}
	events, err := a.opts.Events.ListStatusChanges(r.Context(), opts)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, events)
}

// handlePlainMetrics serves board counts in Prometheus text format when no
// OTel handler is configured.
func (a *App) handlePlainMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	counts := a.opts.Board.CountByEstado()
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	_, _ = fmt.Fprintf(w, "# TYPE pabellon_board_cirugias gauge\n")
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "pabellon_board_cirugias{estado=%q} %d\n", k, counts[k])
	}
	_, _ = fmt.Fprintf(w, "# TYPE pabellon_board_cycle gauge\npabellon_board_cycle %d\n", a.opts.Board.LastCycle())
}

func (a *App) requireController(w http.ResponseWriter) bool {
	if a.opts.Controller == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "mutations disabled")
		return false
	}
	return true
}

func (a *App) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if !a.requireController(w) {
		return 0, false
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// writeError maps controller and gateway errors to responses. Backend
// rejections keep their status and detail.
func (a *App) writeError(w http.ResponseWriter, err error) {
	var (
		verr   *board.ValidationError
		apiErr *client.APIError
	)
	switch {
	case errors.As(err, &verr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": verr.Error(), "fields": verr.Fields})
	case errors.Is(err, board.ErrNotOnBoard):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, board.ErrStopped):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, client.ErrUnauthenticated), errors.Is(err, client.ErrSessionExpired):
		writeJSONError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &apiErr):
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.Status)
		}
		writeJSONError(w, apiErr.Status, msg)
	default:
		a.log.Warn("request failed", zap.Error(err))
		writeJSONError(w, http.StatusBadGateway, err.Error())
	}
}
