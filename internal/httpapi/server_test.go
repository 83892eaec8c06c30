package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ankittk/pabellon/internal/board"
	"github.com/ankittk/pabellon/internal/store"
	"github.com/ankittk/pabellon/pkg/client"
	"github.com/ankittk/pabellon/pkg/models"
)

type call struct {
	op       string
	id       int64
	from, to int64
	delta    int
	estado   models.Estado
	form     board.CirugiaForm
}

type fakeMutator struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (f *fakeMutator) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.err
}

func (f *fakeMutator) last(t *testing.T) call {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("no controller call")
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeMutator) Create(_ context.Context, form board.CirugiaForm) (*models.Cirugia, error) {
	if err := f.record(call{op: "create", form: form}); err != nil {
		return nil, err
	}
	return &models.Cirugia{ID: 99, Estado: models.EstadoProgramada}, nil
}

func (f *fakeMutator) Update(_ context.Context, id int64, form board.CirugiaForm) (*models.Cirugia, error) {
	if err := f.record(call{op: "update", id: id, form: form}); err != nil {
		return nil, err
	}
	return &models.Cirugia{ID: id}, nil
}

func (f *fakeMutator) Delete(_ context.Context, id int64) error {
	return f.record(call{op: "delete", id: id})
}

func (f *fakeMutator) Move(_ context.Context, id, from, to int64) error {
	return f.record(call{op: "move", id: id, from: from, to: to})
}

func (f *fakeMutator) AddExtraTime(_ context.Context, id int64, delta int) error {
	return f.record(call{op: "extra_time", id: id, delta: delta})
}

func (f *fakeMutator) Transition(_ context.Context, id int64, estado models.Estado) error {
	return f.record(call{op: "transition", id: id, estado: estado})
}

type fakeRefresher struct {
	mu    sync.Mutex
	b     *board.Board
	modes []board.Mode
}

func (f *fakeRefresher) Refresh(ctx context.Context, mode board.Mode) error {
	f.mu.Lock()
	f.modes = append(f.modes, mode)
	f.mu.Unlock()
	f.b.Apply(ctx, f.b.BeginCycle(), sampleRooms(), mode)
	return nil
}

type fakeEvents struct {
	mu   sync.Mutex
	opts store.ListOptions
}

func (f *fakeEvents) ListStatusChanges(_ context.Context, opts store.ListOptions) ([]store.StatusChangeRecord, error) {
	f.mu.Lock()
	f.opts = opts
	f.mu.Unlock()
	return []store.StatusChangeRecord{{ID: 1, CirugiaID: 10, Old: models.EstadoProgramada, New: models.EstadoEnCurso}}, nil
}

type labels struct{}

func (labels) PatientName(int64) string { return "Paciente Uno" }

func (labels) DoctorName(int64) string { return "Dra. Soto" }

func (labels) SurgeryTypeName(int64) string { return "Apendicectomía" }

func sampleRooms() []board.RoomAssignments {
	pac := int64(1)
	dur := 60
	return []board.RoomAssignments{
		{Pabellon: models.Pabellon{ID: 1, Nombre: "Pabellón 1"}, Cirugias: []models.Cirugia{
			{ID: 10, PabellonID: 1, PacienteID: &pac, TipoCirugiaID: 3, DuracionProgramada: &dur, ExtraTime: 15, Estado: models.EstadoEnCurso},
		}},
		{Pabellon: models.Pabellon{ID: 2, Nombre: "Pabellón 2"}},
	}
}

type harness struct {
	ts     *httptest.Server
	app    *App
	board  *board.Board
	mut    *fakeMutator
	ref    *fakeRefresher
	events *fakeEvents
}

func newHarness(t *testing.T, opts ServerOptions) *harness {
	t.Helper()
	b := board.New()
	b.Apply(context.Background(), b.BeginCycle(), sampleRooms(), board.ModeReplace)
	h := &harness{board: b, mut: &fakeMutator{}, ref: &fakeRefresher{b: b}, events: &fakeEvents{}}
	opts.Board = b
	opts.Labels = labels{}
	opts.Refresher = h.ref
	opts.Controller = h.mut
	opts.Events = h.events
	app, err := NewApp(opts)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	h.app = app
	h.ts = httptest.NewServer(app.Server.Handler)
	t.Cleanup(h.ts.Close)
	return h
}

func (h *harness) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, h.ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestNewApp_requiresBoard(t *testing.T) {
	if _, err := NewApp(ServerOptions{}); err == nil {
		t.Fatal("expected error without board")
	}
}

func TestHealthAndBoard(t *testing.T) {
	t.Parallel()
	h := newHarness(t, ServerOptions{})

	resp := h.do(t, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/health status=%d", resp.StatusCode)
	}

	resp = h.do(t, http.MethodGet, "/board", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/board status=%d", resp.StatusCode)
	}
	var v board.View
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(v.Rooms) != 2 || len(v.Rooms[0].Cards) != 1 {
		t.Fatalf("view = %+v", v)
	}
	card := v.Rooms[0].Cards[0]
	if card.Paciente != "Paciente Uno" || card.TotalMinutes != 75 || v.Rooms[0].TotalMinutes != 75 {
		t.Errorf("card = %+v", card)
	}
}

func TestPlainMetrics(t *testing.T) {
	t.Parallel()
	h := newHarness(t, ServerOptions{})
	resp := h.do(t, http.MethodGet, "/metrics", "")
	var sb strings.Builder
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		sb.WriteString(sc.Text() + "\n")
	}
	if !strings.Contains(sb.String(), `pabellon_board_cirugias{estado="EN_CURSO"} 1`) {
		t.Fatalf("metrics:\n%s", sb.String())
	}
}

func TestRefresh(t *testing.T) {
	t.Parallel()
	h := newHarness(t, ServerOptions{})
	if resp := h.do(t, http.MethodPost, "/board/refresh", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if resp := h.do(t, http.MethodPost, "/board/refresh?mode=merge", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	h.ref.mu.Lock()
	defer h.ref.mu.Unlock()
	if len(h.ref.modes) != 2 || h.ref.modes[0] != board.ModeReplace || h.ref.modes[1] != board.ModeMerge {
		t.Fatalf("modes = %v", h.ref.modes)
	}
}

func TestMutationRoutes(t *testing.T) {
	t.Parallel()
	h := newHarness(t, ServerOptions{})

	resp := h.do(t, http.MethodPost, "/cirugias", `{"paciente_id":"1","doctor_id":"2","tipo_cirugia_id":"3","pabellon_id":"1","fecha":"2025-03-01","hora_inicio":"08:00"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status=%d", resp.StatusCode)
	}
	if c := h.mut.last(t); c.op != "create" || c.form.PacienteID != "1" || c.form.HoraInicio != "08:00" {
		t.Errorf("create call = %+v", c)
	}

	if resp := h.do(t, http.MethodPut, "/cirugias/10", `{"pabellon_id":"2"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("update status=%d", resp.StatusCode)
	}
	if c := h.mut.last(t); c.op != "update" || c.id != 10 || c.form.PabellonID != "2" {
		t.Errorf("update call = %+v", c)
	}

	if resp := h.do(t, http.MethodDelete, "/cirugias/10", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status=%d", resp.StatusCode)
	}
	if c := h.mut.last(t); c.op != "delete" || c.id != 10 {
		t.Errorf("delete call = %+v", c)
	}

	// from is taken from the board when omitted
	if resp := h.do(t, http.MethodPost, "/cirugias/10/move", `{"pabellon_id":2}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("move status=%d", resp.StatusCode)
	}
	if c := h.mut.last(t); c.op != "move" || c.from != 1 || c.to != 2 {
		t.Errorf("move call = %+v", c)
	}

	if resp := h.do(t, http.MethodPost, "/cirugias/10/extra-time", `{"minutes":"15"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("extra-time status=%d", resp.StatusCode)
	}
	if c := h.mut.last(t); c.op != "extra_time" || c.delta != 15 {
		t.Errorf("extra-time call = %+v", c)
	}
	if resp := h.do(t, http.MethodPost, "/cirugias/10/extra-time", `{"minutes":30}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("extra-time numeric status=%d", resp.StatusCode)
	}
	if c := h.mut.last(t); c.delta != 30 {
		t.Errorf("extra-time numeric delta = %d", c.delta)
	}

	if resp := h.do(t, http.MethodPost, "/cirugias/10/estado", `{"nuevo_estado":"FINALIZADA"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("estado status=%d", resp.StatusCode)
	}
	if c := h.mut.last(t); c.op != "transition" || c.estado != models.EstadoFinalizada {
		t.Errorf("estado call = %+v", c)
	}
}

func TestMutationRoutes_rejectBeforeController(t *testing.T) {
	t.Parallel()
	h := newHarness(t, ServerOptions{})

	if resp := h.do(t, http.MethodPut, "/cirugias/abc", `{}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad id status=%d", resp.StatusCode)
	}
	if resp := h.do(t, http.MethodPost, "/cirugias/10/extra-time", `{"minutes":"-5"}`); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("negative minutes status=%d", resp.StatusCode)
	}
	if resp := h.do(t, http.MethodPost, "/cirugias/77/move", `{"pabellon_id":2}`); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("move unknown status=%d", resp.StatusCode)
	}
	if resp := h.do(t, http.MethodPost, "/cirugias", `not json`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad json status=%d", resp.StatusCode)
	}
	h.mut.mu.Lock()
	n := len(h.mut.calls)
	h.mut.mu.Unlock()
	if n != 0 {
		t.Fatalf("controller called %d times", n)
	}
}

func TestWriteError(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &board.ValidationError{Fields: []string{"fecha"}, Msg: "missing"}, http.StatusUnprocessableEntity},
		{"not on board", board.ErrNotOnBoard, http.StatusNotFound},
		{"unauthenticated", client.ErrUnauthenticated, http.StatusUnauthorized},
		{"expired", &client.APIError{Status: 401, Err: client.ErrSessionExpired}, http.StatusUnauthorized},
		{"overlap", &client.APIError{Status: 400, Message: "El pabellón ya está ocupado"}, http.StatusBadRequest},
		{"network", errors.New("dial tcp: refused"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, ServerOptions{})
			h.mut.mu.Lock()
			h.mut.err = tc.err
			h.mut.mu.Unlock()
			resp := h.do(t, http.MethodDelete, "/cirugias/10", "")
			if resp.StatusCode != tc.want {
				t.Fatalf("status=%d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestEvents(t *testing.T) {
	t.Parallel()
	h := newHarness(t, ServerOptions{})
	resp := h.do(t, http.MethodGet, "/events?cirugia_id=10&limit=5&since=2025-03-01T08:00:00Z", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var got []store.StatusChangeRecord
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].New != models.EstadoEnCurso {
		t.Fatalf("events = %+v", got)
	}
	h.events.mu.Lock()
	defer h.events.mu.Unlock()
	if h.events.opts.CirugiaID != 10 || h.events.opts.Limit != 5 || h.events.opts.Since.IsZero() {
		t.Errorf("opts = %+v", h.events.opts)
	}
	if resp := h.do(t, http.MethodGet, "/events?since=yesterday", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad since status=%d", resp.StatusCode)
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()
	h := newHarness(t, ServerOptions{APIKey: "secret"})

	if resp := h.do(t, http.MethodGet, "/health", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /health without key: %d", resp.StatusCode)
	}
	if resp := h.do(t, http.MethodGet, "/board", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("GET /board without key: %d", resp.StatusCode)
	}
	if resp := h.do(t, http.MethodGet, "/board?api_key=secret", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /board with api_key query: %d", resp.StatusCode)
	}
	req, _ := http.NewRequest(http.MethodGet, h.ts.URL+"/board", nil)
	req.Header.Set("X-API-Key", "wrong")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("GET /board with wrong key: %d", resp.StatusCode)
	}
}

func TestStream_boardUpdate(t *testing.T) {
	t.Parallel()
	h := newHarness(t, ServerOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, h.ts.URL+"/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /stream: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	waitFor := func(substr string) {
		t.Helper()
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream closed before %s", substr)
				}
				if strings.HasPrefix(line, "data: ") && strings.Contains(line, substr) {
					return
				}
			case <-ctx.Done():
				t.Fatalf("timed out waiting for %s", substr)
			}
		}
	}
	waitFor(`"type":"connected"`)

	if n := h.app.Hub.Subscribers(); n != 1 {
		t.Fatalf("subscribers = %d", n)
	}
	h.board.Apply(context.Background(), h.board.BeginCycle(), sampleRooms(), board.ModeMerge)
	waitFor(`"type":"board_update"`)
}
