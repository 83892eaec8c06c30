package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ankittk/pabellon/internal/board"
	"github.com/ankittk/pabellon/pkg/models"
)

var change = board.StatusChange{
	CirugiaID: 10, PabellonID: 1, Pabellon: "Pabellón 1",
	Old: models.EstadoProgramada, New: models.EstadoEnCurso, Cycle: 3,
}

type fakeNotifier struct {
	name string
	err  error
	got  []board.StatusChange
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) Notify(_ context.Context, c []board.StatusChange) error {
	f.got = append(f.got, c...)
	return f.err
}

func TestRegistry_RegisterGet(t *testing.T) {
	reg := NewRegistry(nil)
	a := &fakeNotifier{name: "a"}
	reg.Register(a)
	reg.Register(&fakeNotifier{name: "b"})
	if reg.Get("a") != a {
		t.Fatal("Get(a)")
	}
	if reg.Get("nonexistent") != nil {
		t.Fatal("Get(nonexistent) should be nil")
	}
	if names := reg.Names(); len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Names: %v", names)
	}
	if err := reg.Notify(context.Background(), "missing", nil); err == nil {
		t.Error("Notify on unknown name should fail")
	}
}

func TestRegistry_failureDoesNotStopOthers(t *testing.T) {
	reg := NewRegistry(nil)
	bad := &fakeNotifier{name: "bad", err: errors.New("down")}
	good := &fakeNotifier{name: "good"}
	reg.Register(bad)
	reg.Register(good)
	reg.NotifyStatusChanges(context.Background(), []board.StatusChange{change})
	if len(bad.got) != 1 || len(good.got) != 1 {
		t.Fatalf("bad=%d good=%d", len(bad.got), len(good.got))
	}
}

func TestMessage(t *testing.T) {
	if got := Message(change); got != "Pabellón 1: cirugía #10 PROGRAMADA → EN_CURSO" {
		t.Errorf("Message: %q", got)
	}
	c := change
	c.Pabellon = ""
	if got := Message(c); !strings.HasPrefix(got, "Pabellón #1:") {
		t.Errorf("Message without name: %q", got)
	}
}

type hubFunc func(v any)

func (h hubFunc) PublishJSON(v any) { h(v) }

func TestSSE_publishesStatusChange(t *testing.T) {
	var events []map[string]any
	n := SSE{Hub: hubFunc(func(v any) { events = append(events, v.(map[string]any)) })}
	if err := n.Notify(context.Background(), []board.StatusChange{change, change}); err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0]["type"] != "status_change" || events[0]["cirugia_id"] != int64(10) {
		t.Errorf("events: %+v", events)
	}
}

type recorderFunc func([]board.StatusChange) error

func (r recorderFunc) RecordStatusChanges(_ context.Context, c []board.StatusChange) error { return r(c) }

func TestJournal(t *testing.T) {
	var n int
	j := Journal{Store: recorderFunc(func(c []board.StatusChange) error { n += len(c); return nil })}
	if err := j.Notify(context.Background(), []board.StatusChange{change}); err != nil || n != 1 {
		t.Fatalf("Journal: n=%d err=%v", n, err)
	}
	if (Log{}).Notify(context.Background(), []board.StatusChange{change}) != nil {
		t.Error("Log.Notify")
	}
}

func TestSlackWebhook_Notify_mockHTTP(t *testing.T) {
	var text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method: %s", r.Method)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		text = body["text"]
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := SlackWebhook{WebhookURL: srv.URL}
	if err := s.Notify(context.Background(), []board.StatusChange{change}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if !strings.Contains(text, "cirugía #10") {
		t.Errorf("text: %q", text)
	}
}

func TestSlackWebhook_Notify_errors(t *testing.T) {
	if err := (SlackWebhook{}).Notify(context.Background(), []board.StatusChange{change}); err == nil {
		t.Fatal("expected error when webhook URL empty")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	if err := (SlackWebhook{WebhookURL: srv.URL}).Notify(context.Background(), []board.StatusChange{change}); err == nil {
		t.Fatal("expected error on 403")
	}
}

func TestNewRedis_unreachable(t *testing.T) {
	if _, err := NewRedis("127.0.0.1:1", "", "pabellon:status", nil); err == nil {
		t.Fatal("expected connection error")
	}
}
