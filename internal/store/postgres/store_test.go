package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ankittk/pabellon/internal/board"
	"github.com/ankittk/pabellon/internal/store"
	"github.com/ankittk/pabellon/pkg/models"
)

func TestOpen_skipIfNoDatabaseURL(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping postgres test")
	}
	j, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = j.Close() }()
	ctx := context.Background()

	id := time.Now().UnixNano()
	err = j.RecordStatusChanges(ctx, []board.StatusChange{
		{CirugiaID: id, PabellonID: 1, Pabellon: "Pabellón 1", Old: models.EstadoProgramada, New: models.EstadoEnCurso, Cycle: 3},
	})
	if err != nil {
		t.Fatalf("RecordStatusChanges: %v", err)
	}
	got, err := j.ListStatusChanges(ctx, store.ListOptions{CirugiaID: id})
	if err != nil {
		t.Fatalf("ListStatusChanges: %v", err)
	}
	if len(got) != 1 || got[0].New != models.EstadoEnCurso {
		t.Fatalf("got %+v", got)
	}
	if err := j.SaveSnapshot(ctx, 9, []board.RoomAssignments{{Pabellon: models.Pabellon{ID: 1, Nombre: "P1"}}}); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	snap, err := j.LoadSnapshot(ctx)
	if err != nil || snap == nil || snap.Cycle != 9 {
		t.Fatalf("LoadSnapshot: %+v, %v", snap, err)
	}
}

func TestOpen_requiresDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Open(""); err == nil {
		t.Fatal("expected error without DSN")
	}
}
