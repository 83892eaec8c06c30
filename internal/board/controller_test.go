package board

import (
	"context"
	"errors"
	"testing"

	"github.com/ankittk/pabellon/pkg/models"
)

type gwCall struct {
	op     string
	id     int64
	input  models.CirugiaInput
	estado models.Estado
	value  int64
}

type fakeGateway struct {
	calls []gwCall
	err   error
}

func (g *fakeGateway) CreateCirugia(_ context.Context, in models.CirugiaInput) (*models.Cirugia, error) {
	g.calls = append(g.calls, gwCall{op: "create", input: in})
	if g.err != nil {
		return nil, g.err
	}
	return &models.Cirugia{ID: 99, PabellonID: in.PabellonID}, nil
}

func (g *fakeGateway) UpdateCirugia(_ context.Context, id int64, in models.CirugiaInput) (*models.Cirugia, error) {
	g.calls = append(g.calls, gwCall{op: "update", id: id, input: in})
	if g.err != nil {
		return nil, g.err
	}
	return &models.Cirugia{ID: id}, nil
}

func (g *fakeGateway) UpdateEstado(_ context.Context, id int64, estado models.Estado) (*models.Cirugia, error) {
	g.calls = append(g.calls, gwCall{op: "estado", id: id, estado: estado})
	if g.err != nil {
		return nil, g.err
	}
	return &models.Cirugia{ID: id, Estado: estado}, nil
}

func (g *fakeGateway) SetExtraTime(_ context.Context, id int64, minutes int) (*models.Cirugia, error) {
	g.calls = append(g.calls, gwCall{op: "extra_time", id: id, value: int64(minutes)})
	if g.err != nil {
		return nil, g.err
	}
	return &models.Cirugia{ID: id, ExtraTime: minutes}, nil
}

func (g *fakeGateway) MoveCirugia(_ context.Context, id, to int64) (*models.Cirugia, error) {
	g.calls = append(g.calls, gwCall{op: "move", id: id, value: to})
	if g.err != nil {
		return nil, g.err
	}
	return &models.Cirugia{ID: id, PabellonID: to}, nil
}

type fakeRefresher struct{ modes []Mode }

func (r *fakeRefresher) Refresh(_ context.Context, m Mode) error {
	r.modes = append(r.modes, m)
	return nil
}

func newController(t *testing.T) (*Controller, *fakeGateway, *fakeRefresher, *Board) {
	t.Helper()
	b := New()
	extra := cir(10, 1, models.EstadoEnCurso)
	extra.ExtraTime = 10
	apply(t, b, ModeReplace, RoomAssignments{Pabellon: pab(1, "P1"), Cirugias: []models.Cirugia{extra}})
	gw := &fakeGateway{}
	rf := &fakeRefresher{}
	return NewController(gw, b, rf, nil), gw, rf, b
}

func validForm() CirugiaForm {
	return CirugiaForm{
		PacienteID: "1", DoctorID: "2", TipoCirugiaID: "3", PabellonID: "4",
		Fecha: "2025-03-01", HoraInicio: "08:30", DuracionProgramada: "90",
	}
}

func TestMove_sameRoomSendsNothing(t *testing.T) {
	c, gw, rf, _ := newController(t)
	if err := c.Move(context.Background(), 10, 1, 1); err != nil {
		t.Fatal(err)
	}
	if len(gw.calls) != 0 || len(rf.modes) != 0 {
		t.Errorf("calls=%v refreshes=%v", gw.calls, rf.modes)
	}
}

func TestMove_otherRoomOnePatch(t *testing.T) {
	c, gw, rf, _ := newController(t)
	if err := c.Move(context.Background(), 10, 1, 2); err != nil {
		t.Fatal(err)
	}
	if len(gw.calls) != 1 || gw.calls[0].op != "move" || gw.calls[0].value != 2 {
		t.Fatalf("calls: %+v", gw.calls)
	}
	if len(rf.modes) != 1 || rf.modes[0] != ModeReplace {
		t.Errorf("refreshes: %v", rf.modes)
	}
}

func TestMove_failureForcesRefresh(t *testing.T) {
	c, gw, rf, _ := newController(t)
	gw.err = errors.New("conflict")
	if err := c.Move(context.Background(), 10, 1, 2); err == nil {
		t.Fatal("expected error")
	}
	if len(rf.modes) != 1 || rf.modes[0] != ModeReplace {
		t.Errorf("failed move must hard refresh: %v", rf.modes)
	}
}

func TestAddExtraTime_sendsAbsolute(t *testing.T) {
	c, gw, _, _ := newController(t)
	if err := c.AddExtraTime(context.Background(), 10, 15); err != nil {
		t.Fatal(err)
	}
	if len(gw.calls) != 1 || gw.calls[0].value != 25 {
		t.Fatalf("extra-time request: %+v (want 25)", gw.calls)
	}
}

func TestAddExtraTime_rejectsNegative(t *testing.T) {
	c, gw, rf, _ := newController(t)
	err := c.AddExtraTime(context.Background(), 10, -5)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(gw.calls) != 0 || len(rf.modes) != 0 {
		t.Errorf("calls=%v refreshes=%v", gw.calls, rf.modes)
	}
	if _, err := ParseMinutes("diez"); !errors.As(err, &verr) {
		t.Errorf("ParseMinutes(diez): %v", err)
	}
	if n, err := ParseMinutes(" 15 "); err != nil || n != 15 {
		t.Errorf("ParseMinutes: %d %v", n, err)
	}
}

func TestAddExtraTime_notOnBoard(t *testing.T) {
	c, gw, _, _ := newController(t)
	if err := c.AddExtraTime(context.Background(), 404, 5); !errors.Is(err, ErrNotOnBoard) {
		t.Fatalf("expected ErrNotOnBoard, got %v", err)
	}
	if len(gw.calls) != 0 {
		t.Errorf("calls: %+v", gw.calls)
	}
}

func TestCreate_missingRequiredFieldsNoNetwork(t *testing.T) {
	for _, tc := range []struct {
		name  string
		clear func(*CirugiaForm)
		field string
	}{
		{"fecha", func(f *CirugiaForm) { f.Fecha = "" }, "fecha"},
		{"hora_inicio", func(f *CirugiaForm) { f.HoraInicio = "" }, "hora_inicio"},
		{"tipo_cirugia_id", func(f *CirugiaForm) { f.TipoCirugiaID = "" }, "tipo_cirugia_id"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, gw, rf, _ := newController(t)
			form := validForm()
			tc.clear(&form)
			_, err := c.Create(context.Background(), form)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, f := range verr.Fields {
				found = found || f == tc.field
			}
			if !found {
				t.Errorf("fields %v missing %s", verr.Fields, tc.field)
			}
			if len(gw.calls) != 0 || len(rf.modes) != 0 {
				t.Errorf("calls=%v refreshes=%v", gw.calls, rf.modes)
			}
		})
	}
}

func TestCreate_coercesAndRefreshes(t *testing.T) {
	c, gw, rf, _ := newController(t)
	out, err := c.Create(context.Background(), validForm())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if out.ID != 99 {
		t.Errorf("created: %+v", out)
	}
	in := gw.calls[0].input
	if in.PacienteID != 1 || in.DoctorID != 2 || in.TipoCirugiaID != 3 || in.PabellonID != 4 {
		t.Errorf("ids not coerced: %+v", in)
	}
	if in.DuracionProgramada == nil || *in.DuracionProgramada != 90 {
		t.Errorf("duracion: %v", in.DuracionProgramada)
	}
	if in.ID != 0 {
		t.Errorf("create must not carry an id: %d", in.ID)
	}
	if len(rf.modes) != 1 || rf.modes[0] != ModeReplace {
		t.Errorf("refreshes: %v", rf.modes)
	}
}

func TestCreate_badNumberRejected(t *testing.T) {
	c, gw, _, _ := newController(t)
	form := validForm()
	form.DoctorID = "dos"
	_, err := c.Create(context.Background(), form)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields[0] != "doctor_id" {
		t.Fatalf("expected doctor_id validation error, got %v", err)
	}
	if len(gw.calls) != 0 {
		t.Errorf("calls: %+v", gw.calls)
	}
}

func TestCreate_serverFailureLeavesBoard(t *testing.T) {
	c, gw, rf, b := newController(t)
	gw.err = errors.New("El pabellón ya tiene una cirugía en ese horario")
	last := b.LastCycle()
	if _, err := c.Create(context.Background(), validForm()); err == nil {
		t.Fatal("expected error")
	}
	if len(rf.modes) != 0 || b.LastCycle() != last {
		t.Errorf("failed write must not refresh: %v", rf.modes)
	}
}

func TestUpdate_sendsID(t *testing.T) {
	c, gw, _, _ := newController(t)
	if _, err := c.Update(context.Background(), 10, validForm()); err != nil {
		t.Fatal(err)
	}
	if gw.calls[0].op != "update" || gw.calls[0].id != 10 {
		t.Errorf("calls: %+v", gw.calls)
	}
	if _, err := c.Update(context.Background(), 0, validForm()); err == nil {
		t.Error("update without id should fail")
	}
}

func TestDelete_suspends(t *testing.T) {
	c, gw, rf, _ := newController(t)
	if err := c.Delete(context.Background(), 10); err != nil {
		t.Fatal(err)
	}
	if len(gw.calls) != 1 || gw.calls[0].op != "estado" || gw.calls[0].estado != models.EstadoCancelada {
		t.Fatalf("calls: %+v", gw.calls)
	}
	if len(rf.modes) != 1 {
		t.Errorf("refreshes: %v", rf.modes)
	}
}

func TestTransition(t *testing.T) {
	c, gw, _, _ := newController(t)
	if err := c.Transition(context.Background(), 10, models.EstadoComplicada); err != nil {
		t.Fatal(err)
	}
	if gw.calls[0].estado != models.EstadoComplicada {
		t.Errorf("calls: %+v", gw.calls)
	}
	var verr *ValidationError
	if err := c.Transition(context.Background(), 10, "TERMINADA"); !errors.As(err, &verr) {
		t.Errorf("unknown status: %v", err)
	}
	if len(gw.calls) != 1 {
		t.Errorf("unknown status must not be sent: %+v", gw.calls)
	}
}
