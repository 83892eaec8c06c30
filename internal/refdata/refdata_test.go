package refdata

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ankittk/pabellon/pkg/models"
)

type fakeSource struct {
	pacientes    []models.Paciente
	doctores     []models.Usuario
	tipos        []models.TipoCirugia
	pacientesErr error
	doctoresErr  error
	tiposErr     error
}

func (f *fakeSource) ListPacientes(context.Context) ([]models.Paciente, error) {
	return f.pacientes, f.pacientesErr
}

func (f *fakeSource) ListDoctores(context.Context) ([]models.Usuario, error) {
	return f.doctores, f.doctoresErr
}

func (f *fakeSource) ListTiposCirugia(context.Context) ([]models.TipoCirugia, error) {
	return f.tipos, f.tiposErr
}

func TestCache_fallbacksBeforeRefresh(t *testing.T) {
	c := New(&fakeSource{}, nil)
	if got := c.PatientName(3); got != "Paciente #3" {
		t.Errorf("PatientName: %q", got)
	}
	if got := c.DoctorName(4); got != "Doctor #4" {
		t.Errorf("DoctorName: %q", got)
	}
	if got := c.SurgeryTypeName(5); got != "Tipo #5" {
		t.Errorf("SurgeryTypeName: %q", got)
	}
}

func TestCache_refresh(t *testing.T) {
	src := &fakeSource{
		pacientes: []models.Paciente{{ID: 1, Nombre: "Ana Pérez"}},
		doctores:  []models.Usuario{{ID: 2, NombreCompleto: "Dr. Soto", Rol: "Doctor"}},
		tipos:     []models.TipoCirugia{{ID: 3, Nombre: "Apendicectomía"}},
	}
	c := New(src, nil)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if c.PatientName(1) != "Ana Pérez" || c.DoctorName(2) != "Dr. Soto" || c.SurgeryTypeName(3) != "Apendicectomía" {
		t.Errorf("names: %q %q %q", c.PatientName(1), c.DoctorName(2), c.SurgeryTypeName(3))
	}
	if c.PatientName(99) != "Paciente #99" {
		t.Errorf("unknown id should fall back")
	}
}

// Doctor fetch fails while patients succeed: patients resolve, doctors fall
// back, nothing panics, and the previous doctor cache survives.
func TestCache_partialFailure(t *testing.T) {
	src := &fakeSource{
		pacientes: []models.Paciente{{ID: 1, Nombre: "Ana"}},
		doctores:  []models.Usuario{{ID: 2, NombreCompleto: "Dr. Soto"}},
		tipos:     []models.TipoCirugia{{ID: 3, Nombre: "Bypass"}},
	}
	c := New(src, nil)

	src.doctoresErr = errors.New("boom")
	err := c.Refresh(context.Background())
	if err == nil || !strings.Contains(err.Error(), "doctores") {
		t.Fatalf("expected doctores error, got %v", err)
	}
	if c.PatientName(1) != "Ana" {
		t.Errorf("patient name: %q", c.PatientName(1))
	}
	if c.DoctorName(2) != "Doctor #2" {
		t.Errorf("doctor should fall back: %q", c.DoctorName(2))
	}

	src.doctoresErr = nil
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	src.pacientes = nil
	src.pacientesErr = errors.New("down")
	_ = c.Refresh(context.Background())
	if c.PatientName(1) != "Ana" {
		t.Errorf("failed refresh must keep previous patients: %q", c.PatientName(1))
	}
	if c.DoctorName(2) != "Dr. Soto" {
		t.Errorf("doctor name: %q", c.DoctorName(2))
	}
	p, d, ty := c.Sizes()
	if p != 1 || d != 1 || ty != 1 {
		t.Errorf("Sizes: %d %d %d", p, d, ty)
	}
}
