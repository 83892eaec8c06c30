package board

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/ankittk/pabellon/internal/otel"
	"github.com/ankittk/pabellon/internal/validate"
	"github.com/ankittk/pabellon/pkg/models"
)

// ErrNotOnBoard is returned when an operation needs the held copy of an
// assignment that the board does not have.
var ErrNotOnBoard = errors.New("cirugia not on board")

// ValidationError is a client-side rejection; no request was sent.
type ValidationError struct {
	Fields []string
	Msg    string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation: " + e.Msg
	}
	return fmt.Sprintf("validation: %s (%s)", e.Msg, strings.Join(e.Fields, ", "))
}

// Gateway is the write side of the backend. *client.Client satisfies it.
type Gateway interface {
	CreateCirugia(ctx context.Context, in models.CirugiaInput) (*models.Cirugia, error)
	UpdateCirugia(ctx context.Context, id int64, in models.CirugiaInput) (*models.Cirugia, error)
	UpdateEstado(ctx context.Context, id int64, estado models.Estado) (*models.Cirugia, error)
	SetExtraTime(ctx context.Context, id int64, minutes int) (*models.Cirugia, error)
	MoveCirugia(ctx context.Context, id, pabellonID int64) (*models.Cirugia, error)
}

// Refresher runs a refresh cycle. *Poller satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, mode Mode) error
}

// CirugiaForm is a create/edit form as typed by the user: every field is text.
type CirugiaForm struct {
	PacienteID         string `json:"paciente_id"`
	DoctorID           string `json:"doctor_id"`
	TipoCirugiaID      string `json:"tipo_cirugia_id"`
	PabellonID         string `json:"pabellon_id"`
	Fecha              string `json:"fecha"`
	HoraInicio         string `json:"hora_inicio"`
	DuracionProgramada string `json:"duracion_programada"`
	ExtraTime          string `json:"extra_time"`
}

// Input coerces the form into a request body and validates it. Missing
// patient, doctor, type, room, date or start time is a *ValidationError.
func (f CirugiaForm) Input() (models.CirugiaInput, error) {
	var (
		in  models.CirugiaInput
		bad []string
	)
	ids := []struct {
		name string
		raw  string
		dst  *int64
	}{
		{"paciente_id", f.PacienteID, &in.PacienteID},
		{"doctor_id", f.DoctorID, &in.DoctorID},
		{"tipo_cirugia_id", f.TipoCirugiaID, &in.TipoCirugiaID},
		{"pabellon_id", f.PabellonID, &in.PabellonID},
	}
	for _, id := range ids {
		raw := strings.TrimSpace(id.raw)
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			bad = append(bad, id.name)
			continue
		}
		*id.dst = n
	}
	in.Fecha = strings.TrimSpace(f.Fecha)
	in.HoraInicio = strings.TrimSpace(f.HoraInicio)
	if s := strings.TrimSpace(f.DuracionProgramada); s != "" {
		n, err := ParseMinutes(s)
		if err != nil {
			bad = append(bad, "duracion_programada")
		} else {
			in.DuracionProgramada = &n
		}
	}
	if s := strings.TrimSpace(f.ExtraTime); s != "" {
		n, err := ParseMinutes(s)
		if err != nil {
			bad = append(bad, "extra_time")
		} else {
			in.ExtraTime = n
		}
	}
	if len(bad) > 0 {
		return in, &ValidationError{Fields: bad, Msg: "must be a non-negative number"}
	}
	if err := validate.Struct(in); err != nil {
		var verrs validate.Errors
		if errors.As(err, &verrs) {
			return in, &ValidationError{Fields: verrs.Fields(), Msg: "missing or invalid fields"}
		}
		return in, err
	}
	return in, nil
}

// ParseMinutes parses a non-negative whole number of minutes from user input.
func ParseMinutes(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &ValidationError{Msg: fmt.Sprintf("%q is not a number of minutes", s)}
	}
	if n < 0 {
		return 0, &ValidationError{Msg: "minutes must not be negative"}
	}
	return n, nil
}

// Controller turns user actions into backend calls. It never writes to the
// board: a successful call is followed by a replace refresh, and a failed
// call leaves the board as it was.
type Controller struct {
	gw      Gateway
	board   *Board
	refresh Refresher
	log     *zap.Logger
}

// NewController wires a controller. A nil logger uses zap.L().
func NewController(gw Gateway, b *Board, r Refresher, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.L()
	}
	return &Controller{gw: gw, board: b, refresh: r, log: log.Named("controller")}
}

func (c *Controller) hardRefresh(ctx context.Context, op string) {
	if c.refresh == nil {
		return
	}
	if err := c.refresh.Refresh(ctx, ModeReplace); err != nil && !errors.Is(err, ErrStopped) {
		c.log.Warn("refresh after mutation failed", zap.String("operation", op), zap.Error(err))
	}
}

// run wraps a mutation with a span, a metric and the success refresh.
func (c *Controller) run(ctx context.Context, op string, id int64, fn func(ctx context.Context) error) error {
	ctx, span := otel.Tracer().Start(ctx, "board."+op)
	span.SetAttributes(otel.AttrOperation.String(op), otel.AttrCirugia.Int64(id))
	defer span.End()

	err := fn(ctx)
	otel.RecordMutation(ctx, op, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var verr *ValidationError
		if !errors.As(err, &verr) {
			c.log.Info("mutation failed", zap.String("operation", op), zap.Int64("cirugia_id", id), zap.Error(err))
		}
		return err
	}
	c.hardRefresh(ctx, op)
	return nil
}

// Create validates form and creates the surgery. The backend also schedules
// its cleaning task.
func (c *Controller) Create(ctx context.Context, form CirugiaForm) (*models.Cirugia, error) {
	var out *models.Cirugia
	err := c.run(ctx, "create", 0, func(ctx context.Context) error {
		in, err := form.Input()
		if err != nil {
			return err
		}
		out, err = c.gw.CreateCirugia(ctx, in)
		return err
	})
	return out, err
}

// Update validates form and replaces surgery id.
func (c *Controller) Update(ctx context.Context, id int64, form CirugiaForm) (*models.Cirugia, error) {
	var out *models.Cirugia
	err := c.run(ctx, "update", id, func(ctx context.Context) error {
		if id <= 0 {
			return &ValidationError{Fields: []string{"id"}, Msg: "id is required"}
		}
		in, err := form.Input()
		if err != nil {
			return err
		}
		out, err = c.gw.UpdateCirugia(ctx, id, in)
		return err
	})
	return out, err
}

// Delete suspends surgery id: it is moved to CANCELADA rather than removed,
// so its history and linked cleaning task stay consistent on the backend.
func (c *Controller) Delete(ctx context.Context, id int64) error {
	return c.run(ctx, "delete", id, func(ctx context.Context) error {
		_, err := c.gw.UpdateEstado(ctx, id, models.EstadoCancelada)
		return err
	})
}

// Move reassigns surgery id from room from to room to. Equal rooms send
// nothing. A failed move forces a replace refresh so any optimistic drag in
// the view snaps back.
func (c *Controller) Move(ctx context.Context, id, from, to int64) error {
	if from == to {
		return nil
	}
	err := c.run(ctx, "move", id, func(ctx context.Context) error {
		if to <= 0 {
			return &ValidationError{Fields: []string{"pabellon_id"}, Msg: "destination room is required"}
		}
		_, err := c.gw.MoveCirugia(ctx, id, to)
		return err
	})
	var verr *ValidationError
	if err != nil && !errors.As(err, &verr) {
		c.hardRefresh(ctx, "move")
	}
	return err
}

// AddExtraTime adds delta minutes to the surgery's current extra time and
// sends the resulting absolute value.
func (c *Controller) AddExtraTime(ctx context.Context, id int64, delta int) error {
	return c.run(ctx, "extra_time", id, func(ctx context.Context) error {
		if delta < 0 {
			return &ValidationError{Fields: []string{"extra_time"}, Msg: "minutes must not be negative"}
		}
		cur, ok := c.board.Lookup(id)
		if !ok {
			return fmt.Errorf("cirugia %d: %w", id, ErrNotOnBoard)
		}
		_, err := c.gw.SetExtraTime(ctx, id, cur.ExtraTime+delta)
		return err
	})
}

// Transition requests estado for surgery id. Whether the transition is
// allowed is decided by the backend.
func (c *Controller) Transition(ctx context.Context, id int64, estado models.Estado) error {
	return c.run(ctx, "transition", id, func(ctx context.Context) error {
		if !estado.Valid() {
			return &ValidationError{Fields: []string{"nuevo_estado"}, Msg: fmt.Sprintf("unknown status %q", estado)}
		}
		_, err := c.gw.UpdateEstado(ctx, id, estado)
		return err
	})
}
