package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ankittk/pabellon/pkg/models"
)

// ListPabellones returns every room (GET /pabellones/).
func (c *Client) ListPabellones(ctx context.Context) ([]models.Pabellon, error) {
	return c.Pabellones().List(ctx, nil)
}

// ListCirugias returns surgeries, optionally filtered by room and/or date.
func (c *Client) ListCirugias(ctx context.Context, f models.CirugiaFilter) ([]models.Cirugia, error) {
	q := url.Values{}
	if f.PabellonID != 0 {
		q.Set("pabellon_id", strconv.FormatInt(f.PabellonID, 10))
	}
	if f.Fecha != "" {
		q.Set("fecha", f.Fecha)
	}
	return c.Cirugias().List(ctx, q)
}

// CreateCirugia posts a new surgery. The backend also schedules its cleaning task.
func (c *Client) CreateCirugia(ctx context.Context, in models.CirugiaInput) (*models.Cirugia, error) {
	in.ID = 0
	return c.Cirugias().Create(ctx, in)
}

// UpdateCirugia replaces a surgery's fields (PUT /cirugias/{id}).
func (c *Client) UpdateCirugia(ctx context.Context, id int64, in models.CirugiaInput) (*models.Cirugia, error) {
	in.ID = id
	return c.Cirugias().Update(ctx, id, in)
}

// UpdateEstado requests a status transition (PATCH /cirugias/{id}/estado).
func (c *Client) UpdateEstado(ctx context.Context, id int64, estado models.Estado) (*models.Cirugia, error) {
	var out models.Cirugia
	body := map[string]models.Estado{"nuevo_estado": estado}
	err := c.doJSON(ctx, http.MethodPatch, c.Cirugias().itemPath(id)+"/estado", body, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SetExtraTime sets the absolute extra-time minutes (PATCH /cirugias/{id}/extra-time).
func (c *Client) SetExtraTime(ctx context.Context, id int64, minutes int) (*models.Cirugia, error) {
	var out models.Cirugia
	body := map[string]int{"extra_time": minutes}
	err := c.doJSON(ctx, http.MethodPatch, c.Cirugias().itemPath(id)+"/extra-time", body, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MoveCirugia reassigns a surgery to another room (PATCH /cirugias/{id} {pabellon_id}).
func (c *Client) MoveCirugia(ctx context.Context, id, pabellonID int64) (*models.Cirugia, error) {
	return c.Cirugias().Patch(ctx, id, map[string]int64{"pabellon_id": pabellonID})
}

// ActualizarEstados asks the backend to run its status state machine now.
func (c *Client) ActualizarEstados(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/cirugias/actualizar-estados", struct{}{}, nil)
}

// ListDoctores returns users with a doctor role.
func (c *Client) ListDoctores(ctx context.Context) ([]models.Usuario, error) {
	users, err := c.Usuarios().List(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := users[:0]
	for _, u := range users {
		if u.IsDoctor() {
			out = append(out, u)
		}
	}
	return out, nil
}

// ListPacientes returns every patient.
func (c *Client) ListPacientes(ctx context.Context) ([]models.Paciente, error) {
	return c.Pacientes().List(ctx, nil)
}

// ListTiposCirugia returns the surgery-type catalog.
func (c *Client) ListTiposCirugia(ctx context.Context) ([]models.TipoCirugia, error) {
	return c.TiposCirugia().List(ctx, nil)
}
