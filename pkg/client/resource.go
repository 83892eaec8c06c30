package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ankittk/pabellon/pkg/models"
)

// Resource is the typed CRUD surface for one backend collection (e.g. /pacientes).
type Resource[T any] struct {
	c    *Client
	path string // collection path without trailing slash
}

func (r Resource[T]) itemPath(id int64) string {
	return r.path + "/" + strconv.FormatInt(id, 10)
}

// List returns GET <path>/?query. The server makes no ordering promise.
func (r Resource[T]) List(ctx context.Context, query url.Values) ([]T, error) {
	p := r.path + "/"
	if len(query) > 0 {
		p += "?" + query.Encode()
	}
	var out []T
	err := r.c.doJSON(ctx, http.MethodGet, p, nil, &out)
	return out, err
}

// Get returns one record.
func (r Resource[T]) Get(ctx context.Context, id int64) (*T, error) {
	var out T
	if err := r.c.doJSON(ctx, http.MethodGet, r.itemPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create POSTs payload and returns the created record.
func (r Resource[T]) Create(ctx context.Context, payload any) (*T, error) {
	var out T
	if err := r.c.doJSON(ctx, http.MethodPost, r.path+"/", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update PUTs the full payload.
func (r Resource[T]) Update(ctx context.Context, id int64, payload any) (*T, error) {
	var out T
	if err := r.c.doJSON(ctx, http.MethodPut, r.itemPath(id), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Patch sends a partial payload.
func (r Resource[T]) Patch(ctx context.Context, id int64, partial any) (*T, error) {
	var out T
	if err := r.c.doJSON(ctx, http.MethodPatch, r.itemPath(id), partial, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes one record.
func (r Resource[T]) Delete(ctx context.Context, id int64) error {
	return r.c.doJSON(ctx, http.MethodDelete, r.itemPath(id), nil, nil)
}

func (c *Client) Pabellones() Resource[models.Pabellon] {
	return Resource[models.Pabellon]{c: c, path: "/pabellones"}
}

func (c *Client) Cirugias() Resource[models.Cirugia] {
	return Resource[models.Cirugia]{c: c, path: "/cirugias"}
}

func (c *Client) Pacientes() Resource[models.Paciente] {
	return Resource[models.Paciente]{c: c, path: "/pacientes"}
}

func (c *Client) TiposCirugia() Resource[models.TipoCirugia] {
	return Resource[models.TipoCirugia]{c: c, path: "/tipos-cirugia"}
}

func (c *Client) Usuarios() Resource[models.Usuario] {
	return Resource[models.Usuario]{c: c, path: "/usuarios"}
}
