// Package refdata caches the patient, doctor and surgery-type lists used to
// turn ids on the board into display names.
package refdata

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ankittk/pabellon/pkg/models"
)

// Source fetches the reference lists. *client.Client satisfies it.
type Source interface {
	ListPacientes(ctx context.Context) ([]models.Paciente, error)
	ListDoctores(ctx context.Context) ([]models.Usuario, error)
	ListTiposCirugia(ctx context.Context) ([]models.TipoCirugia, error)
}

// Cache holds the last successfully fetched copy of each list.
type Cache struct {
	src Source
	log *zap.Logger

	mu        sync.RWMutex
	pacientes map[int64]string
	doctores  map[int64]string
	tipos     map[int64]string
}

// New returns an empty cache. A nil logger uses zap.L().
func New(src Source, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.L()
	}
	return &Cache{
		src:       src,
		log:       log.Named("refdata"),
		pacientes: map[int64]string{},
		doctores:  map[int64]string{},
		tipos:     map[int64]string{},
	}
}

// Refresh fetches the three lists concurrently. Each list replaces its cache
// only when its own fetch succeeds; the others are unaffected by a failure.
// The returned error joins every fetch failure.
func (c *Cache) Refresh(ctx context.Context) error {
	var (
		g    errgroup.Group
		errs [3]error
	)
	g.Go(func() error {
		list, err := c.src.ListPacientes(ctx)
		if err != nil {
			errs[0] = fmt.Errorf("pacientes: %w", err)
			return errs[0]
		}
		m := make(map[int64]string, len(list))
		for _, p := range list {
			m[p.ID] = p.Nombre
		}
		c.replace(&c.pacientes, m)
		return nil
	})
	g.Go(func() error {
		list, err := c.src.ListDoctores(ctx)
		if err != nil {
			errs[1] = fmt.Errorf("doctores: %w", err)
			return errs[1]
		}
		m := make(map[int64]string, len(list))
		for _, u := range list {
			m[u.ID] = u.NombreCompleto
		}
		c.replace(&c.doctores, m)
		return nil
	})
	g.Go(func() error {
		list, err := c.src.ListTiposCirugia(ctx)
		if err != nil {
			errs[2] = fmt.Errorf("tipos de cirugia: %w", err)
			return errs[2]
		}
		m := make(map[int64]string, len(list))
		for _, t := range list {
			m[t.ID] = t.Nombre
		}
		c.replace(&c.tipos, m)
		return nil
	})
	_ = g.Wait()
	err := errors.Join(errs[:]...)
	if err != nil {
		c.log.Warn("reference data refresh incomplete", zap.Error(err))
	}
	return err
}

func (c *Cache) replace(dst *map[int64]string, m map[int64]string) {
	c.mu.Lock()
	*dst = m
	c.mu.Unlock()
}

func (c *Cache) lookup(m *map[int64]string, id int64) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := (*m)[id]
	return name, ok && name != ""
}

// PatientName resolves a patient id, falling back to "Paciente #<id>".
func (c *Cache) PatientName(id int64) string {
	if name, ok := c.lookup(&c.pacientes, id); ok {
		return name
	}
	return fmt.Sprintf("Paciente #%d", id)
}

// DoctorName resolves a doctor id, falling back to "Doctor #<id>".
func (c *Cache) DoctorName(id int64) string {
	if name, ok := c.lookup(&c.doctores, id); ok {
		return name
	}
	return fmt.Sprintf("Doctor #%d", id)
}

// SurgeryTypeName resolves a surgery-type id, falling back to "Tipo #<id>".
func (c *Cache) SurgeryTypeName(id int64) string {
	if name, ok := c.lookup(&c.tipos, id); ok {
		return name
	}
	return fmt.Sprintf("Tipo #%d", id)
}

// Sizes reports how many entries each cache holds.
func (c *Cache) Sizes() (pacientes, doctores, tipos int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pacientes), len(c.doctores), len(c.tipos)
}
