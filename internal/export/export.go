// Package export renders the board view as a spreadsheet or a calendar feed.
package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ankittk/pabellon/internal/board"
	"github.com/ankittk/pabellon/pkg/models"
)

var (
	ErrEmptyBoard = errors.New("export: board has no rooms")
	ErrGenerate   = errors.New("export: failed to generate file")
)

// Format is an export file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatICS  Format = "ics"
)

// ParseFormat accepts "xlsx" or "ics" (case-insensitive) or a file name
// ending in one of them.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "xlsx" || strings.HasSuffix(s, ".xlsx"):
		return FormatXLSX, nil
	case s == "ics" || strings.HasSuffix(s, ".ics"):
		return FormatICS, nil
	}
	return "", fmt.Errorf("export: unknown format %q (want xlsx or ics)", s)
}

// Filename is the suggested file name for a board export of day fecha.
func Filename(f Format, fecha string) string {
	if fecha == "" {
		fecha = "tablero"
	}
	return fmt.Sprintf("pabellones_%s.%s", fecha, f)
}

// startTime combines fecha (YYYY-MM-DD) and hora (HH:MM or HH:MM:SS) in loc.
func startTime(fecha, hora string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, fecha+" "+hora, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("export: invalid start %q %q", fecha, hora)
}

// endTime is start plus scheduled and extra minutes; with no duration it
// falls back to the server's estimated end time.
func endTime(c board.Card, start time.Time, loc *time.Location) time.Time {
	if c.TotalMinutes > 0 || c.HoraFinEstimada == "" {
		return start.Add(time.Duration(c.TotalMinutes) * time.Minute)
	}
	if t, err := startTime(c.Fecha, c.HoraFinEstimada, loc); err == nil && t.After(start) {
		return t
	}
	return start
}

func hhmm(hora string) string {
	if len(hora) >= 5 {
		return hora[:5]
	}
	return hora
}

func title(c board.Card) string {
	if c.EsAseo {
		return "Aseo"
	}
	parts := make([]string, 0, 2)
	if c.Tipo != "" {
		parts = append(parts, c.Tipo)
	}
	if c.Paciente != "" {
		parts = append(parts, c.Paciente)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Cirugía #%d", c.ID)
	}
	return strings.Join(parts, " · ")
}

func estadoLabel(e models.Estado) string {
	return strings.ReplaceAll(string(e), "_", " ")
}
