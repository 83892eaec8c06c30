package board

import (
	"github.com/ankittk/pabellon/pkg/models"
)

// Labeler resolves reference ids to display names. *refdata.Cache satisfies it.
type Labeler interface {
	PatientName(id int64) string
	DoctorName(id int64) string
	SurgeryTypeName(id int64) string
}

// Card is one assignment as shown on the board.
type Card struct {
	models.Cirugia
	Paciente     string `json:"paciente"`
	Doctor       string `json:"doctor"`
	Tipo         string `json:"tipo"`
	TotalMinutes int    `json:"total_minutes"`
	Class        string `json:"class"`
}

// RoomView is one room column.
type RoomView struct {
	models.Pabellon
	TotalMinutes int    `json:"total_minutes"`
	Cards        []Card `json:"cirugias"`
}

// View is the derived, ordered board used for rendering and export.
type View struct {
	Cycle uint64     `json:"cycle"`
	Rooms []RoomView `json:"pabellones"`
}

// View builds the rendered board. A nil labeler leaves names empty.
func (b *Board) View(labels Labeler) View {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v := View{Cycle: b.applied, Rooms: make([]RoomView, 0, len(b.rooms))}
	for _, r := range b.rooms {
		rv := RoomView{Pabellon: r.pab, Cards: make([]Card, 0, len(r.ids))}
		for _, id := range r.ids {
			c := *b.entries[id]
			card := Card{Cirugia: c, TotalMinutes: c.TotalMinutes(), Class: CardClass(c)}
			if labels != nil {
				switch {
				case c.EsAseo:
					card.Paciente = "Aseo"
				case c.PacienteID != nil:
					card.Paciente = labels.PatientName(*c.PacienteID)
				}
				if c.DoctorID != nil {
					card.Doctor = labels.DoctorName(*c.DoctorID)
				}
				card.Tipo = labels.SurgeryTypeName(c.TipoCirugiaID)
			}
			rv.TotalMinutes += card.TotalMinutes
			rv.Cards = append(rv.Cards, card)
		}
		v.Rooms = append(v.Rooms, rv)
	}
	return v
}

// CardClass is the board color class for an assignment. Cleaning tasks are
// always "sky"; surgeries follow their status.
func CardClass(c models.Cirugia) string {
	if c.EsAseo || c.Estado == models.EstadoEnAseo {
		return "sky"
	}
	switch c.Estado {
	case models.EstadoEnCurso:
		return "amber"
	case models.EstadoComplicada:
		return "rose"
	case models.EstadoFinalizada:
		return "emerald"
	case models.EstadoCancelada:
		return "neutral"
	default:
		return "gray"
	}
}
