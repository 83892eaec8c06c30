package export

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/ankittk/pabellon/internal/board"
	"github.com/ankittk/pabellon/pkg/models"
)

// ICS writes one VEVENT per assignment. Times are read in loc (nil means
// time.Local). Assignments without a parseable start are skipped and
// counted in the second return value.
func ICS(v board.View, loc *time.Location, now time.Time) (string, int, error) {
	if len(v.Rooms) == 0 {
		return "", 0, ErrEmptyBoard
	}
	if loc == nil {
		loc = time.Local
	}
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//pabellon//tablero//ES")
	cal.SetXWRCalName("Pabellones")

	skipped := 0
	for _, r := range v.Rooms {
		for _, c := range r.Cards {
			start, err := startTime(c.Fecha, c.HoraInicio, loc)
			if err != nil {
				skipped++
				continue
			}
			ev := cal.AddEvent(fmt.Sprintf("cirugia-%d@pabellon", c.ID))
			ev.SetDtStampTime(now)
			ev.SetStartAt(start)
			ev.SetEndAt(endTime(c, start, loc))
			ev.SetSummary(title(c))
			ev.SetLocation(r.Nombre)
			desc := "Estado: " + estadoLabel(c.Estado)
			if c.Doctor != "" {
				desc = "Doctor: " + c.Doctor + "\n" + desc
			}
			ev.SetDescription(desc)
			if c.Estado == models.EstadoCancelada {
				ev.SetStatus(ics.ObjectStatusCancelled)
			} else {
				ev.SetStatus(ics.ObjectStatusConfirmed)
			}
		}
	}
	return cal.Serialize(), skipped, nil
}
