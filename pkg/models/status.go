package models

// Estado is the surgery status as sent by the backend. The client treats
// transitions as opaque: it requests a target and reconciles whatever comes back.
type Estado string

// Surgery statuses (backend wire values).
const (
	EstadoProgramada Estado = "PROGRAMADA" // scheduled
	EstadoEnCurso    Estado = "EN_CURSO"   // in progress
	EstadoEnAseo     Estado = "EN_ASEO"    // room turnover (cleaning)
	EstadoComplicada Estado = "COMPLICADA" // running into extra time
	EstadoFinalizada Estado = "FINALIZADA" // completed
	EstadoCancelada  Estado = "CANCELADA"  // cancelled / suspended
	EstadoLibre      Estado = "LIBRE"
)

// Valid reports whether e is a status the backend knows about.
func (e Estado) Valid() bool {
	switch e {
	case EstadoProgramada, EstadoEnCurso, EstadoEnAseo, EstadoComplicada,
		EstadoFinalizada, EstadoCancelada, EstadoLibre:
		return true
	}
	return false
}

// Terminal reports whether no further automatic transition is expected.
func (e Estado) Terminal() bool {
	return e == EstadoFinalizada || e == EstadoCancelada
}

// User roles that count as doctors for label resolution.
const (
	RolDoctor = "Doctor"
	RolMedico = "Medico"
)

// Default limits.
const (
	DefaultMaxRequestBodyBytes = 1 << 20 // 1 MiB
	DefaultSSEChannelBuffer    = 256
	DefaultEventListLimit      = 200
	DefaultPollIntervalSec     = 10
)
