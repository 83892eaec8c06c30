// Package models provides the shared types for the pabellón backend API.
// Field names follow the backend JSON so values round-trip unchanged.
package models

// Pabellon is an operating room.
type Pabellon struct {
	ID         int64  `json:"id"`
	Nombre     string `json:"nombre"`
	EsCompleja bool   `json:"es_compleja"`
	Capacidad  int    `json:"capacidad"`
}

// PabellonInput is the create/update body for a room.
type PabellonInput struct {
	Nombre     string `json:"nombre" validate:"required"`
	EsCompleja bool   `json:"es_compleja"`
	Capacidad  int    `json:"capacidad" validate:"gte=1"`
}

// Cirugia is a surgery (or cleaning task when EsAseo) scheduled into a room.
// PabellonID is the authoritative owning room.
type Cirugia struct {
	ID                 int64  `json:"id"`
	PacienteID         *int64 `json:"paciente_id,omitempty"`
	DoctorID           *int64 `json:"doctor_id,omitempty"`
	PabellonID         int64  `json:"pabellon_id"`
	TipoCirugiaID      int64  `json:"tipo_cirugia_id"`
	Fecha              string `json:"fecha"`       // YYYY-MM-DD
	HoraInicio         string `json:"hora_inicio"` // HH:MM[:SS]
	DuracionProgramada *int   `json:"duracion_programada"`
	ExtraTime          int    `json:"extra_time"`
	Estado             Estado `json:"estado"`
	EsAseo             bool   `json:"es_aseo"`
	HoraFinEstimada    string `json:"hora_fin_estimada,omitempty"`
}

// TotalMinutes returns planned duration plus extra time.
func (c Cirugia) TotalMinutes() int {
	total := c.ExtraTime
	if c.DuracionProgramada != nil {
		total += *c.DuracionProgramada
	}
	return total
}

// CirugiaInput is the create/update body for a surgery. Zero ids are omitted
// from the JSON rather than sent as 0.
type CirugiaInput struct {
	ID                 int64  `json:"id,omitempty"`
	PacienteID         int64  `json:"paciente_id,omitempty" validate:"required"`
	DoctorID           int64  `json:"doctor_id,omitempty" validate:"required"`
	TipoCirugiaID      int64  `json:"tipo_cirugia_id,omitempty" validate:"required"`
	PabellonID         int64  `json:"pabellon_id,omitempty" validate:"required"`
	Fecha              string `json:"fecha" validate:"required,datetime=2006-01-02"`
	HoraInicio         string `json:"hora_inicio" validate:"required,hora"`
	DuracionProgramada *int   `json:"duracion_programada" validate:"omitempty,gte=0"`
	ExtraTime          int    `json:"extra_time" validate:"gte=0"`
}

// CirugiaFilter narrows GET /cirugias/. Zero values are not sent.
type CirugiaFilter struct {
	PabellonID int64
	Fecha      string
}

// Paciente is a patient record.
type Paciente struct {
	ID              int64  `json:"id"`
	Nombre          string `json:"nombre"`
	Rut             string `json:"rut,omitempty"`
	Telefono        string `json:"telefono,omitempty"`
	Email           string `json:"email,omitempty"`
	FechaNacimiento string `json:"fecha_nacimiento,omitempty"`
	Direccion       string `json:"direccion,omitempty"`
}

// PacienteInput is the create/update body for a patient.
type PacienteInput struct {
	Nombre          string `json:"nombre" validate:"required"`
	Rut             string `json:"rut,omitempty" validate:"omitempty,rut"`
	Telefono        string `json:"telefono,omitempty"`
	Email           string `json:"email,omitempty" validate:"omitempty,email"`
	FechaNacimiento string `json:"fecha_nacimiento,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Direccion       string `json:"direccion,omitempty"`
}

// TipoCirugia is a surgery type in the catalog.
type TipoCirugia struct {
	ID               int64  `json:"id"`
	Nombre           string `json:"nombre"`
	DuracionEstimada int    `json:"duracion_estimada"`
	Descripcion      string `json:"descripcion,omitempty"`
}

// TipoCirugiaInput is the create/update body for a surgery type.
type TipoCirugiaInput struct {
	Nombre           string `json:"nombre" validate:"required"`
	DuracionEstimada int    `json:"duracion_estimada" validate:"gte=1"`
	Descripcion      string `json:"descripcion,omitempty"`
}

// Usuario is a platform user; doctors are users with a doctor role.
type Usuario struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	NombreCompleto string `json:"nombre_completo"`
	Rol            string `json:"rol"`
	EsActivo       bool   `json:"es_activo"`
}

// IsDoctor reports whether the user is listed as a doctor.
func (u Usuario) IsDoctor() bool {
	return u.Rol == RolDoctor || u.Rol == RolMedico
}

// UsuarioInput is the create/update body for a user.
type UsuarioInput struct {
	Username       string `json:"username,omitempty"`
	NombreCompleto string `json:"nombre_completo" validate:"required"`
	Rol            string `json:"rol" validate:"required"`
	EsActivo       bool   `json:"es_activo"`
	Password       string `json:"password,omitempty"`
}

// Token is the POST /token response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// DashboardResumen is the GET /dashboard/resumen response.
type DashboardResumen struct {
	KPIs struct {
		TotalHoy    int `json:"total_hoy"`
		EnEjecucion int `json:"en_ejecucion"`
		Retrasos    int `json:"retrasos"`
		AseoActivo  int `json:"aseo_activo"`
	} `json:"kpis"`
	Proximas []struct {
		Hora     string `json:"hora"`
		Paciente string `json:"paciente"`
		Tipo     string `json:"tipo"`
		Pabellon string `json:"pabellon"`
	} `json:"proximas_cirugias"`
}
