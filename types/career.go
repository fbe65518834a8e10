package types

import "time"

const (
	DefaultCareerSemesters = 8
	DefaultCareerModality  = "Escolarizada"
	DefaultCareerShift     = "Matutino"
)

// Career represents an academic program registered by a user.
type Career struct {
	// ID is the unique identifier of the career.
	ID int `json:"id" db:"id"`

	// UserID is the owner of the record.
	UserID int `json:"userId" db:"user_id"`

	// Name is the program name.
	Name string `json:"nombre" db:"nombre"`

	// Number is the official program number.
	Number string `json:"numeroCarrera" db:"numero_carrera"`

	// Students is the current enrollment count.
	Students int `json:"cantidadAlumnos" db:"cantidad_alumnos"`

	// Semesters is the program length.
	Semesters int `json:"duracionSemestres" db:"duracion_semestres"`

	// Modality is the study mode, e.g. "Escolarizada".
	Modality string `json:"modalidad" db:"modalidad"`

	// Shift is the schedule, e.g. "Matutino".
	Shift string `json:"turno" db:"turno"`

	Description string `json:"descripcion" db:"descripcion"`

	// Active marks whether the program is currently offered.
	Active bool `json:"activa" db:"activa"`

	// ExpectedPopulation and ActualPopulation are the enrollment metrics.
	ExpectedPopulation int `json:"poblacionEsperada" db:"poblacion_esperada"`
	ActualPopulation   int `json:"poblacionReal" db:"poblacion_real"`

	// Logo is an optional inline image.
	Logo *string `json:"logo" db:"logo"`

	// RegisteredAt is the registration date.
	RegisteredAt time.Time `json:"fechaRegistro" db:"fecha_registro"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// CareerMetrics is the subset of Career updated by the metrics endpoint.
type CareerMetrics struct {
	ExpectedPopulation int `json:"poblacionEsperada"`
	ActualPopulation   int `json:"poblacionReal"`
}
