package types

import "time"

const DefaultInstitutionStatus = "active"

// Institution represents a school registered by a user.
// Careers are linked through the institution_careers relation.
type Institution struct {
	ID     int `json:"id" db:"id"`
	UserID int `json:"userId" db:"user_id"`

	Name string `json:"nombre" db:"nombre"`

	// CCT is the official school key (clave CCT). Unique across institutions.
	CCT string `json:"claveCCT" db:"clave_cct"`

	Phone          string `json:"telefono" db:"telefono"`
	Extension      string `json:"extension" db:"extension"`
	Email          string `json:"correo" db:"correo"`
	Representative string `json:"nombreRepresentante" db:"nombre_representante"`
	Position       string `json:"puestoRepresentante" db:"puesto_representante"`
	Address        string `json:"direccion" db:"direccion"`

	Logo *string `json:"logo" db:"logo"`

	// Status is "active" unless set otherwise.
	Status string `json:"estado" db:"estado"`

	// CareerIDs are the linked careers. Written on create/update.
	CareerIDs []int `json:"careerIds,omitempty" db:"-"`

	// CareerNames are the names of the linked careers.
	CareerNames []string `json:"carreras" db:"-"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
