package services

import "errors"

// Error kinds. Handlers map each kind onto an HTTP status.
var (
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
)

// Error is a failure with a message safe to show to API clients.
// errors.Is(err, Kind) reports its category.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Client-facing messages.
const (
	msgRegisterRequired     = "Email, contraseña y nombre son requeridos"
	msgEmailRegistered      = "El email ya está registrado"
	msgLoginRequired        = "Email y contraseña requeridos"
	msgInvalidCredentials   = "Credenciales inválidas"
	msgPasswordTooShort     = "La contraseña debe tener al menos 6 caracteres"
	msgNewPasswordTooShort  = "La nueva contraseña debe tener al menos 6 caracteres"
	msgPasswordTooLong      = "La contraseña es demasiado larga"
	msgPasswordsRequired    = "Contraseña actual y nueva son requeridas"
	msgCurrentPasswordWrong = "La contraseña actual es incorrecta"
	msgUserNotFound         = "Usuario no encontrado"
	msgNothingToUpdate      = "No hay datos para actualizar"
	msgEmailInUse           = "El email ya está en uso por otro usuario"
	msgUsernameInUse        = "El nombre de usuario ya está en uso"
	msgEmailEmpty           = "El email no puede estar vacío"
	msgUsernameEmpty        = "El nombre de usuario no puede estar vacío"
	msgAvatarRequired       = "Avatar requerido"
	msgAvatarTooLarge       = "La imagen es demasiado grande (máximo 16MB)"
	msgAvatarInvalid        = "Formato de imagen inválido"
	msgAvatarNotFound       = "Avatar no encontrado"
	msgAccessDenied         = "No tienes permiso para acceder a este recurso"
	msgCareerRequired       = "Nombre y número de carrera son requeridos"
	msgCareerNotFound       = "Carrera no encontrada"
	msgMetricsInvalid       = "Las métricas no pueden ser negativas"
	msgInstitutionRequired  = "Nombre y clave CCT son requeridos"
	msgInstitutionNotFound  = "Institución no encontrada"
	msgCCTInUse             = "La clave CCT ya está registrada"
	msgCareerLinkInvalid    = "Una o más carreras no existen"
)
