package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tecnm-sys/apiserver/internal/logger"
	"github.com/tecnm-sys/apiserver/internal/services"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100

	maxBodyBytes = 1 << 20

	msgInvalidRequest = "Solicitud inválida"
	msgInvalidID      = "ID inválido"
	msgInternal       = "Error interno del servidor"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`

	// Error carries the internal error text. Only set in dev.
	Error string `json:"error,omitempty"`
}

// MessageResponse is the body of a successful request without payload.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders err returned by a service. Unclassified errors
// are logged and reported as 500; their text is only exposed when dev is set.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, dev bool) {
	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		writeError(w, statusFromError(err), svcErr.Message)
		return
	}

	logger.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	resp := ErrorResponse{Message: msgInternal}
	if dev {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}

// decodeJSON reads a JSON body of at most limit bytes into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, limit int64) error {
	body := http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	return nil
}

// writeDecodeError reports a body that could not be decoded.
func writeDecodeError(w http.ResponseWriter, err error, tooLargeMessage string) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge, tooLargeMessage)
		return
	}
	writeError(w, http.StatusBadRequest, msgInvalidRequest)
}

func parseID(r *http.Request) (int, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New(msgInvalidID)
	}
	return id, nil
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("Página inválida")
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("Límite inválido")
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	return page, limit, (page - 1) * limit, nil
}
