package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tecnm-sys/apiserver/internal/services"
	"github.com/tecnm-sys/apiserver/types"
)

const (
	msgCareerCreated  = "Carrera creada exitosamente"
	msgCareerUpdated  = "Carrera actualizada exitosamente"
	msgCareerDeleted  = "Carrera eliminada exitosamente"
	msgMetricsUpdated = "Métricas actualizadas exitosamente"
	msgLogoTooBig     = "El logo es demasiado grande"
)

// CareerHandler provides HTTP handlers for careers.
type CareerHandler struct {
	careers *services.CareerService
	dev     bool
}

func NewCareerHandler(careers *services.CareerService, dev bool) *CareerHandler {
	return &CareerHandler{careers: careers, dev: dev}
}

// CareerRouter registers career routes on the given router.
func CareerRouter(r chi.Router, careers *services.CareerService, authz *Authorizer, dev bool) {
	handler := NewCareerHandler(careers, dev)

	r.Get("/available", handler.ListAvailable)
	r.With(authz.Require(types.RoleAdmin)).Get("/", handler.ListCareers)

	r.Group(func(r chi.Router) {
		r.Use(authz.Require())
		r.Get("/my", handler.ListMine)
		r.Post("/", handler.CreateCareer)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handler.GetCareer)
			r.Put("/", handler.UpdateCareer)
			r.Delete("/", handler.DeleteCareer)
			r.Put("/metrics", handler.UpdateMetrics)
		})
	})
}

// CareerRequest is the writable representation of a career.
type CareerRequest struct {
	Name               string     `json:"nombre"`
	Number             string     `json:"numeroCarrera"`
	Students           int        `json:"cantidadAlumnos"`
	Semesters          int        `json:"duracionSemestres"`
	Modality           string     `json:"modalidad"`
	Shift              string     `json:"turno"`
	Description        string     `json:"descripcion"`
	Active             *bool      `json:"activa"`
	ExpectedPopulation int        `json:"poblacionEsperada"`
	ActualPopulation   int        `json:"poblacionReal"`
	Logo               *string    `json:"logo"`
	RegisteredAt       *time.Time `json:"fechaRegistro"`
}

func (req CareerRequest) career(id int) types.Career {
	career := types.Career{
		ID:                 id,
		Name:               req.Name,
		Number:             req.Number,
		Students:           req.Students,
		Semesters:          req.Semesters,
		Modality:           req.Modality,
		Shift:              req.Shift,
		Description:        req.Description,
		Active:             true,
		ExpectedPopulation: req.ExpectedPopulation,
		ActualPopulation:   req.ActualPopulation,
		Logo:               req.Logo,
	}
	if req.Active != nil {
		career.Active = *req.Active
	}
	if req.RegisteredAt != nil {
		career.RegisteredAt = *req.RegisteredAt
	}
	return career
}

type CareerResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Career  types.Career `json:"career"`
}

type CareerListResponse struct {
	Success bool           `json:"success"`
	Careers []types.Career `json:"careers"`
	Count   int            `json:"count"`
}

type CareerPageResponse struct {
	Success bool           `json:"success"`
	Careers []types.Career `json:"careers"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
	Total   int            `json:"total"`
}

// ListCareers returns a page of all careers. Admin only.
func (h *CareerHandler) ListCareers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	careers, total, err := h.careers.List(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}
	writeJSON(w, http.StatusOK, CareerPageResponse{
		Success: true,
		Careers: careers,
		Page:    page,
		Limit:   limit,
		Total:   total,
	})
}

func (h *CareerHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	careers, err := h.careers.Available(r.Context())
	if err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}
	writeJSON(w, http.StatusOK, CareerListResponse{Success: true, Careers: careers, Count: len(careers)})
}

func (h *CareerHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	careers, err := h.careers.Mine(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}
	writeJSON(w, http.StatusOK, CareerListResponse{Success: true, Careers: careers, Count: len(careers)})
}

func (h *CareerHandler) GetCareer(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	career, err := h.careers.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}
	writeJSON(w, http.StatusOK, CareerResponse{Success: true, Career: career})
}

func (h *CareerHandler) CreateCareer(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var req CareerRequest
	if err := decodeJSON(w, r, &req, maxAvatarBodyBytes); err != nil {
		writeDecodeError(w, err, msgLogoTooBig)
		return
	}

	created, err := h.careers.Create(r.Context(), actor, req.career(0))
	if err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}
	writeJSON(w, http.StatusCreated, CareerResponse{Success: true, Message: msgCareerCreated, Career: created})
}

func (h *CareerHandler) UpdateCareer(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req CareerRequest
	if err := decodeJSON(w, r, &req, maxAvatarBodyBytes); err != nil {
		writeDecodeError(w, err, msgLogoTooBig)
		return
	}

	updated, err := h.careers.Update(r.Context(), actor, req.career(id))
	if err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}
	writeJSON(w, http.StatusOK, CareerResponse{Success: true, Message: msgCareerUpdated, Career: updated})
}

func (h *CareerHandler) UpdateMetrics(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req types.CareerMetrics
	if err := decodeJSON(w, r, &req, maxBodyBytes); err != nil {
		writeDecodeError(w, err, msgInvalidRequest)
		return
	}

	updated, err := h.careers.UpdateMetrics(r.Context(), actor, id, req)
	if err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}
	writeJSON(w, http.StatusOK, CareerResponse{Success: true, Message: msgMetricsUpdated, Career: updated})
}

func (h *CareerHandler) DeleteCareer(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.careers.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: msgCareerDeleted})
}
