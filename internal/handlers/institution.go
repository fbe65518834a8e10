package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tecnm-sys/apiserver/internal/services"
	"github.com/tecnm-sys/apiserver/types"
)

const (
	msgInstitutionCreated = "Institución creada exitosamente"
	msgInstitutionUpdated = "Institución actualizada exitosamente"
	msgInstitutionDeleted = "Institución eliminada exitosamente"
)

// InstitutionHandler provides HTTP handlers for institutions.
type InstitutionHandler struct {
	institutions *services.InstitutionService
	dev          bool
}

func NewInstitutionHandler(institutions *services.InstitutionService, dev bool) *InstitutionHandler {
	return &InstitutionHandler{institutions: institutions, dev: dev}
}

// InstitutionRouter registers institution routes on the given router.
func InstitutionRouter(r chi.Router, institutions *services.InstitutionService, authz *Authorizer, dev bool) {
	handler := NewInstitutionHandler(institutions, dev)

	r.With(authz.Require(types.RoleAdmin)).Get("/", handler.ListInstitutions)

	r.Group(func(r chi.Router) {
		r.Use(authz.Require())
		r.Get("/my", handler.ListMine)
		r.Post("/", handler.CreateInstitution)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handler.GetInstitution)
			r.Put("/", handler.UpdateInstitution)
			r.Delete("/", handler.DeleteInstitution)
		})
	})
}

// InstitutionRequest is the writable representation of an institution.
// An absent careerIds keeps the existing links on update.
type InstitutionRequest struct {
	Name           string  `json:"nombre"`
	CCT            string  `json:"claveCCT"`
	Phone          string  `json:"telefono"`
	Extension      string  `json:"extension"`
	Email          string  `json:"correo"`
	Representative string  `json:"nombreRepresentante"`
	Position       string  `json:"puestoRepresentante"`
	Address        string  `json:"direccion"`
	Logo           *string `json:"logo"`
	Status         string  `json:"estado"`
	CareerIDs      []int   `json:"careerIds"`
}

func (req InstitutionRequest) institution(id int) types.Institution {
	return types.Institution{
		ID:             id,
		Name:           req.Name,
		CCT:            req.CCT,
		Phone:          req.Phone,
		Extension:      req.Extension,
		Email:          req.Email,
		Representative: req.Representative,
		Position:       req.Position,
		Address:        req.Address,
		Logo:           req.Logo,
		Status:         req.Status,
		CareerIDs:      req.CareerIDs,
	}
}

type InstitutionResponse struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message,omitempty"`
	Institution types.Institution `json:"institution"`
}

type InstitutionListResponse struct {
	Success      bool                `json:"success"`
	Institutions []types.Institution `json:"institutions"`
	Count        int                 `json:"count"`
}

type InstitutionPageResponse struct {
	Success      bool                `json:"success"`
	Institutions []types.Institution `json:"institutions"`
	Page         int                 `json:"page"`
	Limit        int                 `json:"limit"`
	Total        int                 `json:"total"`
}

// ListInstitutions returns a page of all institutions. Admin only.
func (h *InstitutionHandler) ListInstitutions(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	institutions, total, err := h.institutions.List(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}
	writeJSON(w, http.StatusOK, InstitutionPageResponse{
		Success:      true,
		Institutions: institutions,
		Page:         page,
		Limit:        limit,
		Total:        total,
	})
}

func (h *InstitutionHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	institutions, err := h.institutions.Mine(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}
	writeJSON(w, http.StatusOK, InstitutionListResponse{
		Success:      true,
		Institutions: institutions,
		Count:        len(institutions),
	})
}

func (h *InstitutionHandler) GetInstitution(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	inst, err := h.institutions.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}
	writeJSON(w, http.StatusOK, InstitutionResponse{Success: true, Institution: inst})
}

func (h *InstitutionHandler) CreateInstitution(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var req InstitutionRequest
	if err := decodeJSON(w, r, &req, maxAvatarBodyBytes); err != nil {
		writeDecodeError(w, err, msgLogoTooBig)
		return
	}

	created, err := h.institutions.Create(r.Context(), actor, req.institution(0))
	if err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}
	writeJSON(w, http.StatusCreated, InstitutionResponse{
		Success:     true,
		Message:     msgInstitutionCreated,
		Institution: created,
	})
}

func (h *InstitutionHandler) UpdateInstitution(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req InstitutionRequest
	if err := decodeJSON(w, r, &req, maxAvatarBodyBytes); err != nil {
		writeDecodeError(w, err, msgLogoTooBig)
		return
	}

	updated, err := h.institutions.Update(r.Context(), actor, req.institution(id))
	if err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}
	writeJSON(w, http.StatusOK, InstitutionResponse{
		Success:     true,
		Message:     msgInstitutionUpdated,
		Institution: updated,
	})
}

func (h *InstitutionHandler) DeleteInstitution(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.institutions.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: msgInstitutionDeleted})
}
