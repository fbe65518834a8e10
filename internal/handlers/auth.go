package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tecnm-sys/apiserver/internal/services"
	"github.com/tecnm-sys/apiserver/types"
)

// maxAvatarBodyBytes leaves room for the JSON envelope around a maximal avatar.
const maxAvatarBodyBytes = services.MaxAvatarBytes + 64<<10

const (
	msgRegistered       = "Usuario registrado exitosamente"
	msgLoggedIn         = "Login exitoso"
	msgProfileUpdated   = "Perfil actualizado exitosamente"
	msgPasswordChanged  = "Contraseña cambiada exitosamente"
	msgAvatarUpdated    = "Avatar actualizado exitosamente"
	msgAvatarBodyTooBig = "La imagen es demasiado grande (máximo 16MB)"
)

// AuthHandler provides account and authentication endpoints.
type AuthHandler struct {
	users *services.UserService
	dev   bool
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(users *services.UserService, dev bool) *AuthHandler {
	return &AuthHandler{users: users, dev: dev}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, users *services.UserService, authz *Authorizer, dev bool) {
	handler := NewAuthHandler(users, dev)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)

	r.Group(func(r chi.Router) {
		r.Use(authz.Require())
		r.Get("/verify", handler.Verify)
		r.Get("/profile", handler.Profile)
		r.Put("/profile", handler.UpdateProfile)
		r.Put("/update-full-profile", handler.UpdateFullProfile)
		r.Put("/change-password", handler.ChangePassword)
		r.Get("/avatar", handler.GetAvatar)
		r.Put("/avatar", handler.UpdateAvatar)
	})
	r.With(authz.Require(types.RoleAdmin)).Get("/users", handler.ListUsers)
}

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"nombreCompleto"`
	Phone       string `json:"telefono"`
	Institution string `json:"institucion"`
	Username    string `json:"username"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ProfileRequest is a partial profile. Absent fields are left untouched.
type ProfileRequest struct {
	Username    *string `json:"username"`
	Email       *string `json:"email"`
	FullName    *string `json:"nombreCompleto"`
	Phone       *string `json:"telefono"`
	Institution *string `json:"institucion"`
	Avatar      *string `json:"avatar"`
}

func (p ProfileRequest) patch() types.ProfilePatch {
	return types.ProfilePatch{
		Username:    p.Username,
		Email:       p.Email,
		FullName:    p.FullName,
		Phone:       p.Phone,
		Institution: p.Institution,
		Avatar:      p.Avatar,
	}
}

type FullProfileRequest struct {
	ProfileRequest
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type AvatarRequest struct {
	Avatar string `json:"avatar"`
}

type AuthResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Token   string     `json:"token"`
	User    types.User `json:"user"`
}

type UserResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	User    types.User `json:"user"`
}

type VerifyResponse struct {
	Success bool       `json:"success"`
	Valid   bool       `json:"valid"`
	User    types.User `json:"user"`
}

type UserListResponse struct {
	Success bool         `json:"success"`
	Users   []types.User `json:"users"`
	Count   int          `json:"count"`
}

// Register creates a new user account and returns a token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes); err != nil {
		writeDecodeError(w, err, msgInvalidRequest)
		return
	}

	result, err := h.users.Register(r.Context(), services.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		FullName:    req.FullName,
		Phone:       req.Phone,
		Institution: req.Institution,
		Username:    req.Username,
	})
	if err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{
		Success: true,
		Message: msgRegistered,
		Token:   result.Token,
		User:    result.User,
	})
}

// Login verifies credentials and returns a token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes); err != nil {
		writeDecodeError(w, err, msgInvalidRequest)
		return
	}

	result, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		Message: msgLoggedIn,
		Token:   result.Token,
		User:    result.User,
	})
}

// Verify confirms the token and returns its subject.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	user, err := h.users.Profile(r.Context(), actor.UserID)
	if err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}
	writeJSON(w, http.StatusOK, VerifyResponse{Success: true, Valid: true, User: user})
}

// Profile returns the current authenticated user.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	user, err := h.users.Profile(r.Context(), actor.UserID)
	if err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Success: true, User: user})
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var req ProfileRequest
	if err := decodeJSON(w, r, &req, maxAvatarBodyBytes); err != nil {
		writeDecodeError(w, err, msgAvatarBodyTooBig)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), actor.UserID, req.patch())
	if err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Success: true, Message: msgProfileUpdated, User: user})
}

func (h *AuthHandler) UpdateFullProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var req FullProfileRequest
	if err := decodeJSON(w, r, &req, maxAvatarBodyBytes); err != nil {
		writeDecodeError(w, err, msgAvatarBodyTooBig)
		return
	}

	user, err := h.users.UpdateFullProfile(r.Context(), actor.UserID, services.FullProfileInput{
		Patch:           req.patch(),
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Success: true, Message: msgProfileUpdated, User: user})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req, maxBodyBytes); err != nil {
		writeDecodeError(w, err, msgInvalidRequest)
		return
	}

	if err := h.users.ChangePassword(r.Context(), actor.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: msgPasswordChanged})
}

func (h *AuthHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var req AvatarRequest
	if err := decodeJSON(w, r, &req, maxAvatarBodyBytes); err != nil {
		writeDecodeError(w, err, msgAvatarBodyTooBig)
		return
	}

	user, err := h.users.UpdateAvatar(r.Context(), actor.UserID, req.Avatar)
	if err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Success: true, Message: msgAvatarUpdated, User: user})
}

// GetAvatar streams the caller's avatar image.
func (h *AuthHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	avatar, err := h.users.Avatar(r.Context(), actor.UserID)
	if err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}
	defer avatar.Body.Close()

	w.Header().Set("Content-Type", avatar.ContentType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, avatar.Body)
}

// ListUsers returns every user. Admin only.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, h.dev)
		return
	}
	writeJSON(w, http.StatusOK, UserListResponse{Success: true, Users: users, Count: len(users)})
}
