package handlers

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/tecnm-sys/apiserver/internal/auth"
	"github.com/tecnm-sys/apiserver/internal/logger"
	"github.com/tecnm-sys/apiserver/internal/metrics"
	"github.com/tecnm-sys/apiserver/internal/services"
	"github.com/tecnm-sys/apiserver/types"
)

const bearerPrefix = "Bearer "

const (
	msgTokenMissing     = "Token no proporcionado"
	msgTokenFormat      = "Formato de token inválido"
	msgTokenExpired     = "Token expirado"
	msgTokenInvalid     = "Token inválido"
	msgPermissionDenied = "Acceso denegado: permisos insuficientes"
)

type contextKey string

const contextClaimsKey contextKey = "claims"

// ForbiddenResponse is returned when a valid token lacks the required role.
type ForbiddenResponse struct {
	Success       bool         `json:"success"`
	Message       string       `json:"message"`
	RequiredRoles []types.Role `json:"requiredRoles"`
	UserRole      types.Role   `json:"userRole"`
}

// Authorizer builds middleware that authenticates bearer tokens.
type Authorizer struct {
	tokens  *auth.TokenService
	metrics *metrics.Metrics
}

func NewAuthorizer(tokens *auth.TokenService, m *metrics.Metrics) *Authorizer {
	return &Authorizer{tokens: tokens, metrics: m}
}

// Require authenticates the request and, when roles is non-empty, rejects
// callers whose role is not listed. Decoded claims are stored in the context.
func (a *Authorizer) Require(roles ...types.Role) func(http.Handler) http.Handler {
	allowed := slices.Clone(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				a.reject(w, metrics.ReasonMissing, msgTokenMissing)
				return
			}
			if !strings.HasPrefix(header, bearerPrefix) {
				a.reject(w, metrics.ReasonScheme, msgTokenFormat)
				return
			}
			token := strings.TrimSpace(header[len(bearerPrefix):])
			if token == "" {
				a.reject(w, metrics.ReasonScheme, msgTokenFormat)
				return
			}

			claims, err := a.tokens.Decode(token)
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					a.reject(w, metrics.ReasonExpired, msgTokenExpired)
					return
				}
				logger.FromRequest(r).Debug().Err(err).Msg("token rejected")
				a.reject(w, metrics.ReasonMalformed, msgTokenInvalid)
				return
			}

			ctx := context.WithValue(r.Context(), contextClaimsKey, claims)
			if len(allowed) > 0 && !slices.Contains(allowed, claims.Role) {
				a.metrics.TokenRejected(metrics.ReasonForbidden)
				writeJSON(w, http.StatusForbidden, ForbiddenResponse{
					Message:       msgPermissionDenied,
					RequiredRoles: allowed,
					UserRole:      claims.Role,
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *Authorizer) reject(w http.ResponseWriter, reason, message string) {
	a.metrics.TokenRejected(reason)
	writeError(w, http.StatusUnauthorized, message)
}

// ClaimsFromContext returns the claims stored by Authorizer.Require.
func ClaimsFromContext(ctx context.Context) (auth.Claims, bool) {
	claims, ok := ctx.Value(contextClaimsKey).(auth.Claims)
	return claims, ok
}

// actorFromRequest returns the authenticated caller. It writes a 401 and
// reports false when the request was not authenticated.
func actorFromRequest(w http.ResponseWriter, r *http.Request) (services.Actor, bool) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok || claims.UserID < 1 {
		writeError(w, http.StatusUnauthorized, msgTokenMissing)
		return services.Actor{}, false
	}
	return services.Actor{UserID: claims.UserID, Role: claims.Role}, true
}
