package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/services"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

type contextKey string

const ContextKeyActor = contextKey("actor")

// ExtractCredential picks the request's credential: the Authorization
// header wins over the session cookie.
func ExtractCredential(r *http.Request) models.Credential {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok && strings.TrimSpace(token) != "" {
			return models.BearerCredential{Token: strings.TrimSpace(token)}
		}
	}
	if c, err := r.Cookie(utils.FieldSessionCookieName); err == nil && c.Value != "" {
		return models.FieldSessionCredential{Token: c.Value}
	}
	return models.NoCredential{}
}

// IdentityMiddleware resolves the actor once per request and stores it in
// the context. Unresolvable credentials get 401; accounts without a role 403.
func IdentityMiddleware(identity services.IdentityService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := identity.Resolve(r.Context(), ExtractCredential(r))
			if err != nil {
				switch {
				case errors.Is(err, utils.ErrTokenExpired):
					utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeTokenExpired, "Token expired", nil, err)
				case errors.Is(err, utils.ErrNoRole):
					utils.RespondErrorWithCode(w, http.StatusForbidden, utils.ErrCodeNoRole, "no role", nil, err)
				case errors.Is(err, utils.ErrUnauthenticated):
					utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Unauthenticated", nil, err)
				default:
					utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Failed to resolve identity", nil, err)
				}
				return
			}
			ctx := context.WithValue(r.Context(), ContextKeyActor, *actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFromContext returns the actor stored by IdentityMiddleware.
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	a, ok := ctx.Value(ContextKeyActor).(models.Actor)
	return a, ok
}

// WithActor is used by tests and internal callers that already know the actor.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}
