package middleware

import (
	"context"
	"net/http"
	"strings"

	"talentflow/internal/app"
	"talentflow/internal/common"
	"talentflow/internal/domain/application"
	"talentflow/internal/http/response"
	"talentflow/internal/security"
)

type contextKey string

const ContextActorKey contextKey = "actor"

type AuthMiddleware struct {
	jwt *security.JWTProvider
}

func NewAuthMiddleware(jwt *security.JWTProvider) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Error(w, r, common.NewError(common.CodeUnauthorized, "missing authorization header", nil))
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			response.Error(w, r, common.NewError(common.CodeUnauthorized, "invalid authorization header", nil))
			return
		}
		claims, err := m.jwt.Parse(parts[1])
		if err != nil {
			response.Error(w, r, common.NewError(common.CodeUnauthorized, "invalid token", err))
			return
		}
		actor, err := actorFromClaims(claims)
		if err != nil {
			response.Error(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ContextActorKey, actor)))
	})
}

func actorFromClaims(claims *security.Claims) (app.Actor, error) {
	userID, err := common.ParseUUID(claims.UserID)
	if err != nil {
		return app.Actor{}, common.NewError(common.CodeUnauthorized, "invalid user id", err)
	}
	actor := app.Actor{UserID: userID, Role: normalizeRole(claims.Role)}
	if actor.Role == "" {
		return app.Actor{}, common.NewError(common.CodeUnauthorized, "unknown role", nil)
	}
	if actor.Role == application.RoleHRReviewer {
		orgID, err := common.ParseUUID(claims.OrgID)
		if err != nil {
			return app.Actor{}, common.NewError(common.CodeUnauthorized, "reviewer token without organization", err)
		}
		actor.OrganizationID = orgID
	}
	return actor, nil
}

func normalizeRole(value string) application.Role {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "candidate", "applicant", "student":
		return application.RoleCandidate
	case "hr_reviewer", "hr", "reviewer", "recruiter", "company":
		return application.RoleHRReviewer
	default:
		return ""
	}
}

func RequireRole(role application.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				response.Error(w, r, common.NewError(common.CodeForbidden, "role not found", nil))
				return
			}
			if actor.Role != role {
				response.Error(w, r, common.NewError(common.CodeForbidden, "insufficient role", nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ActorFromContext(ctx context.Context) (app.Actor, bool) {
	actor, ok := ctx.Value(ContextActorKey).(app.Actor)
	return actor, ok
}

func WithActor(ctx context.Context, actor app.Actor) context.Context {
	return context.WithValue(ctx, ContextActorKey, actor)
}
