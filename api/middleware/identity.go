package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/shoplane/shoplane-backend/api/responses"
	pkgauth "github.com/shoplane/shoplane-backend/pkg/auth"
	"github.com/shoplane/shoplane-backend/pkg/config"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
	"github.com/shoplane/shoplane-backend/pkg/logger"
	"github.com/shoplane/shoplane-backend/pkg/types"
)

// Identity resolves the caller for every request. A bearer token, when
// present, must be valid and establishes the user id. Guests are tracked
// through a session cookie which is minted on first contact. Both ids are
// kept on the identity so a fresh login can still see the guest session it
// came from and merge that cart.
func Identity(jwtCfg config.JWTConfig, sessionCfg config.SessionConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			identity := types.Identity{}
			isAdmin := false

			if raw := strings.TrimSpace(r.Header.Get("Authorization")); raw != "" {
				token := raw
				if strings.HasPrefix(strings.ToLower(token), "bearer ") {
					token = strings.TrimSpace(token[7:])
				}
				if token == "" {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
					return
				}

				claims, err := pkgauth.ParseAccessToken(jwtCfg, token)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}

				userID := claims.UserID
				identity.UserID = &userID
				isAdmin = claims.IsAdmin
				if logg != nil {
					ctx = logg.WithUserID(ctx, userID.String())
				}
			}

			sessionID := readSessionCookie(r, sessionCfg.CookieName)
			if sessionID == "" && identity.UserID == nil {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     sessionCfg.CookieName,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   int(sessionCfg.TTL.Seconds()),
					HttpOnly: true,
					Secure:   sessionCfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			if sessionID != "" {
				identity.SessionID = &sessionID
				if logg != nil {
					ctx = logg.WithSessionID(ctx, sessionID)
				}
			}

			ctx = WithIdentity(ctx, identity)
			ctx = WithIsAdmin(ctx, isAdmin)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates a route group behind an authenticated admin token.
func RequireAdmin(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			if identity.UserID == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			if !IsAdminFromContext(r.Context()) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func readSessionCookie(r *http.Request, name string) string {
	if name == "" {
		return ""
	}
	cookie, err := r.Cookie(name)
	if err != nil || cookie == nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}
