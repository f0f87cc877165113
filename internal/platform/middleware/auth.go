package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"veribridge/internal/adminauth"
	dErrors "veribridge/pkg/domain-errors"
	"veribridge/pkg/platform/httputil"
	"veribridge/pkg/requestcontext"
)

// AdminValidator checks admin bearer tokens. Satisfied by
// adminauth.JWTService.
type AdminValidator interface {
	ValidateToken(tokenString string) (*adminauth.Claims, error)
}

// RequireAdmin guards the admin surface with a bearer JWT carrying the admin
// role.
func RequireAdmin(validator AdminValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "admin access without bearer token",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			if _, err := validator.ValidateToken(token); err != nil {
				logger.WarnContext(ctx, "admin access rejected",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
					"error", err,
				)
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
