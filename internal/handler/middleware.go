package handler

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/boddenberg/dealdesk-bfa/internal/infra/client"
	"github.com/boddenberg/dealdesk-bfa/internal/service"
)

// SessionMiddleware requires a Bearer token and a tenant, then attaches
// both to the request context so backend calls are made on the caller's
// behalf. Tokens are only checked when verifier is set. A verified token's
// tenant_id claim is authoritative and an X-Tenant-ID that disagrees with it
// is refused; otherwise the tenant comes from X-Tenant-ID, then defaultTenant.
func SessionMiddleware(verifier *service.SessionVerifier, defaultTenant string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid authorization header")
				return
			}
			token := strings.TrimSpace(parts[1])

			tenant := strings.TrimSpace(r.Header.Get("X-Tenant-ID"))
			if verifier != nil {
				claims, err := verifier.Verify(token)
				if err != nil {
					logger.Warn("auth: invalid or expired token",
						zap.String("path", r.URL.Path),
						zap.String("remote_addr", r.RemoteAddr),
						zap.Error(err),
					)
					writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
					return
				}
				if claims.TenantID != "" {
					if tenant != "" && tenant != claims.TenantID {
						logger.Warn("auth: tenant mismatch",
							zap.String("path", r.URL.Path),
							zap.String("remote_addr", r.RemoteAddr),
							zap.String("claim_tenant", claims.TenantID),
							zap.String("header_tenant", tenant),
						)
						writeError(w, http.StatusForbidden, "tenant_mismatch", "X-Tenant-ID does not match the session tenant")
						return
					}
					tenant = claims.TenantID
				}
			}
			if tenant == "" {
				tenant = defaultTenant
			}
			if tenant == "" {
				writeError(w, http.StatusBadRequest, "tenant_required", "X-Tenant-ID header is required")
				return
			}

			ctx := client.WithCredentials(r.Context(), client.Credentials{Token: token, TenantID: tenant})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantFromContext returns the tenant resolved by SessionMiddleware.
func TenantFromContext(r *http.Request) string {
	creds, _ := client.CredentialsFrom(r.Context())
	return creds.TenantID
}
