package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/oakdental/frontdesk/internal/service"
)

type contextKeyAuth string

// ClaimsKey is the context key for the verified session claims.
const ClaimsKey contextKeyAuth = "session_claims"

// RequireAdmin returns an HTTP middleware that admits only requests carrying
// a valid session token in "Authorization: Bearer <token>".
//
// A missing or non-Bearer header is answered with 401; a token that fails
// verification with 403. On success the claims are attached to the request
// context, see ClaimsFrom.
func RequireAdmin(verifier *service.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				writeJSONError(w, http.StatusForbidden, "Invalid token")
				return
			}

			noteAdmin(r.Context(), claims.ID)
			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// ClaimsFrom extracts the session claims from the context. Returns nil for
// requests that did not pass through RequireAdmin.
func ClaimsFrom(ctx context.Context) *service.Claims {
	if c, ok := ctx.Value(ClaimsKey).(*service.Claims); ok {
		return c
	}
	return nil
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
