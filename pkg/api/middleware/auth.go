// Package middleware provides HTTP middleware for the Obsync API.
package middleware

import (
	"net/http"
	"strings"

	"github.com/obsync/obsync/pkg/api/handlers"
	"github.com/obsync/obsync/pkg/auth"
)

// WebsocketAuthProtocol is the subprotocol name under which realtime clients
// carry their bearer token: Sec-WebSocket-Protocol: obsync-auth, <token>.
const WebsocketAuthProtocol = handlers.WebsocketAuthProtocol

// ExtractToken pulls the bearer token from the request. Sources, in order:
// the Authorization header, the websocket subprotocol list, and the legacy
// token query parameter (which is redacted from logs by the router).
func ExtractToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1], true
		}
		return "", false
	}

	if protocols := r.Header.Get("Sec-Websocket-Protocol"); protocols != "" {
		fields := strings.Split(protocols, ",")
		for i, f := range fields {
			if strings.TrimSpace(f) == WebsocketAuthProtocol && i+1 < len(fields) {
				return strings.TrimSpace(fields[i+1]), true
			}
		}
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}

	return "", false
}

// Authenticate resolves the request's bearer token to a principal and stores
// it in the context. Requests without a valid token are rejected with a 401
// envelope.
func Authenticate(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := ExtractToken(r)
			if !ok {
				handlers.WriteError(w, r, http.StatusUnauthorized, handlers.CodeUnauthorized,
					"authentication required", "supply a bearer token", nil)
				return
			}

			principal, err := tokens.Resolve(tokenString)
			if err != nil {
				handlers.WriteError(w, r, http.StatusUnauthorized, handlers.CodeUnauthorized,
					"invalid or expired token", "refresh the credential and retry", nil)
				return
			}

			ctx := auth.ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
