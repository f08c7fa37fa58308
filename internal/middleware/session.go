package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionIDHeader carries the anonymous shopper id the storefront generates on first visit.
const SessionIDHeader = "X-Session-ID"

// SessionMiddleware resolves the key a shopper's cart is stored under.
//
// A bearer token, when present, must be valid and yields "user:<user_id>"; the
// user id and role are also put in the context as AuthMiddleware does. Without
// one, a UUID in X-Session-ID yields "anon:<id>". Requests with neither are
// rejected with 400.
func SessionMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var sessionKey string
			if r.Header.Get("Authorization") != "" {
				id, err := authenticate(r, jwtSecret)
				if err != nil {
					logger.Debug("Session authentication failed", zap.Error(err))
					RespondWithError(w, http.StatusUnauthorized, err.Error())
					return
				}
				ctx = withIdentity(ctx, id)
				sessionKey = "user:" + id.UserID
			} else {
				raw := r.Header.Get(SessionIDHeader)
				if raw == "" {
					RespondWithError(w, http.StatusBadRequest, "missing "+SessionIDHeader+" header or bearer token")
					return
				}
				anonID, err := uuid.Parse(raw)
				if err != nil {
					RespondWithError(w, http.StatusBadRequest, "invalid "+SessionIDHeader+" header")
					return
				}
				sessionKey = "anon:" + anonID.String()
			}

			ctx = context.WithValue(ctx, SessionKeyKey, sessionKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionKey extracts the cart session key from request context
func GetSessionKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(SessionKeyKey).(string)
	return key, ok && key != ""
}
