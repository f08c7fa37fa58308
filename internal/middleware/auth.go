package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const (
	UserIDKey     contextKey = "user_id"
	UserRoleKey   contextKey = "user_role"
	SessionKeyKey contextKey = "session_key"
)

var (
	errMissingAuthHeader = errors.New("missing authorization header")
	errAuthHeaderFormat  = errors.New("invalid authorization header format")
	errTokenExpired      = errors.New("token expired")
	errInvalidToken      = errors.New("invalid token")
	errInvalidClaims     = errors.New("invalid token claims")
)

// identity is what a verified identity-provider token asserts about the caller.
type identity struct {
	UserID string
	Role   string
}

// AuthMiddleware validates identity-provider JWTs and puts the user's id and role in the context
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authenticate(r, jwtSecret)
			if err != nil {
				logger.Debug("Authentication failed", zap.Error(err))
				RespondWithError(w, http.StatusUnauthorized, err.Error())
				return
			}

			logger.Debug("User authenticated",
				zap.String("user_id", id.UserID),
				zap.String("role", id.Role),
			)

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
		})
	}
}

// authenticate reads the bearer token from the request and verifies it.
func authenticate(r *http.Request, jwtSecret string) (identity, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return identity{}, errMissingAuthHeader
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return identity{}, errAuthHeaderFormat
	}

	return parseToken(parts[1], jwtSecret)
}

func parseToken(tokenString, jwtSecret string) (identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return identity{}, errTokenExpired
		}
		return identity{}, errInvalidToken
	}
	if !token.Valid {
		return identity{}, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return identity{}, errInvalidClaims
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return identity{}, errInvalidClaims
	}

	role, ok := claims["role"].(string)
	if !ok {
		return identity{}, errInvalidClaims
	}

	return identity{UserID: userID, Role: role}, nil
}

func withIdentity(ctx context.Context, id identity) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, id.UserID)
	return context.WithValue(ctx, UserRoleKey, id.Role)
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetUserRole extracts user role from request context
func GetUserRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(UserRoleKey).(string)
	return role, ok
}
