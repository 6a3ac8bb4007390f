package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

type subjectKey struct{}

// JWTAuth validates a signed JWT in the Authorization: Bearer header and
// stores its subject on the request context. The token must be HS256 with
// an expiry and a non-empty subject. An empty secret disables auth.
func JWTAuth(secret string) func(http.Handler) http.Handler {
	if secret == "" {
		return func(next http.Handler) http.Handler { return next }
	}

	keyFunc := func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := extractBearer(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing or malformed Authorization header", nil)
				return
			}

			var claims jwt.RegisteredClaims
			_, err := jwt.ParseWithClaims(raw, &claims, keyFunc,
				jwt.WithValidMethods([]string{"HS256"}),
				jwt.WithExpirationRequired(),
			)
			if err != nil {
				status, msg := jwtErrorResponse(err)
				writeError(w, status, msg, nil)
				return
			}
			if claims.Subject == "" {
				writeError(w, http.StatusUnauthorized, "token has no subject", nil)
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects requests whose token subject differs from the
// {userID} route parameter. It passes everything through when JWTAuth
// is disabled.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sub, ok := Subject(r.Context()); ok && sub != chi.URLParam(r, "userID") {
			writeError(w, http.StatusForbidden, "token does not grant access to this user", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Subject returns the authenticated user, if any.
func Subject(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(subjectKey{}).(string)
	return sub, ok
}

// extractBearer pulls the token string out of "Authorization: Bearer <token>".
func extractBearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// jwtErrorResponse maps jwt library errors to HTTP status codes and messages.
func jwtErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return http.StatusUnauthorized, "token expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return http.StatusUnauthorized, "token not yet valid"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return http.StatusForbidden, "invalid token signature"
	default:
		return http.StatusUnauthorized, "invalid token"
	}
}
