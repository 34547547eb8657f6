package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
)

type ctxKeyUser struct{}

// User is the authenticated principal carried through request context.
type User struct {
	ID       string
	Username string
}

func UserFromContext(ctx context.Context) (User, bool) {
	v, ok := ctx.Value(ctxKeyUser{}).(User)
	return v, ok
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	u, ok := UserFromContext(ctx)
	return u.ID, ok
}

// WithUser injects the principal into context. Useful for testing.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKeyUser{}, u)
}

type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

type JWTVerifier struct {
	Secret []byte
}

func (v JWTVerifier) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return v.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// RequireUser middleware validates a Bearer token and injects the
// principal into the request context.
func RequireUser(verifier JWTVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := parseBearer(verifier, r.Header.Get("Authorization"))
			if err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			u := User{ID: claims.Subject, Username: strings.TrimSpace(claims.Username)}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// ParseQueryToken validates a token passed via query string. WebSocket
// clients cannot set headers, so the stream endpoint authenticates this
// way.
func ParseQueryToken(verifier JWTVerifier, token string) (User, error) {
	claims, err := verifier.Parse(strings.TrimSpace(token))
	if err != nil {
		return User{}, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return User{}, errors.New("token missing subject")
	}
	return User{ID: claims.Subject, Username: strings.TrimSpace(claims.Username)}, nil
}

func parseBearer(verifier JWTVerifier, header string) (*Claims, error) {
	authz := strings.TrimSpace(header)
	if authz == "" {
		return nil, errors.New("missing authorization header")
	}
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, errors.New("malformed authorization header")
	}
	claims, err := verifier.Parse(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("token missing subject")
	}
	return claims, nil
}
