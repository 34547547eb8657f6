package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret []byte, sub, username string) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Username: username,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestRequireUser_ValidToken(t *testing.T) {
	secret := []byte("test-secret")
	verifier := JWTVerifier{Secret: secret}

	var got User
	h := RequireUser(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = UserFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "user-1", "ada"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got.ID != "user-1" || got.Username != "ada" {
		t.Fatalf("unexpected principal: %+v", got)
	}
}

func TestRequireUser_MissingHeader(t *testing.T) {
	h := RequireUser(JWTVerifier{Secret: []byte("x")})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRequireUser_WrongSecret(t *testing.T) {
	h := RequireUser(JWTVerifier{Secret: []byte("right")})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, []byte("wrong"), "user-1", "ada"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestParseQueryToken(t *testing.T) {
	secret := []byte("test-secret")
	u, err := ParseQueryToken(JWTVerifier{Secret: secret}, signToken(t, secret, "user-2", "grace"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.ID != "user-2" || u.Username != "grace" {
		t.Fatalf("unexpected principal: %+v", u)
	}

	if _, err := ParseQueryToken(JWTVerifier{Secret: secret}, "not-a-token"); err == nil {
		t.Fatal("expected error for garbage token")
	}
}
