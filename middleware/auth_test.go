package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"sketchvault/config"
	"sketchvault/core"
	"sketchvault/handlers/auth"
)

func newAuthedHandler(t *testing.T) (http.Handler, string) {
	t.Helper()
	service := auth.NewService(&config.Config{JWTSecret: "test-secret"})
	token, err := service.CreateJWT(&core.User{Subject: "github:1", Login: "tester"})
	if err != nil {
		t.Fatalf("CreateJWT() failed: %v", err)
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(ClaimsContextKey).(*auth.AppClaims)
		if !ok || claims.Subject != "github:1" {
			t.Error("Claims missing from request context")
		}
		w.WriteHeader(http.StatusOK)
	})
	return AuthJWT(service)(next), token
}

func TestAuthJWT_ValidToken(t *testing.T) {
	handler, token := newAuthedHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuthJWT_MissingHeader(t *testing.T) {
	handler, _ := newAuthedHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthJWT_MalformedHeader(t *testing.T) {
	handler, token := newAuthedHandler(t)

	for _, header := range []string{token, "Basic " + token, "Bearer"} {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Header %q: got %d, want %d", header, rec.Code, http.StatusUnauthorized)
		}
	}
}

func TestAuthJWT_InvalidToken(t *testing.T) {
	handler, _ := newAuthedHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Authorization", "Bearer bogus.token.value")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
