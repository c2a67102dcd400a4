package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSessionRoundTrip(t *testing.T) {
	token, err := SignSession("secret", SessionClaims{Sub: "u1", Role: "admin", Exp: time.Now().Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("SignSession: %v", err)
	}
	claims, err := VerifySession("secret", token)
	if err != nil {
		t.Fatalf("VerifySession: %v", err)
	}
	if claims.Sub != "u1" || claims.Role != "admin" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestVerifySessionRejects(t *testing.T) {
	token, _ := SignSession("secret", SessionClaims{Sub: "u1", Exp: time.Now().Add(time.Hour).Unix()})
	if _, err := VerifySession("other-secret", token); err == nil {
		t.Fatal("wrong secret accepted")
	}
	expired, _ := SignSession("secret", SessionClaims{Sub: "u1", Exp: time.Now().Add(-time.Minute).Unix()})
	if _, err := VerifySession("secret", expired); err == nil {
		t.Fatal("expired token accepted")
	}
	if _, err := VerifySession("secret", "not.a.token"); err == nil {
		t.Fatal("garbage accepted")
	}
}

func TestAuthMiddleware(t *testing.T) {
	var gotUser, gotRole string
	handler := Auth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no header: status = %d", rec.Code)
	}

	token, _ := SignSession("secret", SessionClaims{Sub: "u1", Role: "user", Exp: time.Now().Add(time.Hour).Unix()})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d", rec.Code)
	}
	if gotUser != "u1" || gotRole != "user" {
		t.Fatalf("context user = %q role = %q", gotUser, gotRole)
	}
}
