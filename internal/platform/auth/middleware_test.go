package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubTokenVerifier struct {
	identity *Identity
	err      error
	received string
}

func (s *stubTokenVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	s.received = token
	if s.err != nil {
		return nil, s.err
	}
	return s.identity, nil
}

func TestRequireRolesAllowsValidToken(t *testing.T) {
	verifier := &stubTokenVerifier{
		identity: &Identity{Subject: "user-123", Role: RoleFarmManager, FarmID: "farm-9"},
	}

	authn := NewAuthenticator(verifier)

	handlerCalled := false
	handler := authn.RequireRoles(RoleFarmManager, RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true

		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatalf("expected identity in context")
		}
		if identity.Subject != "user-123" {
			t.Fatalf("unexpected subject: %s", identity.Subject)
		}
		if !identity.HasRole(RoleFarmManager) {
			t.Fatalf("expected farm_manager role, got %s", identity.Role)
		}
		if identity.FarmID != "farm-9" {
			t.Fatalf("expected farm scope farm-9, got %s", identity.FarmID)
		}

		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token-value")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if !handlerCalled {
		t.Fatalf("expected handler to be called")
	}
	if verifier.received != "token-value" {
		t.Fatalf("expected verifier to receive token-value, got %s", verifier.received)
	}
}

func TestRequireRolesExpiredToken(t *testing.T) {
	verifier := &stubTokenVerifier{err: ErrTokenExpired}
	authn := NewAuthenticator(verifier)

	handler := authn.RequireRoles(RoleCustomer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not execute on expired token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["error"] != "token_expired" {
		t.Fatalf("expected token_expired error, got %v", body["error"])
	}
}

func TestRequireRolesRejectsWrongRole(t *testing.T) {
	verifier := &stubTokenVerifier{
		identity: &Identity{Subject: "user-456", Role: RoleCustomer},
	}
	authn := NewAuthenticator(verifier)

	handler := authn.RequireRoles(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not execute for wrong role")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestRequireRejectsMissingHeader(t *testing.T) {
	verifier := &stubTokenVerifier{identity: &Identity{Subject: "user", Role: RoleCustomer}}
	authn := NewAuthenticator(verifier)

	handler := authn.Require()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not execute without credentials")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}
