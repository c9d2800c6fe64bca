package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/farmconnect/farmconnect-backend/pkg/auth"
	"github.com/farmconnect/farmconnect-backend/pkg/auth/session"
	"github.com/farmconnect/farmconnect-backend/pkg/config"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWT, stubSessionVerifier{ok: true}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWT, stubSessionVerifier{ok: true}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	userID := uuid.New()
	token := mintTestToken(t, testJWT, userID, enums.UserTypeFarmer, time.Now())

	var captured struct {
		user  uuid.UUID
		role  string
		token string
	}
	handler := Auth(testJWT, stubSessionVerifier{ok: true}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.user = UserUUIDFromContext(r.Context())
		captured.role = RoleFromContext(r.Context())
		captured.token = AccessTokenFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.user != userID {
		t.Fatalf("expected user %s got %s", userID, captured.user)
	}
	if captured.role != string(enums.UserTypeFarmer) {
		t.Fatalf("expected role farmer got %s", captured.role)
	}
	if captured.token != token {
		t.Fatalf("expected raw token in context")
	}
}

func TestAuthRejectsRevokedSession(t *testing.T) {
	token := mintTestToken(t, testJWT, uuid.New(), enums.UserTypeBuyer, time.Now())
	cases := map[string]stubSessionVerifier{
		"revoked":     {ok: false},
		"redis error": {err: errors.New("redis down")},
	}
	for name, verifier := range cases {
		handler := Auth(testJWT, verifier, nil)(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code == http.StatusOK {
			t.Fatalf("%s: expected rejection", name)
		}
	}
}

func TestAuthAllowExpiredAcceptsExpiredToken(t *testing.T) {
	token := mintTestToken(t, testJWT, uuid.New(), enums.UserTypeBuyer, time.Now().Add(-2*time.Hour))

	strict := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	Auth(testJWT, stubSessionVerifier{ok: true}, nil)(okHandler()).ServeHTTP(strict, req)
	if strict.Code != http.StatusUnauthorized {
		t.Fatalf("expected strict auth to reject expired token, got %d", strict.Code)
	}

	lenient := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	AuthAllowExpired(testJWT, nil)(okHandler()).ServeHTTP(lenient, req)
	if lenient.Code != http.StatusOK {
		t.Fatalf("expected expired token accepted, got %d", lenient.Code)
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(enums.UserTypeFarmer, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithRole(req.Context(), enums.UserTypeBuyer))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for buyer, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithRole(req.Context(), enums.UserTypeFarmer))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for farmer, got %d", resp.Code)
	}
}

func TestAutomationSecret(t *testing.T) {
	cases := []struct {
		name       string
		configured string
		provided   string
		want       int
	}{
		{"match", "s3cret", "s3cret", http.StatusOK},
		{"mismatch", "s3cret", "nope", http.StatusUnauthorized},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"unconfigured", "", "anything", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		handler := AutomationSecret(tc.configured, nil)(okHandler())
		req := httptest.NewRequest(http.MethodPost, "/api/automation/messages", nil)
		if tc.provided != "" {
			req.Header.Set(automationSecretHeader, tc.provided)
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("%s: expected %d got %d", tc.name, tc.want, resp.Code)
		}
	}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, userID uuid.UUID, userType enums.UserType, issuedAt time.Time) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, issuedAt, auth.AccessTokenPayload{
		UserID:   userID,
		UserType: userType,
		Username: "tester",
		JTI:      session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

type stubSessionVerifier struct {
	ok  bool
	err error
}

func (s stubSessionVerifier) HasSession(ctx context.Context, accessID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.ok, nil
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"abc":          "",
		"":             "",
		"Bearer":       "",
		"BEARER x.y.z": "x.y.z",
	}
	for header, want := range cases {
		if got := bearerToken(header); got != want {
			t.Fatalf("bearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestRequireRoleWithoutAuth(t *testing.T) {
	resp := httptest.NewRecorder()
	RequireRole(enums.UserTypeBuyer, nil)(okHandler()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a role, got %d", resp.Code)
	}
}
