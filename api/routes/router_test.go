package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/farmconnect/farmconnect-backend/internal/cart"
	"github.com/farmconnect/farmconnect-backend/internal/messaging"
	pkgauth "github.com/farmconnect/farmconnect-backend/pkg/auth"
	"github.com/farmconnect/farmconnect-backend/pkg/auth/session"
	"github.com/farmconnect/farmconnect-backend/pkg/config"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
	"github.com/farmconnect/farmconnect-backend/pkg/logger"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubSessionChecker struct{}

func (stubSessionChecker) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type stubCartService struct {
	cart.Service
	buyerID uuid.UUID
}

func (s *stubCartService) Get(ctx context.Context, buyerID uuid.UUID) (*cart.View, error) {
	s.buyerID = buyerID
	return &cart.View{Items: []cart.LineView{}, Warnings: []cart.Warning{}}, nil
}

type stubMessagingService struct {
	messaging.Service
}

func (stubMessagingService) UnreadCount(ctx context.Context, userID uuid.UUID) (*messaging.UnreadDTO, error) {
	return &messaging.UnreadDTO{Unread: 3}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{
			Secret:            "router-secret",
			Issuer:            "farmconnect-test",
			ExpirationMinutes: 15,
		},
		Automation: config.AutomationConfig{Secret: "auto-secret"},
	}
}

func newTestRouter(cfg *config.Config, svc Services) http.Handler {
	return NewRouter(
		cfg,
		logger.Nop(),
		stubPinger{},
		nil,
		stubSessionChecker{},
		prometheus.NewRegistry(),
		svc,
	)
}

func bearer(t *testing.T, cfg *config.Config, userID uuid.UUID, userType enums.UserType) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID:   userID,
		UserType: userType,
		Username: "router-user",
		JTI:      session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(testConfig(), Services{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get("X-FarmConnect-Env"); got != "test" {
		t.Fatalf("unexpected env header %q", got)
	}
}

func TestHealthReadyReportsDependencyFailure(t *testing.T) {
	router := NewRouter(
		testConfig(),
		logger.Nop(),
		stubPinger{err: context.DeadlineExceeded},
		nil,
		stubSessionChecker{},
		prometheus.NewRegistry(),
		Services{},
	)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(testConfig(), Services{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestAuthenticatedGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig(), Services{})

	for _, path := range []string{"/api/me", "/api/buyer/cart", "/api/farmer/orders", "/api/conversations"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", path, resp.Code)
		}
	}
}

func TestFarmerRoutesRejectBuyers(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, Services{})

	req := httptest.NewRequest(http.MethodGet, "/api/farmer/products", nil)
	req.Header.Set("Authorization", bearer(t, cfg, uuid.New(), enums.UserTypeBuyer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestBuyerRoutesRejectFarmers(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, Services{})

	req := httptest.NewRequest(http.MethodPost, "/api/buyer/checkout", strings.NewReader(`{}`))
	req.Header.Set("Authorization", bearer(t, cfg, uuid.New(), enums.UserTypeFarmer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestBuyerCartReachesService(t *testing.T) {
	cfg := testConfig()
	cartSvc := &stubCartService{}
	router := newTestRouter(cfg, Services{Cart: cartSvc})

	buyerID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/buyer/cart", nil)
	req.Header.Set("Authorization", bearer(t, cfg, buyerID, enums.UserTypeBuyer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if cartSvc.buyerID != buyerID {
		t.Fatalf("expected buyer %s got %s", buyerID, cartSvc.buyerID)
	}
}

func TestConversationUnreadRouteIsNotAnID(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, Services{Messaging: stubMessagingService{}})

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/unread", nil)
	req.Header.Set("Authorization", bearer(t, cfg, uuid.New(), enums.UserTypeFarmer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data messaging.UnreadDTO `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Unread != 3 {
		t.Fatalf("expected 3 unread got %d", envelope.Data.Unread)
	}
}

func TestAutomationRoutesRequireSecret(t *testing.T) {
	router := newTestRouter(testConfig(), Services{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/automation/health", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/automation/health", nil)
	req.Header.Set("X-AUTO-SECRET", "auto-secret")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with secret got %d", resp.Code)
	}
}
