package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/farmconnect/farmconnect-backend/api/controllers"
	"github.com/farmconnect/farmconnect-backend/api/middleware"
	"github.com/farmconnect/farmconnect-backend/internal/auth"
	"github.com/farmconnect/farmconnect-backend/internal/cart"
	"github.com/farmconnect/farmconnect-backend/internal/catalog"
	"github.com/farmconnect/farmconnect-backend/internal/checkout"
	"github.com/farmconnect/farmconnect-backend/internal/ledger"
	"github.com/farmconnect/farmconnect-backend/internal/messaging"
	"github.com/farmconnect/farmconnect-backend/internal/orders"
	"github.com/farmconnect/farmconnect-backend/internal/reviews"
	"github.com/farmconnect/farmconnect-backend/internal/users"
	"github.com/farmconnect/farmconnect-backend/pkg/auth/session"
	"github.com/farmconnect/farmconnect-backend/pkg/config"
	"github.com/farmconnect/farmconnect-backend/pkg/db"
	"github.com/farmconnect/farmconnect-backend/pkg/enums"
	"github.com/farmconnect/farmconnect-backend/pkg/logger"
	"github.com/farmconnect/farmconnect-backend/pkg/metrics"
	pkgredis "github.com/farmconnect/farmconnect-backend/pkg/redis"
)

// RedisStore is the subset of the redis client the HTTP layer uses for
// idempotency, auth rate limits and readiness.
type RedisStore interface {
	pkgredis.IdempotencyStore
	middleware.RateLimiter
	Ping(ctx context.Context) error
}

// Services groups the domain services exposed over HTTP.
type Services struct {
	Auth      auth.Service
	Register  auth.RegisterService
	Users     users.Service
	Catalog   catalog.Service
	Cart      cart.Service
	Checkout  checkout.Service
	Orders    orders.Service
	Ledger    ledger.Service
	Reviews   reviews.Service
	Messaging messaging.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisStore RedisStore,
	sessions session.AccessSessionChecker,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	readiness := map[string]controllers.Pinger{}
	if dbP != nil {
		readiness["database"] = dbP
	}
	if redisStore != nil {
		readiness["redis"] = redisStore
	}

	var limiter middleware.RateLimiter
	var idempotency pkgredis.IdempotencyStore
	if redisStore != nil {
		limiter = redisStore
		idempotency = redisStore
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))

	r.Route("/api/public", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, limiter, logg)).Post("/register", controllers.AuthRegister(svc.Register, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).Post("/login", controllers.AuthLogin(svc.Auth, logg))

		r.Get("/categories", controllers.PublicListCategories(svc.Catalog, logg))
		r.Get("/products", controllers.PublicListProducts(svc.Catalog, logg))
		r.Get("/products/{productId}", controllers.PublicGetProduct(svc.Catalog, logg))
		r.Get("/products/{productId}/reviews", controllers.PublicListProductReviews(svc.Reviews, logg))
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(middleware.AuthAllowExpired(cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(svc.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(svc.Auth, logg))
	})

	r.Route("/api/automation", func(r chi.Router) {
		r.Use(middleware.AutomationSecret(cfg.Automation.Secret, logg))
		r.Post("/messages", controllers.AutomationSendMessage(svc.Messaging, logg))
		r.Get("/health", controllers.AutomationHealth(cfg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.Idempotency(idempotency, logg))

		r.Get("/me", controllers.Me(svc.Users, logg))
		r.Get("/orders/{orderId}/ledger", controllers.OrderLedger(svc.Ledger, logg))

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", controllers.ListConversations(svc.Messaging, logg))
			r.Post("/", controllers.StartConversation(svc.Messaging, logg))
			r.Get("/unread", controllers.UnreadMessages(svc.Messaging, logg))
			r.Get("/{conversationId}", controllers.GetConversation(svc.Messaging, logg))
			r.Post("/{conversationId}/messages", controllers.SendMessage(svc.Messaging, logg))
		})

		r.Route("/farmer", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserTypeFarmer, logg))

			r.Put("/profile", controllers.FarmerUpdateProfile(svc.Users, logg))
			r.Post("/categories", controllers.FarmerCreateCategory(svc.Catalog, logg))

			r.Get("/products", controllers.FarmerListProducts(svc.Catalog, logg))
			r.Post("/products", controllers.FarmerCreateProduct(svc.Catalog, logg))
			r.Put("/products/{productId}", controllers.FarmerUpdateProduct(svc.Catalog, logg))
			r.Delete("/products/{productId}", controllers.FarmerDeleteProduct(svc.Catalog, logg))

			r.Get("/orders", controllers.FarmerListOrders(svc.Orders, logg))
			r.Get("/orders/{orderId}", controllers.FarmerGetOrder(svc.Orders, logg))
			r.Post("/orders/{orderId}/status", controllers.FarmerUpdateOrderStatus(svc.Orders, logg))
		})

		r.Route("/buyer", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserTypeBuyer, logg))

			r.Get("/cart", controllers.CartGet(svc.Cart, logg))
			r.Delete("/cart", controllers.CartClear(svc.Cart, logg))
			r.Post("/cart/items", controllers.CartAddItem(svc.Cart, logg))
			r.Put("/cart/items/{productId}", controllers.CartUpdateItem(svc.Cart, logg))
			r.Delete("/cart/items/{productId}", controllers.CartRemoveItem(svc.Cart, logg))

			r.Post("/checkout", controllers.Checkout(svc.Checkout, logg))

			r.Get("/orders", controllers.BuyerListOrders(svc.Orders, logg))
			r.Get("/orders/{orderId}", controllers.BuyerGetOrder(svc.Orders, logg))
			r.Post("/orders/{orderId}/cancel", controllers.BuyerCancelOrder(svc.Orders, logg))
			r.Post("/orders/{orderId}/payment", controllers.BuyerRecordPayment(svc.Ledger, logg))

			r.Post("/products/{productId}/reviews", controllers.BuyerSubmitReview(svc.Reviews, logg))
			r.Get("/products/{productId}/review-eligibility", controllers.BuyerReviewEligibility(svc.Reviews, logg))
		})
	})

	return r
}
