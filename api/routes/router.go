package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"

	"github.com/angelmondragon/shopdesk-backend/api/controllers"
	"github.com/angelmondragon/shopdesk-backend/api/middleware"
	"github.com/angelmondragon/shopdesk-backend/internal/audit"
	"github.com/angelmondragon/shopdesk-backend/internal/auth"
	"github.com/angelmondragon/shopdesk-backend/internal/catalog"
	"github.com/angelmondragon/shopdesk-backend/internal/finance"
	"github.com/angelmondragon/shopdesk-backend/internal/invoices"
	"github.com/angelmondragon/shopdesk-backend/internal/plans"
	"github.com/angelmondragon/shopdesk-backend/internal/sales"
	"github.com/angelmondragon/shopdesk-backend/internal/shops"
	"github.com/angelmondragon/shopdesk-backend/internal/users"
	"github.com/angelmondragon/shopdesk-backend/pkg/auth/session"
	"github.com/angelmondragon/shopdesk-backend/pkg/config"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
	"github.com/angelmondragon/shopdesk-backend/pkg/redis"
)

// Services bundles the domain services mounted by the router.
type Services struct {
	Auth     auth.Service
	Plans    plans.Service
	Shops    shops.Service
	Users    users.Service
	Catalog  catalog.Service
	Sales    sales.Service
	Invoices invoices.Service
	Audit    audit.Service
	Finance  finance.Service

	// DeadLetters backs the operator DLQ routes; nil disables them.
	DeadLetters controllers.DeadLetters
}

// Infra holds the shared clients the middleware chain depends on. Redis and
// the API limiter are optional; without Redis idempotency and auth throttling
// are skipped.
type Infra struct {
	DB         controllers.Pinger
	Redis      *redis.Client
	Sessions   session.AccessSessionChecker
	APILimiter *limiter.Limiter
	Metrics    http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	readiness := map[string]controllers.Pinger{"db": infra.DB}
	if infra.Redis != nil {
		readiness["redis"] = infra.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	metricsHandler := infra.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Get("/plans", controllers.PublicPlans(svc.Plans, logg))
	})

	authLimit := authRateLimiters(cfg.AuthRateLimit, infra.Redis, logg)
	idempotency := func(next http.Handler) http.Handler { return next }
	if infra.Redis != nil {
		idempotency = middleware.Idempotency(infra.Redis, logg)
	}
	apiLimit := func(next http.Handler) http.Handler { return next }
	if infra.APILimiter != nil {
		apiLimit = middleware.RateLimit(infra.APILimiter, logg)
	}
	authenticated := middleware.Auth(cfg.JWT, infra.Sessions, logg)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(authLimit.register, idempotency).Post("/register", controllers.AuthRegister(svc.Auth, logg))
		r.With(authLimit.login).Post("/login", controllers.AuthLogin(svc.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(svc.Auth, logg))
		r.With(authenticated).Post("/logout", controllers.AuthLogout(svc.Auth, logg))
		r.With(authenticated).Post("/switch-shop", controllers.AuthSwitchShop(svc.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			authenticated,
			middleware.ShopContext(logg),
			middleware.ShopTier(svc.Plans, logg),
			idempotency,
			apiLimit,
		)

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/shops", func(r chi.Router) {
			r.Get("/", controllers.ShopsList(svc.Shops, logg))
			r.With(
				middleware.RequireRoles(logg, enums.ShopRoleAdmin),
				middleware.RequireCapability(plans.CapabilityMultiShop, logg),
			).Post("/", controllers.ShopsCreate(svc.Shops, logg))
			r.Get("/me", controllers.ShopsGetCurrent(svc.Shops, logg))
			r.With(middleware.RequireRoles(logg, enums.ShopRoleAdmin)).Put("/me", controllers.ShopsUpdateCurrent(svc.Shops, logg))
			r.Get("/me/dashboard", controllers.ShopsDashboard(svc.Shops, logg))
		})

		r.With(middleware.RequireRoles(logg, enums.ShopRoleAdmin)).
			Post("/plans/{code}/subscribe", controllers.PlansSubscribe(svc.Plans, svc.Shops, svc.Users, logg))

		r.Route("/users", func(r chi.Router) {
			r.Use(
				middleware.RequireRoles(logg, enums.ShopRoleAdmin),
				middleware.RequireCapability(plans.CapabilityStaffAccounts, logg),
			)
			r.Get("/", controllers.UsersList(svc.Users, logg))
			r.Post("/", controllers.UsersCreate(svc.Users, logg))
			r.Put("/{userId}", controllers.UsersUpdate(svc.Users, logg))
			r.Delete("/{userId}", controllers.UsersDelete(svc.Users, logg))
		})

		r.Route("/categories", func(r chi.Router) {
			r.Use(middleware.RequireCapability(plans.CapabilityCategories, logg))
			r.Get("/", controllers.CategoriesList(svc.Catalog, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRoles(logg, enums.ShopRoleAdmin, enums.ShopRoleManager))
				r.Post("/", controllers.CategoriesCreate(svc.Catalog, logg))
				r.Put("/{categoryId}", controllers.CategoriesUpdate(svc.Catalog, logg))
				r.Delete("/{categoryId}", controllers.CategoriesDelete(svc.Catalog, logg))
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductsList(svc.Catalog, logg))
			r.Get("/{productId}", controllers.ProductsGet(svc.Catalog, logg))
			r.Get("/{productId}/movements", controllers.ProductsMovements(svc.Catalog, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRoles(logg, enums.ShopRoleAdmin, enums.ShopRoleManager))
				r.Post("/", controllers.ProductsCreate(svc.Catalog, logg))
				r.Put("/{productId}", controllers.ProductsUpdate(svc.Catalog, logg))
				r.Delete("/{productId}", controllers.ProductsDelete(svc.Catalog, logg))
				r.Post("/{productId}/stock", controllers.ProductsAdjustStock(svc.Catalog, logg))
			})
		})

		r.Route("/sales", func(r chi.Router) {
			r.Post("/", controllers.SalesSubmit(svc.Sales, logg))
			r.Post("/batch", controllers.SalesBatch(svc.Sales, logg))
			r.Get("/", controllers.SalesList(svc.Sales, logg))
			r.Get("/{saleId}", controllers.SalesGet(svc.Sales, logg))
			r.Post("/{saleId}/invoice", controllers.SalesInvoice(svc.Invoices, logg))
			r.With(middleware.RequireRoles(logg, enums.ShopRoleAdmin, enums.ShopRoleManager)).
				Put("/{saleId}/items/{itemId}", controllers.SalesUpdateItem(svc.Sales, logg))
			r.With(middleware.RequireRoles(logg, enums.ShopRoleAdmin)).
				Delete("/{saleId}", controllers.SalesDelete(svc.Sales, logg))
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", controllers.InvoicesList(svc.Invoices, logg))
			r.Get("/{invoiceId}", controllers.InvoicesGet(svc.Invoices, logg))
		})

		r.With(middleware.RequireRoles(logg, enums.ShopRoleAdmin, enums.ShopRoleManager)).
			Get("/audit", controllers.AuditList(svc.Audit, logg))

		r.Route("/finance", func(r chi.Router) {
			r.Use(middleware.RequireRoles(logg, enums.ShopRoleAdmin, enums.ShopRoleManager, enums.ShopRoleAccountant))
			r.Get("/expenses", controllers.FinanceListExpenses(svc.Finance, logg))
			r.Post("/expenses", controllers.FinanceCreateExpense(svc.Finance, logg))
			r.With(middleware.RequireCapability(plans.CapabilityAccountingExport, logg)).
				Get("/report.pdf", controllers.FinanceReport(svc.Finance, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireCapability(plans.CapabilityAdvancedAccounting, logg))
				r.Get("/dashboard", controllers.FinanceDashboard(svc.Finance, logg))
				r.Get("/statistics", controllers.FinanceStatistics(svc.Finance, logg))
				r.Get("/loans", controllers.FinanceListLoans(svc.Finance, logg))
				r.Post("/loans", controllers.FinanceCreateLoan(svc.Finance, logg))
				r.Post("/loans/{loanId}/repay", controllers.FinanceRepayLoan(svc.Finance, logg))
			})
		})

		r.With(
			middleware.RequireRoles(logg, enums.ShopRoleAdmin, enums.ShopRoleManager, enums.ShopRoleAccountant),
			middleware.RequireCapability(plans.CapabilityTaxModule, logg),
		).Get("/taxes/summary", controllers.TaxesSummary(svc.Finance, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(
			authenticated,
			middleware.RequireSuperuser(logg),
			apiLimit,
		)
		r.Patch("/shops/{shopId}/plan", controllers.AdminSetShopPlan(svc.Plans, logg))
		if svc.DeadLetters != nil {
			r.Get("/outbox/dlq", controllers.AdminListDeadLetters(svc.DeadLetters, logg))
			r.Post("/outbox/dlq/{eventId}/requeue", controllers.AdminRequeueDeadLetter(svc.DeadLetters, logg))
		}
	})

	return r
}

type authLimiters struct {
	login    func(http.Handler) http.Handler
	register func(http.Handler) http.Handler
}

func authRateLimiters(cfg config.AuthRateLimitConfig, client *redis.Client, logg *logger.Logger) authLimiters {
	if client == nil {
		pass := func(next http.Handler) http.Handler { return next }
		return authLimiters{login: pass, register: pass}
	}
	loginPolicy := middleware.NewAuthRateLimitPolicy("login", cfg.LoginWindow, cfg.LoginIPLimit, cfg.LoginUsernameLimit)
	registerPolicy := middleware.NewAuthRateLimitPolicy("register", cfg.RegisterWindow, cfg.RegisterIPLimit, cfg.RegisterUsernameLimit)
	return authLimiters{
		login:    middleware.AuthRateLimit(loginPolicy, client, logg),
		register: middleware.AuthRateLimit(registerPolicy, client, logg),
	}
}
