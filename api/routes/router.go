package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalaa-market/kalaa-backend/api/controllers"
	cartcontrollers "github.com/kalaa-market/kalaa-backend/api/controllers/cart"
	ordercontrollers "github.com/kalaa-market/kalaa-backend/api/controllers/orders"
	"github.com/kalaa-market/kalaa-backend/api/middleware"
	"github.com/kalaa-market/kalaa-backend/internal/auth"
	"github.com/kalaa-market/kalaa-backend/internal/cart"
	"github.com/kalaa-market/kalaa-backend/internal/orders"
	"github.com/kalaa-market/kalaa-backend/internal/products"
	"github.com/kalaa-market/kalaa-backend/internal/users"
	"github.com/kalaa-market/kalaa-backend/pkg/auth/session"
	"github.com/kalaa-market/kalaa-backend/pkg/config"
	"github.com/kalaa-market/kalaa-backend/pkg/enums"
	"github.com/kalaa-market/kalaa-backend/pkg/logger"
	"github.com/kalaa-market/kalaa-backend/pkg/redis"
)

// RouterParams collects everything the HTTP surface depends on.
type RouterParams struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              controllers.Pinger
	Redis           *redis.Client
	SessionChecker  session.AccessSessionChecker
	AuthService     auth.Service
	RegisterService auth.RegisterService
	UsersRepo       *users.Repository
	ProductService  products.Service
	CartService     cart.Service
	OrdersService   orders.Service
}

// NewRouter builds the chi router with every route the API serves.
func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
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

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"postgres": p.DB,
			"redis":    p.Redis,
		}))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, p.Redis, logg)).
			Post("/register", controllers.AuthRegister(p.RegisterService, p.AuthService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, p.Redis, logg)).
			Post("/login", controllers.AuthLogin(p.AuthService, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.AuthService, logg))
		r.Post("/logout", controllers.AuthLogout(p.AuthService, cfg.JWT, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, p.SessionChecker, logg))
			r.Get("/me", controllers.AuthMe(p.UsersRepo, logg))
		})
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ProductList(p.ProductService, logg))
		r.Get("/{productId}", controllers.ProductDetail(p.ProductService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, p.SessionChecker, logg))
			r.Get("/mine", controllers.ProductMine(p.ProductService, logg))
			r.Post("/{productId}/ratings", controllers.ProductRate(p.ProductService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRoles(logg, enums.UserRoleArtist, enums.UserRoleAdmin))
				r.Post("/", controllers.ProductCreate(p.ProductService, logg))
				r.Patch("/{productId}", controllers.ProductUpdate(p.ProductService, logg))
				r.Delete("/{productId}", controllers.ProductDelete(p.ProductService, logg))
			})
		})
	})

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.SessionChecker, logg))
		r.Get("/", cartcontrollers.CartFetch(p.CartService, logg))
		r.Delete("/", cartcontrollers.CartClear(p.CartService, logg))
		r.Post("/abandon", cartcontrollers.CartAbandon(p.CartService, logg))
		r.Post("/items", cartcontrollers.CartAddItem(p.CartService, logg))
		r.Put("/items/{productId}", cartcontrollers.CartUpdateItem(p.CartService, logg))
		r.Delete("/items/{productId}", cartcontrollers.CartRemoveItem(p.CartService, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.SessionChecker, logg))
		r.Post("/", ordercontrollers.Create(p.OrdersService, logg))
		r.Get("/", ordercontrollers.List(p.OrdersService, logg))
		r.Get("/{orderId}", ordercontrollers.Detail(p.OrdersService, logg))
		r.Post("/{orderId}/cancel", ordercontrollers.Cancel(p.OrdersService, logg))
	})

	r.Route("/api/admin/v1/orders", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.SessionChecker, logg))
		r.Use(middleware.RequireRoles(logg, enums.UserRoleAdmin))
		r.Get("/", ordercontrollers.AdminList(p.OrdersService, logg))
		r.Patch("/{orderId}/status", ordercontrollers.AdminUpdateStatus(p.OrdersService, logg))
	})

	return r
}
