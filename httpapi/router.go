package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/MrEthical07/shopauth"
	"github.com/MrEthical07/shopauth/middleware"
)

// Service is the subset of *shopauth.Engine the API calls.
type Service interface {
	Login(ctx context.Context, username, password string) (*shopauth.LoginResult, error)
	AdminLogin(ctx context.Context, username, password string) (*shopauth.LoginResult, error)
	Signup(ctx context.Context, req shopauth.SignupRequest) (*shopauth.SignupResult, error)
	Me(ctx context.Context, accessToken string) (*shopauth.Identity, error)
	Refresh(ctx context.Context, refreshToken string) (string, string, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	Wallet(ctx context.Context, userID int64) (shopauth.Wallet, error)
	GenerateReferral(ctx context.Context, userID int64) (shopauth.Referral, error)
	ListUsers(ctx context.Context, adminID int64) ([]shopauth.Identity, error)
	Ping(ctx context.Context) error
}

// Options configures the router. Zero values fall back to the defaults
// noted per field.
type Options struct {
	Logger zerolog.Logger
	// AllowedOrigins defaults to http://localhost:3000.
	AllowedOrigins []string
	CookieSecure   bool
	// AccessTTL and RefreshTTL set cookie lifetimes and default to the
	// engine defaults.
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// RequestsPerMinute caps requests per client IP. Defaults to 300.
	RequestsPerMinute int
	// Registry receives HTTP metrics and Collectors, and backs /metrics.
	// A private registry is created when nil.
	Registry   *prometheus.Registry
	Collectors []prometheus.Collector
}

type api struct {
	svc      Service
	log      zerolog.Logger
	validate *validator.Validate
	cookies  cookieConfig
}

// NewRouter returns the API handler wrapped in OpenTelemetry server
// instrumentation.
func NewRouter(svc Service, opts Options) http.Handler {
	defaults := shopauth.DefaultConfig()
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = defaults.JWT.AccessTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = defaults.JWT.RefreshTTL
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 300
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	for _, c := range opts.Collectors {
		opts.Registry.MustRegister(c)
	}

	a := &api{
		svc:      svc,
		log:      opts.Logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cookies: cookieConfig{
			secure:     opts.CookieSecure,
			accessTTL:  opts.AccessTTL,
			refreshTTL: opts.RefreshTTL,
		},
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(opts.Logger))
	r.Use(newHTTPMetrics(opts.Registry).middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))
	r.Use(httprate.LimitByIP(opts.RequestsPerMinute, time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", a.ready)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequestMetadata)

		r.Post("/login/", a.login)
		r.Post("/admin-login/", a.adminLogin)
		r.Post("/signup/", a.signup)
		r.Post("/token/refresh/", a.refresh)
		r.Post("/logout/", a.logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(svc))
			r.Get("/me/", a.me)
			r.Get("/my-wallet/", a.wallet)
			r.Post("/generate-referral/", a.generateReferral)
			r.With(middleware.RequireAdmin).Get("/admin/users/", a.listUsers)
		})
	})

	return otelhttp.NewHandler(r, "shopauth-api")
}
