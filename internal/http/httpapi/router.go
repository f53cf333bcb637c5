package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"doacao/internal/http/handlers"
	"doacao/internal/middleware"
)

// Options carries the router's cross-cutting settings.
type Options struct {
	Logger          zerolog.Logger
	AdminSecret     string
	CORSOrigins     []string
	RateLimitPerMin int
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		chimw.RealIP,
		middleware.RequestID(opts.Logger),
		chimw.Recoverer,
		middleware.AccessLog,
	)

	r.Get("/v1/healthz", app.Health)
	r.Method(http.MethodGet, "/metrics", handlers.Metrics())
	r.Get(handlers.OpenAPIPath, app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	// Gateway callbacks must not be throttled or gated by origin.
	r.Post("/v1/webhooks/gateway", app.Webhook)

	r.Route("/v1/donations", func(r chi.Router) {
		r.Use(
			middleware.CORS(opts.CORSOrigins),
			middleware.Locale(opts.DefaultLocale, opts.CountryLookup),
			middleware.RateLimit(opts.RateLimitPerMin, time.Minute),
		)
		r.Post("/", app.DonationsCreate)
		r.Post("/boleto-email", app.DonationsBoletoEmail)
	})

	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(middleware.AdminOnly(opts.AdminSecret))
		r.Get("/donations", app.AdminDonations)
		r.Post("/donations/statuses", app.AdminStatuses)
	})

	return r
}
