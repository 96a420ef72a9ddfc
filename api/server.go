/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address from X-Forwarded-For / X-Real-IP
  3. Logger:     zap request logging (middleware.go)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/overview, /api/indicators/*   Headline cards and indicator lookups
  /api/trends, /api/channels         Year-filtered series
  /api/ratio                         P2P/ATM ratio
  /api/forecasts, /api/projections   Forecast table views
  /api/dataset/*                     Dataset summary, CSV download, reload
  /api/charts/*.png                  Server-rendered charts
  /metrics                           Prometheus

SECURITY NOTE:
  No authentication. POST /api/dataset/reload only drops the in-memory cache.

SEE ALSO:
  - handlers.go: JSON handlers
  - charts.go: PNG handlers
  - cli/serve.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.Config.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/overview", h.GetOverview)

		r.Route("/indicators", func(r chi.Router) {
			r.Get("/", h.ListIndicators)
			r.Get("/latest", h.GetLatest)
			r.Get("/growth", h.GetGrowth)
		})

		r.Get("/trends", h.GetTrends)
		r.Get("/channels", h.GetChannels)
		r.Get("/ratio", h.GetRatio)
		r.Get("/forecasts", h.GetForecasts)
		r.Get("/projections", h.GetProjections)

		r.Route("/dataset", func(r chi.Router) {
			r.Get("/", h.GetDataset)
			r.Get("/download", h.DownloadDataset)
			r.Post("/reload", h.ReloadDataset)
		})

		r.Route("/charts", func(r chi.Router) {
			r.Get("/trends.png", h.TrendsChart)
			r.Get("/channels.png", h.ChannelsChart)
			r.Get("/ratio.png", h.RatioChart)
			r.Get("/forecasts.png", h.ForecastsChart)
			r.Get("/projections.png", h.ProjectionsChart)
		})
	})

	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
