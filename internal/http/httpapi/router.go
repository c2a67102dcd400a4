package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"studio/internal/http/handlers"
	"studio/internal/infra"
	"studio/internal/middleware"
)

// NewRouter assembles the API surface.
func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(cfg.AllowedOrigins),
	)

	r.Get("/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.LoginRatePerMin, time.Minute))
		r.Post("/api/login", app.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.SessionSecret))

		r.Route("/api/jobs/{user}", func(r chi.Router) {
			r.Get("/", app.GetJobs)
			r.Post("/", app.PostJobs)
		})

		r.Route("/api/history/{user}", func(r chi.Router) {
			r.Get("/", app.ListHistory)
			r.Post("/", app.SaveHistory)
			r.Get("/archive", app.ArchiveHistory)
			r.Get("/{id}/image", app.GetHistoryImage)
			r.Delete("/{id}", app.DeleteHistory)
		})

		r.Route("/api/settings/{user}", func(r chi.Router) {
			r.Get("/", app.GetSettings)
			r.Put("/", app.PutSettings)
		})

		r.Post("/api/enhance", app.EnhancePrompt)

		r.Route("/api/presets", func(r chi.Router) {
			r.Get("/", app.ListPresets)
			r.Post("/", app.CreatePreset)
			r.Delete("/{id}", app.DeletePreset)
		})

		r.Route("/api/users", func(r chi.Router) {
			r.Use(app.RequireAdmin)
			r.Get("/", app.ListUsers)
			r.Post("/", app.CreateUser)
			r.Delete("/{id}", app.DeleteUser)
		})
	})

	return r
}
