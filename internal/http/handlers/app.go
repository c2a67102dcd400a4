package handlers

import (
	"encoding/json"
	"net/http"

	"studio/internal/domain"
	"studio/internal/enhance"
	"studio/internal/infra"
	"studio/internal/infra/geoip"
	"studio/internal/middleware"
	"studio/internal/storage"
)

// App is the handler container: every route is a method on it.
type App struct {
	Config   *infra.Config
	Logger   infra.Logger
	Store    *storage.FileStore
	Geo      geoip.CountryResolver
	Enhancer enhance.Enhancer
}

// NewApp wires the handler container. A nil enhancer falls back to the
// static rewriter.
func NewApp(cfg *infra.Config, logger infra.Logger, store *storage.FileStore, geo geoip.CountryResolver) *App {
	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Geo:      geo,
		Enhancer: enhance.NewStaticEnhancer(),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, tag, message string) {
	a.json(w, code, map[string]string{"error": tag, "message": message})
}

// authorizeUser checks that the authenticated session may act on userID's
// resources: the user themselves, or an admin.
func (a *App) authorizeUser(r *http.Request, userID string) bool {
	if uid := middleware.UserIDFromContext(r.Context()); uid != "" && uid == userID {
		return true
	}
	return middleware.RoleFromContext(r.Context()) == domain.RoleAdmin
}
