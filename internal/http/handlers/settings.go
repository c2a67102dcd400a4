package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GetSettings returns the user's settings document, an opaque key-value bag
// owned by the client.
func (a *App) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")
	if !a.authorizeUser(r, userID) {
		a.error(w, http.StatusForbidden, "forbidden", "not your settings")
		return
	}
	settings := map[string]any{}
	if _, err := a.Store.ReadJSON(r.Context(), a.settingsKey(userID), &settings); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load settings")
		return
	}
	a.json(w, http.StatusOK, settings)
}

// PutSettings replaces the user's settings document wholesale.
func (a *App) PutSettings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")
	if !a.authorizeUser(r, userID) {
		a.error(w, http.StatusForbidden, "forbidden", "not your settings")
		return
	}
	var settings map[string]any
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Store.WriteJSON(r.Context(), a.settingsKey(userID), settings); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to persist settings")
		return
	}
	a.json(w, http.StatusOK, settings)
}

func (a *App) settingsKey(userID string) string {
	return "settings/" + userID + ".json"
}
