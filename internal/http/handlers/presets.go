package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studio/internal/domain"
)

const presetsKey = "presets.json"

// ListPresets returns the shared preset collection.
func (a *App) ListPresets(w http.ResponseWriter, r *http.Request) {
	var presets []domain.Preset
	if _, err := a.Store.ReadJSON(r.Context(), presetsKey, &presets); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load presets")
		return
	}
	a.json(w, http.StatusOK, presets)
}

// CreatePreset stores a new named configuration.
func (a *App) CreatePreset(w http.ResponseWriter, r *http.Request) {
	var preset domain.Preset
	if err := json.NewDecoder(r.Body).Decode(&preset); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if preset.Name == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "preset name required")
		return
	}
	preset.ID = uuid.NewString()
	preset.CreatedAt = time.Now().UnixMilli()

	var presets []domain.Preset
	if _, err := a.Store.ReadJSON(r.Context(), presetsKey, &presets); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load presets")
		return
	}
	presets = append(presets, preset)
	if err := a.Store.WriteJSON(r.Context(), presetsKey, presets); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to persist presets")
		return
	}
	a.json(w, http.StatusCreated, preset)
}

// DeletePreset removes a preset by id.
func (a *App) DeletePreset(w http.ResponseWriter, r *http.Request) {
	presetID := chi.URLParam(r, "id")
	var presets []domain.Preset
	if _, err := a.Store.ReadJSON(r.Context(), presetsKey, &presets); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load presets")
		return
	}
	kept := presets[:0]
	found := false
	for _, p := range presets {
		if p.ID == presetID {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		a.error(w, http.StatusNotFound, "not_found", "no such preset")
		return
	}
	if err := a.Store.WriteJSON(r.Context(), presetsKey, kept); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to persist presets")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"deleted": presetID})
}
