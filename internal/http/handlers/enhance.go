package handlers

import (
	"encoding/json"
	"net/http"

	"studio/internal/enhance"
)

type enhanceRequest struct {
	Prompt      string `json:"prompt"`
	Mode        string `json:"mode,omitempty"`
	Model       string `json:"model,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

// EnhancePrompt rewrites a raw prompt through the configured enhancer.
func (a *App) EnhancePrompt(w http.ResponseWriter, r *http.Request) {
	var req enhanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Prompt == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt is required")
		return
	}
	res, err := a.Enhancer.Enhance(r.Context(), enhance.Request{
		Prompt:      req.Prompt,
		Mode:        req.Mode,
		Model:       req.Model,
		AspectRatio: req.AspectRatio,
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("enhance: rewrite prompt")
		a.error(w, http.StatusBadGateway, "provider", "prompt enhancement failed")
		return
	}
	a.json(w, http.StatusOK, res)
}
