package handlers

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studio/internal/domain"
	"studio/internal/provenance"
	"studio/pkg/zip"
)

type saveRequest struct {
	Type        string `json:"type"`
	Model       string `json:"model"`
	Prompt      string `json:"prompt"`
	ImageBase64 string `json:"imageBase64,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
	Text        string `json:"text,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
}

// SaveHistory persists one chosen result: image bytes (when present) go to
// the user's image directory, the gallery entry is appended to the history
// file with a server-side record digest computed over the server's own
// canonical serialization of the entry.
func (a *App) SaveHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")
	if !a.authorizeUser(r, userID) {
		a.error(w, http.StatusForbidden, "forbidden", "not your gallery")
		return
	}
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.ImageBase64 == "" && req.Text == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "nothing to save")
		return
	}

	item := domain.HistoryItem{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        domain.ItemType(req.Type),
		Model:       req.Model,
		Prompt:      req.Prompt,
		Text:        req.Text,
		AspectRatio: req.AspectRatio,
		Timestamp:   req.Timestamp,
	}
	if item.Type == "" {
		item.Type = domain.ItemTypeText
	}
	if item.Timestamp == 0 {
		item.Timestamp = time.Now().UnixMilli()
	}

	if req.ImageBase64 != "" {
		raw, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "image is not valid base64")
			return
		}
		item.Type = domain.ItemTypeImage
		item.ImagePath = fmt.Sprintf("images/%s/%s.%s", userID, item.ID, imageExt(req.MimeType))
		if _, err := a.Store.Write(r.Context(), item.ImagePath, raw); err != nil {
			a.Logger.Error().Err(err).Str("user", userID).Msg("history: write image")
			a.error(w, http.StatusInternalServerError, "internal", "failed to store image")
			return
		}
	}

	// The server's digest is independent of any client-side provenance
	// signature: it covers the entry exactly as the server stores it.
	canonical, err := provenance.CanonicalJSON(item)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to canonicalize record")
		return
	}
	sum := sha256.Sum256(canonical)
	item.RecordSHA256 = hex.EncodeToString(sum[:])

	var items []domain.HistoryItem
	if _, err := a.Store.ReadJSON(r.Context(), a.historyKey(userID), &items); err != nil {
		a.Logger.Error().Err(err).Str("user", userID).Msg("history: read gallery")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read gallery")
		return
	}
	items = append(items, item)
	if err := a.Store.WriteJSON(r.Context(), a.historyKey(userID), items); err != nil {
		a.Logger.Error().Err(err).Str("user", userID).Msg("history: write gallery")
		a.error(w, http.StatusInternalServerError, "internal", "failed to persist gallery")
		return
	}
	a.json(w, http.StatusCreated, item)
}

// ListHistory returns the user's gallery, newest first.
func (a *App) ListHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")
	if !a.authorizeUser(r, userID) {
		a.error(w, http.StatusForbidden, "forbidden", "not your gallery")
		return
	}
	var items []domain.HistoryItem
	if _, err := a.Store.ReadJSON(r.Context(), a.historyKey(userID), &items); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to read gallery")
		return
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	a.json(w, http.StatusOK, items)
}

// DeleteHistory removes one gallery entry and its image file.
func (a *App) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")
	itemID := chi.URLParam(r, "id")
	if !a.authorizeUser(r, userID) {
		a.error(w, http.StatusForbidden, "forbidden", "not your gallery")
		return
	}
	var items []domain.HistoryItem
	if _, err := a.Store.ReadJSON(r.Context(), a.historyKey(userID), &items); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to read gallery")
		return
	}
	kept := items[:0]
	var removed *domain.HistoryItem
	for _, item := range items {
		if item.ID == itemID {
			removed = &item
			continue
		}
		kept = append(kept, item)
	}
	if removed == nil {
		a.error(w, http.StatusNotFound, "not_found", "no such gallery entry")
		return
	}
	if removed.ImagePath != "" {
		if err := a.Store.Remove(r.Context(), removed.ImagePath); err != nil {
			a.Logger.Warn().Err(err).Str("path", removed.ImagePath).Msg("history: remove image")
		}
	}
	if err := a.Store.WriteJSON(r.Context(), a.historyKey(userID), kept); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to persist gallery")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"deleted": itemID})
}

// GetHistoryImage serves a stored image file.
func (a *App) GetHistoryImage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")
	itemID := chi.URLParam(r, "id")
	if !a.authorizeUser(r, userID) {
		a.error(w, http.StatusForbidden, "forbidden", "not your gallery")
		return
	}
	var items []domain.HistoryItem
	if _, err := a.Store.ReadJSON(r.Context(), a.historyKey(userID), &items); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to read gallery")
		return
	}
	for _, item := range items {
		if item.ID != itemID || item.ImagePath == "" {
			continue
		}
		data, err := a.Store.Read(r.Context(), item.ImagePath)
		if err != nil {
			a.error(w, http.StatusNotFound, "not_found", "image file missing")
			return
		}
		w.Header().Set("Content-Type", mimeFromPath(item.ImagePath))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	a.error(w, http.StatusNotFound, "not_found", "no such gallery entry")
}

// ArchiveHistory streams the user's saved images as one zip file.
func (a *App) ArchiveHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")
	if !a.authorizeUser(r, userID) {
		a.error(w, http.StatusForbidden, "forbidden", "not your gallery")
		return
	}
	var items []domain.HistoryItem
	if _, err := a.Store.ReadJSON(r.Context(), a.historyKey(userID), &items); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to read gallery")
		return
	}
	var assets []zip.Asset
	for _, item := range items {
		if item.ImagePath == "" {
			continue
		}
		data, err := a.Store.Read(r.Context(), item.ImagePath)
		if err != nil {
			continue
		}
		assets = append(assets, zip.Asset{
			Filename: item.ID + "." + strings.TrimPrefix(mimeFromPath(item.ImagePath), "image/"),
			MIME:     mimeFromPath(item.ImagePath),
			Data:     data,
		})
	}
	archive := zip.ArchiveAssets(assets)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=gallery-%s.zip", userID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func (a *App) historyKey(userID string) string {
	return "history/" + userID + ".json"
}

func imageExt(mimeType string) string {
	if strings.Contains(strings.ToLower(mimeType), "jpeg") || strings.Contains(strings.ToLower(mimeType), "jpg") {
		return "jpg"
	}
	return "png"
}

func mimeFromPath(path string) string {
	if strings.HasSuffix(path, ".jpg") {
		return "image/jpeg"
	}
	return "image/png"
}
