package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/flock"

	"studio/internal/domain"
	"studio/internal/jobs"
)

// lockRetryDelay paces lock acquisition attempts on the per-user job file.
const lockRetryDelay = 50 * time.Millisecond

// GetJobs returns a user's job registry, pruned of jobs past the retention
// window. The pruned set is what the response carries; the file itself is
// only rewritten on POST.
func (a *App) GetJobs(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")
	if !a.authorizeUser(r, userID) {
		a.error(w, http.StatusForbidden, "forbidden", "not your registry")
		return
	}

	lock, err := a.jobsLock(userID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to lock registry")
		return
	}
	locked, err := lock.TryRLockContext(r.Context(), lockRetryDelay)
	if err != nil || !locked {
		a.error(w, http.StatusServiceUnavailable, "busy", "registry is locked, retry")
		return
	}
	defer lock.Unlock()

	var stored []domain.BatchJob
	if _, err := a.Store.ReadJSON(r.Context(), a.jobsKey(userID), &stored); err != nil {
		a.Logger.Error().Err(err).Str("user", userID).Msg("jobs: read registry")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read registry")
		return
	}
	a.json(w, http.StatusOK, jobs.Prune(stored, time.Now()))
}

// PostJobs merges the caller's job set into the stored copy under an
// exclusive file lock (read-merge-write, never blind overwrite) and answers
// with the reconciled registry. Concurrent tabs converge because both sides
// run the same merge rule.
func (a *App) PostJobs(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user")
	if !a.authorizeUser(r, userID) {
		a.error(w, http.StatusForbidden, "forbidden", "not your registry")
		return
	}
	var incoming []domain.BatchJob
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid job list")
		return
	}

	lock, err := a.jobsLock(userID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to lock registry")
		return
	}
	locked, err := lock.TryLockContext(r.Context(), lockRetryDelay)
	if err != nil || !locked {
		a.error(w, http.StatusServiceUnavailable, "busy", "registry is locked, retry")
		return
	}
	defer lock.Unlock()

	var stored []domain.BatchJob
	if _, err := a.Store.ReadJSON(r.Context(), a.jobsKey(userID), &stored); err != nil {
		a.Logger.Error().Err(err).Str("user", userID).Msg("jobs: read registry")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read registry")
		return
	}
	merged := jobs.Merge(stored, incoming)
	if err := a.Store.WriteJSON(r.Context(), a.jobsKey(userID), merged); err != nil {
		a.Logger.Error().Err(err).Str("user", userID).Msg("jobs: write registry")
		a.error(w, http.StatusInternalServerError, "internal", "failed to persist registry")
		return
	}
	a.json(w, http.StatusOK, merged)
}

func (a *App) jobsKey(userID string) string {
	return "jobs/" + userID + ".json"
}

// jobsLock builds the advisory lock guarding one user's job file. The lock
// file sits next to the data file so every process contends on the same
// inode.
func (a *App) jobsLock(userID string) (*flock.Flock, error) {
	dir := filepath.Join(a.Store.BasePath(), "jobs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return flock.New(filepath.Join(dir, userID+".json.lock")), nil
}
