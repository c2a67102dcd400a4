package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"studio/internal/domain"
	"studio/internal/http/handlers"
	"studio/internal/http/httpapi"
	"studio/internal/infra"
	"studio/internal/storage"
)

func newTestServer(t *testing.T) (*httptest.Server, *handlers.App, string) {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	cfg := &infra.Config{
		SessionSecret:   "test-secret",
		LoginRatePerMin: 100,
	}
	app := handlers.NewApp(cfg, infra.Discard(), store, nil)

	// seed one user and log them in
	users := []domain.User{{
		ID:           "u1",
		Username:     "alice",
		PasswordHash: handlers.HashPassword("pw"),
		Role:         domain.RoleAdmin,
		CreatedAt:    time.Now().UnixMilli(),
	}}
	if err := store.WriteJSON(context.Background(), "users.json", users); err != nil {
		t.Fatalf("seed users: %v", err)
	}

	srv := httptest.NewServer(httpapi.NewRouter(app, cfg, infra.Discard()))
	t.Cleanup(srv.Close)

	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "pw"})
	resp, err := http.Post(srv.URL+"/api/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return srv, app, login.Token
}

func doJSON(t *testing.T, method, url, token string, payload, out any) int {
	t.Helper()
	var body []byte
	if payload != nil {
		body, _ = json.Marshal(payload)
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func TestPostJobsMergesWithStoredCopy(t *testing.T) {
	srv, _, token := newTestServer(t)
	now := time.Now().UnixMilli()

	first := []domain.BatchJob{{ID: "batches/a", Status: domain.JobStateRunning, Timestamp: now, UpdatedAt: now}}
	var merged []domain.BatchJob
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/jobs/u1", token, first, &merged); code != http.StatusOK {
		t.Fatalf("first post status = %d", code)
	}
	if len(merged) != 1 {
		t.Fatalf("merged = %+v", merged)
	}

	// a second writer posts a terminal update plus an unknown job
	second := []domain.BatchJob{
		{ID: "batches/a", Status: domain.JobStateSucceeded, Timestamp: now, UpdatedAt: now + 1000, OutputFileURI: "files/out"},
		{ID: "batches/b", Status: domain.JobStatePending, Timestamp: now + 5},
	}
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/jobs/u1", token, second, &merged); code != http.StatusOK {
		t.Fatalf("second post status = %d", code)
	}
	if len(merged) != 2 {
		t.Fatalf("merged = %+v", merged)
	}

	// a stale writer reposting the old running state must not regress it
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/jobs/u1", token, first, &merged); code != http.StatusOK {
		t.Fatalf("stale post status = %d", code)
	}
	for _, j := range merged {
		if j.ID == "batches/a" {
			if j.Status != domain.JobStateSucceeded || j.OutputFileURI != "files/out" {
				t.Fatalf("stale write regressed job: %+v", j)
			}
		}
	}

	var listed []domain.BatchJob
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/jobs/u1", token, nil, &listed); code != http.StatusOK {
		t.Fatalf("get status = %d", code)
	}
	if len(listed) != 2 {
		t.Fatalf("listed = %+v", listed)
	}
}

func TestGetJobsPrunesOldEntries(t *testing.T) {
	srv, app, token := newTestServer(t)
	old := time.Now().Add(-8 * 24 * time.Hour).UnixMilli()
	seed := []domain.BatchJob{
		{ID: "batches/old", Status: domain.JobStateSucceeded, Timestamp: old},
		{ID: "batches/new", Status: domain.JobStateRunning, Timestamp: time.Now().UnixMilli()},
	}
	if err := app.Store.WriteJSON(context.Background(), "jobs/u1.json", seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var listed []domain.BatchJob
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/jobs/u1", token, nil, &listed); code != http.StatusOK {
		t.Fatalf("get status = %d", code)
	}
	if len(listed) != 1 || listed[0].ID != "batches/new" {
		t.Fatalf("listed = %+v", listed)
	}
}

func TestJobsRequireAuth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/jobs/u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}
