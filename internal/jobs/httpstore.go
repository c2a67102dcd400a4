package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"studio/internal/domain"
)

// HTTPStore persists a user's job set through the studio server's registry
// endpoints. The server applies the same Merge against its on-disk copy
// before answering, so Save returns the reconciled set.
type HTTPStore struct {
	baseURL    string
	userID     string
	token      string
	httpClient *http.Client
}

// NewHTTPStore points a store at the server's /api/jobs endpoints.
func NewHTTPStore(baseURL, userID, token string, httpClient *http.Client) *HTTPStore {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userID:     userID,
		token:      token,
		httpClient: httpClient,
	}
}

func (s *HTTPStore) Load(ctx context.Context) ([]domain.BatchJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(), nil)
	if err != nil {
		return nil, err
	}
	return s.do(req)
}

func (s *HTTPStore) Save(ctx context.Context, jobsList []domain.BatchJob) ([]domain.BatchJob, error) {
	payload, err := json.Marshal(jobsList)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *HTTPStore) endpoint() string {
	return s.baseURL + "/api/jobs/" + s.userID
}

func (s *HTTPStore) do(req *http.Request) ([]domain.BatchJob, error) {
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jobs: registry request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return nil, fmt.Errorf("jobs: registry responded %s: %s", resp.Status, bytes.TrimSpace(raw))
	}
	var out []domain.BatchJob
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("jobs: decode registry response: %w", err)
	}
	return out, nil
}
