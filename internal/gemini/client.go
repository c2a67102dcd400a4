// Package gemini is the REST client for the Gemini batch generation API:
// manifest upload, batch job submission, status polling, cancellation and
// result-file download. Beyond the shapes declared in types.go the wire
// contract is treated as opaque.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
)

// Options controls how the batch client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client talks to the Gemini Files and Batches endpoints.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     infra.Logger
}

// JobStatus is the normalized result of one status check.
type JobStatus struct {
	State         domain.JobState
	RawState      string
	OutputFileURI string
	Error         string
}

// CreateOptions names the model and human label for a new batch job.
type CreateOptions struct {
	Model       string
	DisplayName string
}

// NewClient constructs a batch client with sane defaults. A nil HTTP client
// gets replaced by one with a generous timeout, since manifest uploads can be
// large.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	logger := infra.Discard()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: client,
		logger:     logger,
	}
}

// UploadManifest stores the newline-delimited JSON manifest with the Files
// API and returns the provider's file resource name.
func (c *Client) UploadManifest(ctx context.Context, displayName string, manifest []byte) (string, error) {
	name, _, err := c.UploadFile(ctx, displayName, "application/jsonl", manifest)
	return name, err
}

// UploadFile stores arbitrary bytes with the Files API and returns the file
// resource name and download URI.
func (c *Client) UploadFile(ctx context.Context, displayName, mimeType string, data []byte) (string, string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := mw.CreatePart(metaHeader)
	if err != nil {
		return "", "", fmt.Errorf("gemini: build upload metadata: %w", err)
	}
	meta, _ := json.Marshal(map[string]any{"file": map[string]any{"display_name": displayName}})
	if _, err := metaPart.Write(meta); err != nil {
		return "", "", fmt.Errorf("gemini: build upload metadata: %w", err)
	}

	fileHeader := textproto.MIMEHeader{}
	fileHeader.Set("Content-Type", mimeType)
	filePart, err := mw.CreatePart(fileHeader)
	if err != nil {
		return "", "", fmt.Errorf("gemini: build upload payload: %w", err)
	}
	if _, err := filePart.Write(data); err != nil {
		return "", "", fmt.Errorf("gemini: build upload payload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", "", fmt.Errorf("gemini: finalize upload payload: %w", err)
	}

	endpoint := c.uploadBase() + "/files?uploadType=multipart"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", "", fmt.Errorf("gemini: create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())

	var out struct {
		File struct {
			Name string `json:"name"`
			URI  string `json:"uri"`
		} `json:"file"`
	}
	if err := c.do(req, &out); err != nil {
		return "", "", err
	}
	if out.File.Name == "" {
		return "", "", fmt.Errorf("gemini: upload response carried no file name")
	}
	c.logger.Debug().Str("file", out.File.Name).Int("bytes", len(data)).Msg("gemini: file uploaded")
	return out.File.Name, out.File.URI, nil
}

// CreateBatch submits a batch job referencing a previously uploaded manifest
// file and returns the initial registry record in PENDING state.
func (c *Client) CreateBatch(ctx context.Context, fileName string, opts CreateOptions) (domain.BatchJob, error) {
	payload := map[string]any{
		"batch": map[string]any{
			"display_name": opts.DisplayName,
			"input_config": map[string]any{"file_name": fileName},
		},
	}
	var out struct {
		Name     string `json:"name"`
		Metadata struct {
			State string `json:"state"`
			Model string `json:"model"`
		} `json:"metadata"`
	}
	path := fmt.Sprintf("/models/%s:batchGenerateContent", url.PathEscape(opts.Model))
	if err := c.invoke(ctx, http.MethodPost, path, payload, &out); err != nil {
		return domain.BatchJob{}, err
	}
	if out.Name == "" {
		return domain.BatchJob{}, fmt.Errorf("gemini: batch creation returned no job name")
	}

	now := time.Now()
	state := domain.ParseJobState(out.Metadata.State)
	if state == domain.JobStateUnspecified {
		state = domain.JobStatePending
	}
	job := domain.BatchJob{
		ID:        out.Name,
		DisplayID: opts.DisplayName,
		Status:    state,
		CreatedAt: now.Format("2006-01-02 15:04"),
		Timestamp: now.UnixMilli(),
		Model:     opts.Model,
	}
	c.logger.Info().Str("job_id", job.ID).Str("model", opts.Model).Msg("gemini: batch job created")
	return job, nil
}

// GetStatus fetches the job's current canonical status. For a succeeded job
// the output location is resolved through three provider shapes in order:
// explicit responses file, explicit output URI, then a default path derived
// from the job id.
func (c *Client) GetStatus(ctx context.Context, jobID string) (JobStatus, error) {
	var out struct {
		Name     string `json:"name"`
		Metadata struct {
			State  string `json:"state"`
			Output struct {
				ResponsesFile string `json:"responsesFile"`
			} `json:"output"`
		} `json:"metadata"`
		Response struct {
			ResponsesFile string `json:"responsesFile"`
			OutputURI     string `json:"outputUri"`
		} `json:"response"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := c.invoke(ctx, http.MethodGet, "/"+strings.TrimLeft(jobID, "/"), nil, &out); err != nil {
		return JobStatus{}, err
	}

	status := JobStatus{
		State:    domain.ParseJobState(out.Metadata.State),
		RawState: out.Metadata.State,
	}
	if out.Error != nil {
		status.Error = out.Error.Message
		if status.State == domain.JobStateUnspecified {
			status.State = domain.JobStateFailed
		}
	}
	if status.State == domain.JobStateSucceeded {
		switch {
		case out.Response.ResponsesFile != "":
			status.OutputFileURI = out.Response.ResponsesFile
		case out.Metadata.Output.ResponsesFile != "":
			status.OutputFileURI = out.Metadata.Output.ResponsesFile
		case out.Response.OutputURI != "":
			status.OutputFileURI = out.Response.OutputURI
		default:
			status.OutputFileURI = "files/batch-" + strings.TrimPrefix(jobID, "batches/")
		}
	}
	return status, nil
}

// Cancel requests remote cancellation. Completion is asynchronous; callers
// mark the job cancelled optimistically and reconcile with a follow-up
// GetStatus.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	path := "/" + strings.TrimLeft(jobID, "/") + ":cancel"
	return c.invoke(ctx, http.MethodPost, path, map[string]any{}, nil)
}

// Download opens the result file for streaming. The caller owns the returned
// reader. The content type is surfaced so the result parser can reject HTML
// error pages before attempting to parse them as JSONL.
func (c *Client) Download(ctx context.Context, fileURI string) (io.ReadCloser, string, error) {
	endpoint := fileURI
	if !strings.HasPrefix(fileURI, "http://") && !strings.HasPrefix(fileURI, "https://") {
		endpoint = c.downloadBase() + "/" + strings.TrimLeft(fileURI, "/") + ":download?alt=media"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("gemini: create download request: %w", err)
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("gemini: download results: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, "", c.apiError(resp)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) invoke(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("gemini: marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("gemini: create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.apiError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gemini: decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey == "" {
		return
	}
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()
}

// apiError folds a non-2xx response into one descriptive error carrying the
// provider message when present.
func (c *Client) apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("gemini: %s (%s): %w", apiErr.Error.Message, resp.Status, domain.ErrProviderFailure)
	}
	return fmt.Errorf("gemini: unexpected status %s: %w", resp.Status, domain.ErrProviderFailure)
}

// uploadBase rewrites .../v1beta into the media-upload prefix.
func (c *Client) uploadBase() string {
	if i := strings.LastIndex(c.baseURL, "/v1beta"); i >= 0 {
		return c.baseURL[:i] + "/upload" + c.baseURL[i:]
	}
	return c.baseURL + "/upload"
}

// downloadBase rewrites .../v1beta into the media-download prefix.
func (c *Client) downloadBase() string {
	if i := strings.LastIndex(c.baseURL, "/v1beta"); i >= 0 {
		return c.baseURL[:i] + "/download" + c.baseURL[i:]
	}
	return c.baseURL + "/download"
}
