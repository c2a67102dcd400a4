package gemini

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"studio/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestUploadManifest(t *testing.T) {
	var captured *http.Request
	var capturedBody string
	client := NewClient(Options{
		APIKey: "k",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			captured = r
			raw, _ := io.ReadAll(r.Body)
			capturedBody = string(raw)
			return jsonResponse(200, `{"file":{"name":"files/abc123"}}`), nil
		})},
	})

	name, err := client.UploadManifest(context.Background(), "batch-1", []byte(`{"custom_id":"a"}`+"\n"))
	if err != nil {
		t.Fatalf("UploadManifest: %v", err)
	}
	if name != "files/abc123" {
		t.Fatalf("file name = %q", name)
	}
	if !strings.Contains(captured.URL.Path, "/upload/v1beta/files") {
		t.Fatalf("upload path = %q", captured.URL.Path)
	}
	if captured.URL.Query().Get("key") != "k" {
		t.Fatal("api key not attached")
	}
	if !strings.HasPrefix(captured.Header.Get("Content-Type"), "multipart/related") {
		t.Fatalf("content type = %q", captured.Header.Get("Content-Type"))
	}
	if !strings.Contains(capturedBody, `"display_name":"batch-1"`) {
		t.Fatal("metadata part missing display name")
	}
	if !strings.Contains(capturedBody, `{"custom_id":"a"}`) {
		t.Fatal("manifest payload missing")
	}
}

func TestCreateBatch(t *testing.T) {
	client := NewClient(Options{
		APIKey: "k",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if !strings.Contains(r.URL.Path, "/models/gemini-2.5-flash-image:batchGenerateContent") {
				t.Fatalf("path = %q", r.URL.Path)
			}
			raw, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(raw), `"file_name":"files/abc"`) {
				t.Fatalf("body = %s", raw)
			}
			return jsonResponse(200, `{"name":"batches/xyz","metadata":{"state":"JOB_STATE_PENDING"}}`), nil
		})},
	})

	job, err := client.CreateBatch(context.Background(), "files/abc", CreateOptions{
		Model:       "gemini-2.5-flash-image",
		DisplayName: "run 1",
	})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if job.ID != "batches/xyz" {
		t.Fatalf("job id = %q", job.ID)
	}
	if job.Status != domain.JobStatePending {
		t.Fatalf("status = %q", job.Status)
	}
	if job.Timestamp == 0 || job.CreatedAt == "" {
		t.Fatal("creation timestamps not populated")
	}
}

func TestGetStatusOutputFallbacks(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "explicit responses file",
			body: `{"metadata":{"state":"JOB_STATE_SUCCEEDED"},"response":{"responsesFile":"files/out-1"}}`,
			want: "files/out-1",
		},
		{
			name: "metadata destination",
			body: `{"metadata":{"state":"JOB_STATE_SUCCEEDED","output":{"responsesFile":"files/out-2"}}}`,
			want: "files/out-2",
		},
		{
			name: "explicit output uri",
			body: `{"metadata":{"state":"JOB_STATE_SUCCEEDED"},"response":{"outputUri":"https://example.com/out.jsonl"}}`,
			want: "https://example.com/out.jsonl",
		},
		{
			name: "derived default path",
			body: `{"metadata":{"state":"JOB_STATE_SUCCEEDED"}}`,
			want: "files/batch-xyz",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := NewClient(Options{HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
				return jsonResponse(200, tc.body), nil
			})}})
			status, err := client.GetStatus(context.Background(), "batches/xyz")
			if err != nil {
				t.Fatalf("GetStatus: %v", err)
			}
			if status.State != domain.JobStateSucceeded {
				t.Fatalf("state = %q", status.State)
			}
			if status.OutputFileURI != tc.want {
				t.Fatalf("output = %q, want %q", status.OutputFileURI, tc.want)
			}
		})
	}
}

func TestGetStatusNonTerminalHasNoOutput(t *testing.T) {
	client := NewClient(Options{HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"metadata":{"state":"JOB_STATE_RUNNING","output":{"responsesFile":"files/early"}}}`), nil
	})}})
	status, err := client.GetStatus(context.Background(), "batches/xyz")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.State != domain.JobStateRunning {
		t.Fatalf("state = %q", status.State)
	}
	if status.OutputFileURI != "" {
		t.Fatalf("output populated before success: %q", status.OutputFileURI)
	}
}

func TestAPIErrorCarriesProviderMessage(t *testing.T) {
	client := NewClient(Options{HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(403, `{"error":{"message":"API key lacks batch permission","status":"PERMISSION_DENIED"}}`), nil
	})}})
	_, err := client.GetStatus(context.Background(), "batches/xyz")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "API key lacks batch permission") {
		t.Fatalf("error = %v", err)
	}
}

func TestDownloadStreams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "files/out:download") {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("alt") != "media" {
			t.Fatal("alt=media missing")
		}
		w.Header().Set("Content-Type", "application/jsonl")
		_, _ = io.WriteString(w, "{}\n")
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL + "/v1beta", HTTPClient: srv.Client()})
	rc, contentType, err := client.Download(context.Background(), "files/out")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer rc.Close()
	if contentType != "application/jsonl" {
		t.Fatalf("content type = %q", contentType)
	}
	raw, _ := io.ReadAll(rc)
	if string(raw) != "{}\n" {
		t.Fatalf("body = %q", raw)
	}
}

func TestCancel(t *testing.T) {
	var path string
	client := NewClient(Options{HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		path = r.URL.Path
		return jsonResponse(200, `{}`), nil
	})}})
	if err := client.Cancel(context.Background(), "batches/xyz"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !strings.HasSuffix(path, "/batches/xyz:cancel") {
		t.Fatalf("cancel path = %q", path)
	}
}
