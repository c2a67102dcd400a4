package handlers_test

import (
	"net/http"
	"strings"
	"testing"
)

func TestEnhancePromptStaticFallback(t *testing.T) {
	srv, _, token := newTestServer(t)

	payload := map[string]string{"prompt": "a red bicycle", "mode": "image", "aspectRatio": "16:9"}
	var res struct {
		Prompt string `json:"prompt"`
	}
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/enhance", token, payload, &res); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !strings.HasPrefix(res.Prompt, "a red bicycle") || res.Prompt == "a red bicycle" {
		t.Fatalf("prompt = %q, want enriched", res.Prompt)
	}
	if !strings.Contains(res.Prompt, "16:9") {
		t.Fatalf("prompt = %q, want aspect hint", res.Prompt)
	}
}

func TestEnhancePromptRequiresPrompt(t *testing.T) {
	srv, _, token := newTestServer(t)
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/enhance", token, map[string]string{}, nil); code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
}
