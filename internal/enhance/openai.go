package enhance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	openAIProviderName   = "openai"
	openAIDefaultTimeout = 15 * time.Second
	defaultOpenAIModel   = "gpt-4o-mini"
)

// OpenAIOptions configures the chat-completions backed enhancer. Every
// failure path degrades to Fallback instead of surfacing an error, so a
// broken key never blocks a batch submission.
type OpenAIOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Fallback   Enhancer
	OnFallback func(reason string, err error)
}

type OpenAIEnhancer struct {
	apiKey     string
	model      string
	baseURL    string
	client     *http.Client
	fallback   Enhancer
	onFallback func(reason string, err error)
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature,omitempty"`
	ResponseFormat *chatFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// modelPayload is the JSON shape the model is instructed to answer with.
type modelPayload struct {
	Prompt   string   `json:"prompt"`
	Variants []string `json:"variants"`
}

func NewOpenAIEnhancer(opts OpenAIOptions) (*OpenAIEnhancer, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("enhance: openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIDefaultTimeout}
	}
	return &OpenAIEnhancer{
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      model,
		baseURL:    baseURL,
		client:     client,
		fallback:   opts.Fallback,
		onFallback: opts.OnFallback,
	}, nil
}

func (o *OpenAIEnhancer) Enhance(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("enhance: empty prompt")
	}
	payload := chatRequest{
		Model:          o.model,
		Temperature:    0.6,
		ResponseFormat: &chatFormat{Type: "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: "You rewrite prompts for a generative model and only respond with valid JSON."},
			{Role: "user", Content: buildEnhanceInstruction(req)},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return o.useFallback(ctx, req, "encode_request", err)
	}
	endpoint := o.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return o.useFallback(ctx, req, "build_request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return o.useFallback(ctx, req, "http_request", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return o.useFallback(ctx, req, fmt.Sprintf("http_%d", resp.StatusCode), fmt.Errorf("openai status %d", resp.StatusCode))
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return o.useFallback(ctx, req, "decode_response", err)
	}
	if len(out.Choices) == 0 {
		return o.useFallback(ctx, req, "empty_choices", errors.New("no choices"))
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return o.useFallback(ctx, req, "empty_response", errors.New("empty response"))
	}
	var parsed modelPayload
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &parsed); err != nil {
		return o.useFallback(ctx, req, "parse_payload", err)
	}
	if strings.TrimSpace(parsed.Prompt) == "" {
		return o.useFallback(ctx, req, "empty_prompt", errors.New("model returned no prompt"))
	}
	return &Response{
		Prompt:   strings.TrimSpace(parsed.Prompt),
		Variants: trimVariants(parsed.Variants),
		Provider: openAIProviderName,
	}, nil
}

func (o *OpenAIEnhancer) useFallback(ctx context.Context, req Request, reason string, cause error) (*Response, error) {
	if o.onFallback != nil {
		o.onFallback(reason, cause)
	}
	if o.fallback == nil {
		if cause != nil {
			return nil, fmt.Errorf("enhance: %s: %w", reason, cause)
		}
		return nil, fmt.Errorf("enhance: %s", reason)
	}
	res, err := o.fallback.Enhance(ctx, req)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func buildEnhanceInstruction(req Request) string {
	var b strings.Builder
	b.WriteString("Rewrite the prompt below into a richer, more specific one for a ")
	if req.Mode == "image" {
		b.WriteString("text-to-image model")
	} else {
		b.WriteString("text generation model")
	}
	if req.Model != "" {
		fmt.Fprintf(&b, " (%s)", req.Model)
	}
	b.WriteString(". ")
	if req.AspectRatio != "" && req.AspectRatio != "Auto" {
		fmt.Fprintf(&b, "The output will use a %s aspect ratio. ", req.AspectRatio)
	}
	b.WriteString(`Answer with JSON: {"prompt": string, "variants": [up to 2 alternative rewrites]}.`)
	b.WriteString("\n\nPrompt:\n")
	b.WriteString(req.Prompt)
	return b.String()
}

// stripCodeFence unwraps ```json fences some models insist on despite the
// json_object response format.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func trimVariants(variants []string) []string {
	var out []string
	for _, v := range variants {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
		if len(out) == 2 {
			break
		}
	}
	return out
}

var _ Enhancer = (*OpenAIEnhancer)(nil)
