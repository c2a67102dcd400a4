// Package enhance rewrites a user's raw generation prompt into a richer one
// before it goes into a batch manifest.
package enhance

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Request carries the prompt to improve and the generation context that
// shapes the rewrite.
type Request struct {
	Prompt      string
	Mode        string // image or text
	Model       string
	AspectRatio string
}

// Response is one rewritten prompt plus optional variants.
type Response struct {
	Prompt   string   `json:"prompt"`
	Variants []string `json:"variants,omitempty"`
	Provider string   `json:"-"`
}

// Enhancer turns a rough prompt into a better one.
type Enhancer interface {
	Enhance(ctx context.Context, req Request) (*Response, error)
}

const staticProviderName = "static"

// StaticEnhancer is the no-network fallback: it appends quality directives
// appropriate for the mode rather than calling a model.
type StaticEnhancer struct{}

func NewStaticEnhancer() *StaticEnhancer {
	return &StaticEnhancer{}
}

func (s *StaticEnhancer) Enhance(ctx context.Context, req Request) (*Response, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, fmt.Errorf("enhance: empty prompt")
	}
	suffix := "detailed and well structured"
	if req.Mode == "image" {
		suffix = "high detail, natural lighting, sharp focus"
		if req.AspectRatio != "" && req.AspectRatio != "Auto" {
			suffix += ", composed for " + req.AspectRatio
		}
	}
	c := cases.Title(language.Und)
	return &Response{
		Prompt:   prompt + ". " + c.String(suffix[:1]) + suffix[1:] + ".",
		Provider: staticProviderName,
	}, nil
}

var _ Enhancer = (*StaticEnhancer)(nil)
