// Package results incrementally parses newline-delimited JSON batch result
// files into typed image and text items. The whole file is never buffered;
// lines are decoded as they complete and handed to the consumer in batches.
package results

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"studio/internal/domain"
	"studio/internal/gemini"
	"studio/internal/infra"
)

// ErrHTMLResponse reports that the provider answered with an HTML page
// instead of a result file, which almost always means an auth or permission
// problem rendered as a web page.
var ErrHTMLResponse = errors.New("results: provider returned an HTML page instead of results (check API key and permissions)")

const (
	readChunkSize = 32 << 10

	// htmlSniffBytes is how much leading content the HTML check wants before
	// committing to a verdict; anything shorter is decided at the first
	// newline or at EOF.
	htmlSniffBytes = 16
)

// Parser extracts items from a result stream.
type Parser struct {
	logger infra.Logger
}

// NewParser builds a parser; a nil logger discards diagnostics.
func NewParser(logger *infra.Logger) *Parser {
	l := infra.Discard()
	if logger != nil {
		l = *logger
	}
	return &Parser{logger: l}
}

// ParseResponse rejects HTML payloads up front based on the transport's
// content type, then parses the stream.
func (p *Parser) ParseResponse(ctx context.Context, r io.Reader, contentType string, emit func([]domain.ExtractedItem) error) error {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return ErrHTMLResponse
	}
	return p.Parse(ctx, r, emit)
}

// Parse reads r incrementally, emitting the items of each completed line in
// source order. Malformed lines are skipped with a log entry; they never
// abort the stream. A trailing fragment without a final newline is parsed as
// one more line at EOF.
func (p *Parser) Parse(ctx context.Context, r io.Reader, emit func([]domain.ExtractedItem) error) error {
	var (
		pending []byte
		buf     = make([]byte, readChunkSize)
		lineNo  int
		sniffed bool
	)

	processLine := func(line []byte) error {
		lineNo++
		items := p.parseLine(line, lineNo)
		if len(items) == 0 {
			return nil
		}
		if emit != nil {
			return emit(items)
		}
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := r.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)

			if !sniffed {
				trimmed := bytes.TrimLeft(pending, " \t\r\n")
				// Wait for enough content to make the call: a short first
				// read like "<!doc" must not slip past as non-HTML. A
				// completed first line is always enough.
				if len(trimmed) >= htmlSniffBytes || bytes.IndexByte(trimmed, '\n') >= 0 {
					sniffed = true
					if looksLikeHTML(trimmed) {
						return ErrHTMLResponse
					}
				}
			}

			for {
				idx := bytes.IndexByte(pending, '\n')
				if idx < 0 {
					break
				}
				line := pending[:idx]
				pending = pending[idx+1:]
				if err := processLine(line); err != nil {
					return err
				}
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				return fmt.Errorf("results: read stream: %w", readErr)
			}
			break
		}
	}

	if len(bytes.TrimSpace(pending)) > 0 {
		if !sniffed && looksLikeHTML(bytes.TrimSpace(pending)) {
			return ErrHTMLResponse
		}
		if err := processLine(pending); err != nil {
			return err
		}
	}
	return nil
}

// Stream runs Parse in a producer goroutine and delivers item batches over a
// channel, decoupling the parsing algorithm from whatever consumes it. The
// error channel receives at most one value, after the item channel closes.
func (p *Parser) Stream(ctx context.Context, r io.Reader) (<-chan []domain.ExtractedItem, <-chan error) {
	items := make(chan []domain.ExtractedItem)
	errc := make(chan error, 1)
	go func() {
		defer close(items)
		err := p.Parse(ctx, r, func(batch []domain.ExtractedItem) error {
			select {
			case items <- batch:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		errc <- err
	}()
	return items, errc
}

// parseLine turns one result line into zero or more items. Image-bearing
// lines yield one item per inline image in part order; otherwise the text
// parts concatenate into a single text item; a parseable line with neither
// yields nothing.
func (p *Parser) parseLine(line []byte, lineNo int) []domain.ExtractedItem {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}
	var rec gemini.ResultLine
	if err := json.Unmarshal(line, &rec); err != nil {
		p.logger.Warn().Err(err).Int("line", lineNo).Msg("results: skipping malformed result line")
		return nil
	}

	name := rec.CustomID
	if name == "" {
		name = fmt.Sprintf("result_%d", lineNo)
	}

	var items []domain.ExtractedItem
	var texts []string
	imageIdx := 0
	for _, cand := range rec.Response.Candidates {
		for _, part := range cand.Content.Parts {
			if inline := part.Inline(); inline != nil && inline.Data != "" {
				imageIdx++
				items = append(items, domain.ExtractedItem{
					ID:       uuid.NewString(),
					Name:     imageName(name, imageIdx, inline.MimeType),
					Type:     domain.ItemTypeImage,
					Data:     inline.Data,
					MimeType: inline.MimeType,
				})
				continue
			}
			if part.Text != "" {
				texts = append(texts, part.Text)
			}
		}
	}
	if len(items) > 0 {
		return items
	}
	if len(texts) > 0 {
		return []domain.ExtractedItem{{
			ID:   uuid.NewString(),
			Name: name + ".txt",
			Type: domain.ItemTypeText,
			Data: strings.Join(texts, ""),
		}}
	}
	return nil
}

func imageName(base string, idx int, mimeType string) string {
	ext := "png"
	if strings.Contains(strings.ToLower(mimeType), "jpeg") || strings.Contains(strings.ToLower(mimeType), "jpg") {
		ext = "jpg"
	}
	if idx > 1 {
		return fmt.Sprintf("%s_%d.%s", base, idx, ext)
	}
	return base + "." + ext
}

func looksLikeHTML(trimmed []byte) bool {
	if len(trimmed) == 0 || trimmed[0] != '<' {
		return false
	}
	lower := bytes.ToLower(trimmed[:min(len(trimmed), 32)])
	return bytes.HasPrefix(lower, []byte("<!doctype")) || bytes.HasPrefix(lower, []byte("<html"))
}
