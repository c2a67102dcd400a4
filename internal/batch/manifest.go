// Package batch turns a processing configuration plus uploaded resources
// into the ordered list of request records one remote batch job runs, and
// encodes them as the newline-delimited JSON manifest the provider consumes.
package batch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"studio/internal/gemini"
)

// Mode selects how resources combine with prompts.
type Mode string

const (
	// ModeImage crosses every resource with every prompt and generation copy.
	ModeImage Mode = "image"
	// ModeText groups raw text files into chunks combined with each prompt.
	ModeText Mode = "text"
)

// AspectRatioAuto is the sentinel meaning "let the model decide"; it is never
// sent on the wire.
const AspectRatioAuto = "Auto"

const (
	// DefaultFilesPerRequest bounds how many raw text files one text-mode
	// request carries.
	DefaultFilesPerRequest = 5

	// DefaultCeiling caps records per manifest for ordinary jobs;
	// StreamedCeiling applies when the caller opts into streamed result
	// handling and can afford larger result files.
	DefaultCeiling  = 100
	StreamedCeiling = 1000
)

// Config is one batch run's processing configuration.
type Config struct {
	Model           string
	Mode            Mode
	SystemPrompt    string
	UserPrompt      string
	PromptBlock     string
	AspectRatio     string
	Resolution      string
	Temperature     float64
	Generations     int
	FilesPerRequest int
	Streamed        bool
}

// Resource is one uploaded input: either a file handle already stored with
// the provider (URI + MIME type) or raw text contents for text-mode runs.
type Resource struct {
	Name     string
	URI      string
	MimeType string
	Text     string
}

// Record pairs a stable custom id with its fully built provider request. The
// custom id is the thread that re-associates an output line with its input.
type Record struct {
	CustomID string         `json:"custom_id"`
	Request  gemini.Request `json:"request"`
}

// IsProModel reports whether the model id belongs to the "pro" image family,
// which takes an explicit image size and a web-search tool instead of
// response modalities.
func IsProModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "pro")
}

// Ceiling returns the manifest size cap for this configuration.
func (c Config) Ceiling() int {
	if c.Streamed {
		return StreamedCeiling
	}
	return DefaultCeiling
}

// SplitPrompts expands a multi-prompt block into individual prompts. A line
// consisting solely of "---" anywhere in the block makes it the separator;
// otherwise every non-empty line is its own prompt. An empty block falls back
// to the single user prompt.
func SplitPrompts(block, userPrompt string) []string {
	if strings.TrimSpace(block) == "" {
		return []string{userPrompt}
	}
	lines := strings.Split(block, "\n")

	hasSeparator := false
	for _, line := range lines {
		if strings.TrimSpace(line) == "---" {
			hasSeparator = true
			break
		}
	}

	var prompts []string
	if hasSeparator {
		var current []string
		flush := func() {
			if joined := strings.TrimSpace(strings.Join(current, "\n")); joined != "" {
				prompts = append(prompts, joined)
			}
			current = current[:0]
		}
		for _, line := range lines {
			if strings.TrimSpace(line) == "---" {
				flush()
				continue
			}
			current = append(current, line)
		}
		flush()
	} else {
		for _, line := range lines {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				prompts = append(prompts, trimmed)
			}
		}
	}

	if len(prompts) == 0 {
		return []string{userPrompt}
	}
	return prompts
}

// Build produces the ordered record list for one configuration. Callers must
// gate on having at least a prompt or a resource; Build itself has no error
// path, malformed input is a contract violation.
func Build(cfg Config, resources []Resource) []Record {
	prompts := SplitPrompts(cfg.PromptBlock, cfg.UserPrompt)
	if cfg.Mode == ModeText {
		return buildTextRecords(cfg, resources, prompts)
	}
	return buildImageRecords(cfg, resources, prompts)
}

// buildImageRecords crosses (resource x prompt x generation copy). With zero
// resources each (prompt x copy) pair still yields one pure text-to-image
// record.
func buildImageRecords(cfg Config, resources []Resource, prompts []string) []Record {
	generations := cfg.Generations
	if generations <= 0 {
		generations = 1
	}

	var records []Record
	appendRecord := func(res *Resource, resIdx, promptIdx, genIdx int, prompt string) {
		var parts []gemini.Part
		name := "req"
		if res != nil {
			if sanitized := SanitizeID(res.Name); sanitized != "" {
				name = sanitized
			}
			parts = append(parts, gemini.Part{FileData: &gemini.FileData{
				MimeType: res.MimeType,
				FileURI:  res.URI,
			}})
		}
		// Image mode folds the system prompt into the user text; only text
		// mode uses a separate system instruction.
		text := prompt
		if cfg.SystemPrompt != "" {
			text = cfg.SystemPrompt + "\n\n" + prompt
		}
		parts = append(parts, gemini.Part{Text: text})

		records = append(records, Record{
			CustomID: fmt.Sprintf("%s_r%d_p%d_g%d", name, resIdx, promptIdx, genIdx),
			Request: gemini.Request{
				Contents:         []gemini.Content{{Role: "user", Parts: parts}},
				GenerationConfig: imageGenerationConfig(cfg),
				Tools:            imageTools(cfg),
			},
		})
	}

	if len(resources) == 0 {
		for pi, prompt := range prompts {
			for g := 0; g < generations; g++ {
				appendRecord(nil, 0, pi, g, prompt)
			}
		}
	} else {
		for ri := range resources {
			for pi := range prompts {
				for g := 0; g < generations; g++ {
					appendRecord(&resources[ri], ri, pi, g, prompts[pi])
				}
			}
		}
	}
	return records
}

func imageGenerationConfig(cfg Config) *gemini.GenerationConfig {
	gc := &gemini.GenerationConfig{}
	if cfg.Temperature != 0 {
		t := cfg.Temperature
		gc.Temperature = &t
	}
	if cfg.AspectRatio != "" && cfg.AspectRatio != AspectRatioAuto {
		gc.ImageConfig = &gemini.ImageConfig{AspectRatio: cfg.AspectRatio}
	}
	if IsProModel(cfg.Model) {
		if cfg.Resolution != "" {
			if gc.ImageConfig == nil {
				gc.ImageConfig = &gemini.ImageConfig{}
			}
			gc.ImageConfig.ImageSize = cfg.Resolution
		}
	} else {
		gc.ResponseModalities = []string{"TEXT", "IMAGE"}
	}
	return gc
}

func imageTools(cfg Config) []gemini.Tool {
	if !IsProModel(cfg.Model) {
		return nil
	}
	return []gemini.Tool{{GoogleSearch: &gemini.GoogleSearch{}}}
}

// buildTextRecords groups raw input files into chunks of FilesPerRequest,
// concatenates each chunk with explicit file boundary markers and pairs it
// with every prompt. The system prompt travels as a system instruction.
func buildTextRecords(cfg Config, resources []Resource, prompts []string) []Record {
	perRequest := cfg.FilesPerRequest
	if perRequest <= 0 {
		perRequest = DefaultFilesPerRequest
	}

	var chunks [][]Resource
	if len(resources) == 0 {
		chunks = [][]Resource{nil}
	}
	for start := 0; start < len(resources); start += perRequest {
		end := start + perRequest
		if end > len(resources) {
			end = len(resources)
		}
		chunks = append(chunks, resources[start:end])
	}

	var systemInstruction *gemini.Content
	if cfg.SystemPrompt != "" {
		systemInstruction = &gemini.Content{Parts: []gemini.Part{{Text: cfg.SystemPrompt}}}
	}
	var gc *gemini.GenerationConfig
	if cfg.Temperature != 0 {
		t := cfg.Temperature
		gc = &gemini.GenerationConfig{Temperature: &t}
	}

	var records []Record
	for ci, chunk := range chunks {
		for pi, prompt := range prompts {
			var sb strings.Builder
			for _, res := range chunk {
				fmt.Fprintf(&sb, "--- FILE: %s ---\n", res.Name)
				sb.WriteString(res.Text)
				sb.WriteString("\n--- END FILE ---\n")
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(prompt)

			records = append(records, Record{
				CustomID: fmt.Sprintf("chunk%d_p%d", ci, pi),
				Request: gemini.Request{
					Contents:          []gemini.Content{{Role: "user", Parts: []gemini.Part{{Text: sb.String()}}}},
					SystemInstruction: systemInstruction,
					GenerationConfig:  gc,
				},
			})
		}
	}
	return records
}

// Split partitions records into manifests no larger than ceiling, bounding
// the size of any single remote job.
func Split(records []Record, ceiling int) [][]Record {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	var out [][]Record
	for start := 0; start < len(records); start += ceiling {
		end := start + ceiling
		if end > len(records) {
			end = len(records)
		}
		out = append(out, records[start:end])
	}
	return out
}

// EncodeManifest renders records as the newline-delimited JSON manifest file
// uploaded ahead of job creation.
func EncodeManifest(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("batch: encode manifest record %q: %w", rec.CustomID, err)
		}
	}
	return buf.Bytes(), nil
}
