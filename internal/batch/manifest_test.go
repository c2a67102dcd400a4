package batch

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestSplitPrompts(t *testing.T) {
	cases := []struct {
		name  string
		block string
		want  []string
	}{
		{
			name:  "separator rule wins when present",
			block: "cat\n---\ndog and cat\nsecond line",
			want:  []string{"cat", "dog and cat\nsecond line"},
		},
		{
			name:  "newline split without separator",
			block: "cat\ndog",
			want:  []string{"cat", "dog"},
		},
		{
			name:  "blank lines dropped in newline mode",
			block: "cat\n\n\ndog\n",
			want:  []string{"cat", "dog"},
		},
		{
			name:  "empty block falls back to user prompt",
			block: "   \n",
			want:  []string{"fallback"},
		},
		{
			name:  "separator-only block falls back",
			block: "---\n---",
			want:  []string{"fallback"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitPrompts(tc.block, "fallback")
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("SplitPrompts = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBuildImageCrossProduct(t *testing.T) {
	cfg := Config{
		Model:       "gemini-2.5-flash-image",
		Mode:        ModeImage,
		UserPrompt:  "unused",
		PromptBlock: "cat\ndog",
		AspectRatio: AspectRatioAuto,
		Generations: 2,
	}
	resources := []Resource{
		{Name: "a.png", URI: "files/a", MimeType: "image/png"},
		{Name: "b.png", URI: "files/b", MimeType: "image/png"},
		{Name: "c.png", URI: "files/c", MimeType: "image/png"},
	}

	records := Build(cfg, resources)
	if len(records) != 12 {
		t.Fatalf("record count = %d, want 12", len(records))
	}
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if seen[rec.CustomID] {
			t.Fatalf("duplicate custom id %q", rec.CustomID)
		}
		seen[rec.CustomID] = true

		gc := rec.Request.GenerationConfig
		if gc == nil {
			t.Fatal("generation config missing")
		}
		if !reflect.DeepEqual(gc.ResponseModalities, []string{"TEXT", "IMAGE"}) {
			t.Fatalf("responseModalities = %v", gc.ResponseModalities)
		}
		if gc.ImageConfig != nil && gc.ImageConfig.ImageSize != "" {
			t.Fatal("non-pro model must not set imageSize")
		}
		if len(rec.Request.Tools) != 0 {
			t.Fatal("non-pro model must not attach tools")
		}
		if rec.Request.Contents[0].Parts[0].FileData == nil {
			t.Fatal("resource file part missing")
		}
	}
}

func TestBuildImageWithoutResources(t *testing.T) {
	cfg := Config{Model: "gemini-2.5-flash-image", Mode: ModeImage, UserPrompt: "a red fox", Generations: 3}
	records := Build(cfg, nil)
	if len(records) != 3 {
		t.Fatalf("record count = %d, want 3", len(records))
	}
	for _, rec := range records {
		parts := rec.Request.Contents[0].Parts
		if len(parts) != 1 || parts[0].Text != "a red fox" {
			t.Fatalf("parts = %+v", parts)
		}
	}
}

func TestBuildProModel(t *testing.T) {
	cfg := Config{
		Model:       "gemini-3-pro-image",
		Mode:        ModeImage,
		UserPrompt:  "p",
		Resolution:  "2K",
		AspectRatio: "16:9",
	}
	records := Build(cfg, nil)
	if len(records) != 1 {
		t.Fatalf("record count = %d", len(records))
	}
	gc := records[0].Request.GenerationConfig
	if gc.ImageConfig == nil || gc.ImageConfig.ImageSize != "2K" {
		t.Fatalf("imageConfig = %+v", gc.ImageConfig)
	}
	if gc.ImageConfig.AspectRatio != "16:9" {
		t.Fatalf("aspectRatio = %q", gc.ImageConfig.AspectRatio)
	}
	if len(gc.ResponseModalities) != 0 {
		t.Fatal("pro model must not request response modalities")
	}
	if len(records[0].Request.Tools) != 1 || records[0].Request.Tools[0].GoogleSearch == nil {
		t.Fatal("pro model must attach the web search tool")
	}
}

func TestBuildImageSystemPromptConcatenated(t *testing.T) {
	cfg := Config{Model: "m", Mode: ModeImage, SystemPrompt: "sys", UserPrompt: "user"}
	records := Build(cfg, nil)
	text := records[0].Request.Contents[0].Parts[0].Text
	if text != "sys\n\nuser" {
		t.Fatalf("text = %q", text)
	}
	if records[0].Request.SystemInstruction != nil {
		t.Fatal("image mode must not use systemInstruction")
	}
}

func TestAutoAspectRatioOmitted(t *testing.T) {
	cfg := Config{Model: "m", Mode: ModeImage, UserPrompt: "p", AspectRatio: AspectRatioAuto}
	records := Build(cfg, nil)
	if gc := records[0].Request.GenerationConfig; gc.ImageConfig != nil {
		t.Fatalf("imageConfig = %+v, want nil for Auto", gc.ImageConfig)
	}
}

func TestBuildTextModeChunking(t *testing.T) {
	cfg := Config{
		Model:           "gemini-2.5-flash",
		Mode:            ModeText,
		SystemPrompt:    "be terse",
		UserPrompt:      "summarize",
		FilesPerRequest: 2,
	}
	resources := []Resource{
		{Name: "one.txt", Text: "first"},
		{Name: "two.txt", Text: "second"},
		{Name: "three.txt", Text: "third"},
	}
	records := Build(cfg, resources)
	if len(records) != 2 {
		t.Fatalf("record count = %d, want 2 chunks", len(records))
	}
	first := records[0].Request.Contents[0].Parts[0].Text
	if !strings.Contains(first, "--- FILE: one.txt ---") || !strings.Contains(first, "--- FILE: two.txt ---") {
		t.Fatalf("chunk 0 missing boundary markers: %q", first)
	}
	if strings.Contains(first, "three.txt") {
		t.Fatal("chunk 0 leaked a file from chunk 1")
	}
	if !strings.HasSuffix(first, "summarize") {
		t.Fatalf("prompt not appended: %q", first)
	}
	si := records[0].Request.SystemInstruction
	if si == nil || si.Parts[0].Text != "be terse" {
		t.Fatalf("systemInstruction = %+v", si)
	}
	if records[0].CustomID == records[1].CustomID {
		t.Fatal("chunk custom ids collide")
	}
}

func TestSanitizeID(t *testing.T) {
	cases := []struct{ in, want string }{
		{"photo.final.png", "photo_final_png"},
		{"Кошка.png", "koshka_png"},
		{"щука и ёж.jpg", "shchukaiezh_jpg"},
		{"café résumé.txt", "caferesume_txt"},
		{"weird $#@! name", "weirdname"},
		{"UPPER-case_ok", "upper-case_ok"},
	}
	for _, tc := range cases {
		if got := SanitizeID(tc.in); got != tc.want {
			t.Fatalf("SanitizeID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSplitCeilings(t *testing.T) {
	records := make([]Record, 250)
	chunks := Split(records, DefaultCeiling)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	if len(chunks[0]) != 100 || len(chunks[2]) != 50 {
		t.Fatalf("chunk sizes = %d/%d", len(chunks[0]), len(chunks[2]))
	}
	if got := Split(records, StreamedCeiling); len(got) != 1 {
		t.Fatalf("streamed chunks = %d, want 1", len(got))
	}

	if (Config{}).Ceiling() != DefaultCeiling {
		t.Fatal("default ceiling")
	}
	if (Config{Streamed: true}).Ceiling() != StreamedCeiling {
		t.Fatal("streamed ceiling")
	}
}

func TestEncodeManifest(t *testing.T) {
	records := Build(Config{Model: "m", Mode: ModeImage, UserPrompt: "p", Generations: 2}, nil)
	raw, err := EncodeManifest(records)
	if err != nil {
		t.Fatalf("EncodeManifest: %v", err)
	}
	lines := bytes.Split(bytes.TrimRight(raw, "\n"), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("line count = %d", len(lines))
	}
	for i, line := range lines {
		var decoded struct {
			CustomID string          `json:"custom_id"`
			Request  json.RawMessage `json:"request"`
		}
		if err := json.Unmarshal(line, &decoded); err != nil {
			t.Fatalf("line %d not valid JSON: %v", i, err)
		}
		if decoded.CustomID == "" || len(decoded.Request) == 0 {
			t.Fatalf("line %d incomplete: %s", i, line)
		}
	}
}
