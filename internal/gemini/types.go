package gemini

import "encoding/json"

// Request is the explicitly modeled generateContent request body a manifest
// record carries. Only the fields the studio populates are declared; the
// provider ignores absent optional fields.
type Request struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
	Tools             []Tool            `json:"tools,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts,omitempty"`
}

type Part struct {
	Text       string    `json:"text,omitempty"`
	InlineData *Blob     `json:"inlineData,omitempty"`
	FileData   *FileData `json:"fileData,omitempty"`
}

type Blob struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type FileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri,omitempty"`
}

type GenerationConfig struct {
	Temperature        *float64     `json:"temperature,omitempty"`
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	ImageConfig        *ImageConfig `json:"imageConfig,omitempty"`
}

type ImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type Tool struct {
	GoogleSearch *GoogleSearch `json:"google_search,omitempty"`
}

type GoogleSearch struct{}

// ResultLine is one record of a batch result file: the original custom id
// plus the provider response for that request.
type ResultLine struct {
	CustomID string         `json:"custom_id"`
	Response ResultResponse `json:"response"`
}

type ResultResponse struct {
	Candidates []ResultCandidate `json:"candidates"`
}

type ResultCandidate struct {
	Content ResultContent `json:"content"`
}

type ResultContent struct {
	Parts []ResultPart `json:"parts"`
}

// ResultPart accepts both the camelCase and snake_case spellings the batch
// output files use for inline data.
type ResultPart struct {
	Text            string      `json:"text"`
	InlineData      *ResultBlob `json:"inlineData"`
	InlineDataSnake *ResultBlob `json:"inline_data"`
}

// Inline returns the part's inline payload under either spelling, or nil.
func (p ResultPart) Inline() *ResultBlob {
	if p.InlineData != nil {
		return p.InlineData
	}
	return p.InlineDataSnake
}

type ResultBlob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// UnmarshalJSON folds mime_type into MimeType so downstream code sees one
// field regardless of the file's spelling.
func (b *ResultBlob) UnmarshalJSON(raw []byte) error {
	var aux struct {
		MimeType      string `json:"mimeType"`
		MimeTypeSnake string `json:"mime_type"`
		Data          string `json:"data"`
	}
	if err := json.Unmarshal(raw, &aux); err != nil {
		return err
	}
	b.MimeType = aux.MimeType
	if b.MimeType == "" {
		b.MimeType = aux.MimeTypeSnake
	}
	b.Data = aux.Data
	return nil
}
