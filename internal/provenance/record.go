// Package provenance builds signed metadata records proving a generated
// image's origin and parameters, and embeds them inside the image file
// through the pngmeta codec.
package provenance

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"studio/internal/pngmeta"
)

const (
	// Schema tags the record format so future revisions stay distinguishable.
	Schema = "studio-provenance/1"
	// ChunkKeyword is the iTXt keyword the record is embedded under.
	ChunkKeyword = "studio:provenance"

	secretSize = 32
)

// Record is the canonical provenance document. Once computed for an artifact
// it is immutable; the signature covers every other field.
type Record struct {
	Schema       string `json:"schema"`
	WorkID       string `json:"workId"`
	CreatedAt    string `json:"createdAt"`
	RecordedAt   string `json:"recordedAt"`
	Author       string `json:"author,omitempty"`
	Model        string `json:"model,omitempty"`
	Resolution   string `json:"resolution,omitempty"`
	AspectRatio  string `json:"aspectRatio,omitempty"`
	InputImages  int    `json:"inputImages"`
	ImageSHA256  string `json:"imageSha256"`
	PromptSHA256 string `json:"promptSha256,omitempty"`
	Signature    string `json:"signature,omitempty"`
}

// Metadata carries the generation parameters a record is built from.
type Metadata struct {
	Author      string
	Model       string
	Resolution  string
	AspectRatio string
	InputImages int
	Prompt      string
	CreatedAt   time.Time
}

// Builder signs provenance records with a local HMAC secret.
type Builder struct {
	secret []byte
	now    func() time.Time
}

// NewBuilder wraps an existing signing secret.
func NewBuilder(secret []byte) *Builder {
	return &Builder{secret: secret, now: time.Now}
}

// LoadOrCreateSecret returns the hex-encoded signing secret stored at path,
// generating and persisting a fresh one on first use. The secret never leaves
// the local profile.
func LoadOrCreateSecret(path string) ([]byte, error) {
	if raw, err := os.ReadFile(path); err == nil {
		secret, decErr := hex.DecodeString(string(raw))
		if decErr == nil && len(secret) == secretSize {
			return secret, nil
		}
		// A corrupt secret file means previously signed records can no
		// longer be verified anyway; regenerate.
	}
	secret := make([]byte, secretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("provenance: generate secret: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("provenance: ensure secret dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(secret)), 0o600); err != nil {
		return nil, fmt.Errorf("provenance: persist secret: %w", err)
	}
	return secret, nil
}

// Build assembles and signs a record for the given image bytes. The signature
// is an HMAC-SHA256 over the canonical JSON of all other fields; it is
// computed first and appended afterwards, never included in its own input.
func (b *Builder) Build(image []byte, meta Metadata) (Record, error) {
	if len(b.secret) == 0 {
		return Record{}, errors.New("provenance: no signing secret configured")
	}
	created := meta.CreatedAt
	if created.IsZero() {
		created = b.now()
	}
	rec := Record{
		Schema:      Schema,
		WorkID:      uuid.NewString(),
		CreatedAt:   created.UTC().Format(time.RFC3339),
		RecordedAt:  b.now().UTC().Format(time.RFC3339),
		Author:      meta.Author,
		Model:       meta.Model,
		Resolution:  meta.Resolution,
		AspectRatio: meta.AspectRatio,
		InputImages: meta.InputImages,
		ImageSHA256: hashHex(image),
	}
	if meta.Prompt != "" {
		rec.PromptSHA256 = hashHex([]byte(meta.Prompt))
	}
	sig, err := b.sign(rec)
	if err != nil {
		return Record{}, err
	}
	rec.Signature = sig
	return rec, nil
}

// Verify recomputes the signature over rec's other fields and compares in
// constant time.
func (b *Builder) Verify(rec Record) bool {
	want, err := b.sign(rec)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(want), []byte(rec.Signature))
}

func (b *Builder) sign(rec Record) (string, error) {
	rec.Signature = ""
	canonical, err := CanonicalJSON(rec)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, b.secret)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// CanonicalJSON serializes v as compact JSON with lexicographically ordered
// keys, the stable form both signing and the server-side record digest hash.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("provenance: marshal record: %w", err)
	}
	// encoding/json writes map keys in sorted order, so a round-trip through
	// a generic map yields the canonical form.
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("provenance: canonicalize record: %w", err)
	}
	return json.Marshal(generic)
}

// EmbedInPNG returns png with the full signed record written into an iTXt
// chunk, or nil when the bytes are not a usable PNG. A nil return means the
// caller should fall back to the unmodified image.
func EmbedInPNG(png []byte, rec Record) []byte {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil
	}
	return pngmeta.Embed(png, ChunkKeyword, string(payload))
}

// ExtractFromPNG recovers an embedded record, if any.
func ExtractFromPNG(png []byte) (Record, bool) {
	text, ok := pngmeta.Extract(png, ChunkKeyword)
	if !ok {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal([]byte(text), &rec); err != nil {
		return Record{}, false
	}
	return rec, true
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
