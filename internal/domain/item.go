package domain

// ItemType tags the payload kind of an extracted result item.
type ItemType string

const (
	ItemTypeImage ItemType = "image"
	ItemTypeText  ItemType = "text"
)

// ExtractedItem is one artifact recovered from a batch result line. Items are
// ephemeral: they live in memory for preview and become a HistoryItem only
// when the user saves them.
type ExtractedItem struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Type     ItemType `json:"type"`
	Data     string   `json:"data"`
	MimeType string   `json:"mimeType,omitempty"`
}

// HistoryItem is a persisted generation result in a user's gallery.
type HistoryItem struct {
	ID           string   `json:"id"`
	UserID       string   `json:"userId"`
	Type         ItemType `json:"type"`
	Model        string   `json:"model,omitempty"`
	Prompt       string   `json:"prompt,omitempty"`
	ImagePath    string   `json:"imagePath,omitempty"`
	Text         string   `json:"text,omitempty"`
	AspectRatio  string   `json:"aspectRatio,omitempty"`
	Timestamp    int64    `json:"timestamp"`
	RecordSHA256 string   `json:"recordSha256,omitempty"`
}

// Preset is a named, shareable generation configuration.
type Preset struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Model        string  `json:"model,omitempty"`
	SystemPrompt string  `json:"systemPrompt,omitempty"`
	UserPrompt   string  `json:"userPrompt,omitempty"`
	AspectRatio  string  `json:"aspectRatio,omitempty"`
	Resolution   string  `json:"resolution,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	Generations  int     `json:"generations,omitempty"`
	CreatedAt    int64   `json:"createdAt"`
}

// User is an account in the studio's flat-file user directory.
type User struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	PasswordHash     string `json:"passwordHash"`
	Role             string `json:"role"`
	CreatedAt        int64  `json:"createdAt"`
	LastLoginAt      int64  `json:"lastLoginAt,omitempty"`
	LastLoginCountry string `json:"lastLoginCountry,omitempty"`
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)
