package types

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Chunk is a contiguous span of cleaned text extracted from one page of a
// document. Chunks are immutable; re-ingestion supersedes them.
type Chunk struct {
	Text       string
	PageNumber int
	Length     int
	Preview    string
	FileKey    string
}

// RecordMetadata travels with every vector so retrieval can filter and
// build citations without a second lookup.
type RecordMetadata struct {
	Text        string `json:"text"`
	PageNumber  int    `json:"pageNumber"`
	FileKey     string `json:"fileKey"`
	ChunkLength int    `json:"chunkLength"`
	Preview     string `json:"preview"`
}

// VectorRecord is one embedded chunk keyed by fileKey#md5(cleanedText),
// which makes repeated ingestion of identical content idempotent.
type VectorRecord struct {
	ID       string
	Values   []float32
	Metadata RecordMetadata
}

// Match is a retrieval hit with its cosine similarity score.
type Match struct {
	Text       string
	PageNumber int
	Preview    string
	Score      float64
}

// Source is a (page, excerpt) citation pair backing an assistant turn.
type Source struct {
	PageNumber int    `json:"pageNumber"`
	Content    string `json:"content"`
}

type Chat struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"userId"`
	PDFName   string    `json:"pdfName"`
	FileKey   string    `json:"fileKey"`
	CreatedAt time.Time `json:"createdAt"`
}

type Message struct {
	ID        uuid.UUID `json:"id"`
	ChatID    uuid.UUID `json:"chatId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// HistoryMessage is a prior conversation turn as supplied by the client.
type HistoryMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserSettings holds per-user usage counters and optional free-tier
// overrides. Nil override means the app-settings default applies.
type UserSettings struct {
	UserID       string
	MessageCount int
	ChatCount    int
	FreeChats    *int
	FreeMessages *int
}

type Subscription struct {
	UserID           string
	PriceID          string
	CurrentPeriodEnd time.Time
}

// APIKeys are user-supplied provider credentials, already decrypted by the
// boundary layer. Empty fields fall back to the system credential.
type APIKeys struct {
	OpenAI    string `json:"openai,omitempty"`
	Anthropic string `json:"anthropic,omitempty"`
	Google    string `json:"google,omitempty"`
	DeepSeek  string `json:"deepseek,omitempty"`
}
