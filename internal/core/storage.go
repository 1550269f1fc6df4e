package core

import (
	"context"
	"time"
)

type Conversation struct {
	ID          string        `json:"id" yaml:"id"`
	Title       string        `json:"title,omitempty" yaml:"title,omitempty"`
	Messages    []ChatMessage `json:"messages" yaml:"messages"`
	ResumeToken string        `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" yaml:"updated_at"`
}

type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title,omitempty"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ConversationRepository interface {
	Get(ctx context.Context, id string) (*Conversation, error)
	// Upsert replaces the message list. A nil token keeps the stored one.
	Upsert(ctx context.Context, id string, messages []ChatMessage, resumeToken *string) error
	List(ctx context.Context, limit, offset int) ([]ConversationSummary, error)
	Delete(ctx context.Context, id string) error
}

type MemoryRepository interface {
	Create(ctx context.Context, block MemoryBlock) (*MemoryBlock, error)
	Get(ctx context.Context, id string) (*MemoryBlock, error)
	Update(ctx context.Context, id string, patch MemoryPatch) (*MemoryBlock, error)
	Upsert(ctx context.Context, block MemoryBlock) (*MemoryBlock, error)
	// BulkUpsert writes all blocks or none.
	BulkUpsert(ctx context.Context, blocks []MemoryBlock) ([]MemoryBlock, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter MemoryFilter) ([]MemoryBlock, error)
	Search(ctx context.Context, query string, filter MemoryFilter) ([]MemoryBlock, error)
}
