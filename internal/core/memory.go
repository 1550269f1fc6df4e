package core

import (
	"fmt"
	"time"
)

type MemoryType string

const (
	MemoryPersona     MemoryType = "persona"
	MemoryPreferences MemoryType = "preferences"
	MemoryKnowledge   MemoryType = "knowledge"
	MemoryReflection  MemoryType = "reflection"
)

var MemoryTypes = []MemoryType{MemoryPersona, MemoryPreferences, MemoryKnowledge, MemoryReflection}

func ParseMemoryType(s string) (MemoryType, error) {
	for _, t := range MemoryTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown memory type %q", ErrInvalid, s)
}

// MemoryBlock is a durable fact. (Type, Key) is unique.
type MemoryBlock struct {
	ID        string         `json:"id"`
	Type      MemoryType     `json:"type"`
	Key       string         `json:"key"`
	Value     string         `json:"value"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (b MemoryBlock) Validate() error {
	if _, err := ParseMemoryType(string(b.Type)); err != nil {
		return err
	}
	if b.Key == "" {
		return fmt.Errorf("%w: memory key is empty", ErrInvalid)
	}
	return nil
}

type MemoryPatch struct {
	Value    *string        `json:"value,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type MemoryFilter struct {
	Type   MemoryType
	Limit  int
	Offset int
}
