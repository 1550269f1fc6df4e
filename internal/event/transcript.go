package event

import (
	"slices"
	"sync"
	"time"
)

// Transcript is the ordered, append-only record of one turn.
type Transcript struct {
	mu     sync.Mutex
	events []Event
}

func (t *Transcript) Append(e Event) {
	t.mu.Lock()
	t.events = append(t.events, e)
	t.mu.Unlock()
}

func (t *Transcript) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.events)
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.events)
}

// Record is the persisted form of a finished turn.
type Record struct {
	SavedAt        time.Time `json:"saved_at"`
	ConversationID string    `json:"conversation_id"`
	Events         []Event   `json:"events"`
}

func (t *Transcript) Record(conversationID string) Record {
	return Record{
		SavedAt:        time.Now().UTC(),
		ConversationID: conversationID,
		Events:         t.Events(),
	}
}
