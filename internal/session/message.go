package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Origin says who produced a message.
type Origin string

const (
	OriginUser      Origin = "user"
	OriginAssistant Origin = "assistant"
)

// Message is one conversation entry. Messages are immutable once appended,
// except that a user message carries the recording path and transcription
// confidence set at creation time from the voice path.
type Message struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	Origin        Origin    `json:"origin"`
	CreatedAt     time.Time `json:"createdAt"`
	AudioPath     string    `json:"audioPath,omitempty"`
	Confidence    *float64  `json:"confidence,omitempty"`
	LowConfidence bool      `json:"lowConfidence,omitempty"`
}

// messageLog is the append-only in-memory conversation. Display order is
// insertion order; nothing survives a restart.
type messageLog struct {
	mu       sync.RWMutex
	messages []Message
}

func (l *messageLog) append(m Message) Message {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	l.mu.Lock()
	l.messages = append(l.messages, m)
	l.mu.Unlock()
	return m
}

func (l *messageLog) snapshot() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}
