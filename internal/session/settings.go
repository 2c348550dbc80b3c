package session

import (
	"errors"
	"fmt"
	"sync"
)

// Voice selects the synthesis voice on the backend.
type Voice string

const (
	VoiceDefault Voice = "default"
	VoiceMale    Voice = "male"
	VoiceFemale  Voice = "female"
)

// Settings is the user-editable session configuration. Edits are
// draft-then-commit: the UI builds a full draft, Commit validates it and
// atomically replaces the committed value. There is no partial apply, and
// readers never observe a half-updated configuration.
type Settings struct {
	Voice      Voice   `json:"voice"`
	Speed      float64 `json:"speed"`
	ServerHost string  `json:"serverHost"`
	ServerPort int     `json:"serverPort"`
	StorageDir string  `json:"storageDir,omitempty"`
}

// Validate checks the whole draft. Mirrors the backend's own input checks
// so bad values fail locally instead of as a server round trip.
func (s Settings) Validate() error {
	switch s.Voice {
	case VoiceDefault, VoiceMale, VoiceFemale:
	default:
		return fmt.Errorf("voice must be default, male or female, got %q", s.Voice)
	}
	if s.Speed < 0.5 || s.Speed > 2.0 {
		return fmt.Errorf("speed must be between 0.5 and 2.0, got %v", s.Speed)
	}
	if s.ServerHost == "" {
		return errors.New("server host is required")
	}
	if s.ServerPort < 1 || s.ServerPort > 65535 {
		return fmt.Errorf("server port must be 1-65535, got %d", s.ServerPort)
	}
	return nil
}

// BaseURL builds the backend base URL from the committed host and port.
func (s Settings) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", s.ServerHost, s.ServerPort)
}

// SettingsStore holds the committed Settings value.
type SettingsStore struct {
	mu      sync.RWMutex
	current Settings
}

func NewSettingsStore(initial Settings) *SettingsStore {
	return &SettingsStore{current: initial}
}

func (st *SettingsStore) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current
}

// Commit validates the draft and replaces the committed value atomically.
func (st *SettingsStore) Commit(draft Settings) error {
	if err := draft.Validate(); err != nil {
		return err
	}
	st.mu.Lock()
	st.current = draft
	st.mu.Unlock()
	return nil
}
