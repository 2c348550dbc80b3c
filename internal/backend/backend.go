// Package backend talks to the remote speech/chat server. Three request
// types (speech synthesis, transcription, chat completion) plus the health
// probe, each a single request/response with a per-call timeout and no
// retries. The client never mutates shared state; the session orchestrator
// owns persisting results.
package backend

import "context"

// Health is the backend's self-reported status from GET /api/status.
type Health struct {
	Status   string `json:"status"`
	Services struct {
		TTS    string `json:"tts"`
		STT    string `json:"stt"`
		Gemini string `json:"gemini"`
	} `json:"services"`
}

// Healthy reports whether the overall status and all three sub-services
// are good. A single degraded service counts as unhealthy.
func (h Health) Healthy() bool {
	return h.Status == "healthy" &&
		h.Services.TTS == "ok" &&
		h.Services.STT == "ok" &&
		h.Services.Gemini == "ok"
}

// Transcript is a speech-to-text result.
type Transcript struct {
	Text       string
	Confidence float64 // 0-1; 1.0 when the server omitted the field
}

// Client defines the operations the session orchestrator needs from the
// backend.
type Client interface {
	// Status fetches the backend's health report.
	Status(ctx context.Context) (Health, error)

	// Synthesize converts text to speech and returns WAV audio bytes.
	Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error)

	// Transcribe uploads the audio file at path and returns its transcript.
	Transcribe(ctx context.Context, audioPath string) (Transcript, error)

	// ChatReply sends the prompt to the chat model and returns its reply.
	ChatReply(ctx context.Context, prompt string) (string, error)
}

// ConnectionGate is consulted before any request is sent; a disconnected
// gate turns the call into an immediate offline failure without touching
// the network. Implemented by the connectivity monitor.
type ConnectionGate interface {
	Connected() bool
}
