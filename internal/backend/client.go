package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jsvoboda/voicebox/internal/fault"
)

const (
	statusTimeout     = 5 * time.Second
	chatTimeout       = 15 * time.Second
	synthesisTimeout  = 15 * time.Second
	transcribeTimeout = 30 * time.Second
)

// HTTPClient implements Client against the backend's JSON-over-HTTP API.
type HTTPClient struct {
	baseURL    func() string // read per call so settings changes apply immediately
	httpClient *http.Client
	gate       ConnectionGate
	logger     *zap.SugaredLogger
}

// NewHTTPClient creates a backend client. baseURL is evaluated on every
// request; gate may be nil (no pre-send connectivity check, used by the
// connectivity monitor itself).
func NewHTTPClient(baseURL func() string, httpClient *http.Client, gate ConnectionGate, logger *zap.SugaredLogger) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		gate:       gate,
		logger:     logger,
	}
}

// Status fetches GET /api/status. The gate is deliberately not consulted
// here: this call is how the gate finds out whether the backend is up.
func (c *HTTPClient) Status(ctx context.Context) (Health, error) {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"/api/status", nil)
	if err != nil {
		return Health{}, &fault.ClientError{Op: "build status request", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Health{}, mapTransportError("status", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Health{}, serverError(resp)
	}

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return Health{}, &fault.ClientError{Op: "decode status response", Err: err}
	}
	return h, nil
}

type synthesizeRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed"`
}

// Synthesize posts to /api/convert and returns the WAV bytes.
func (c *HTTPClient) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	if err := c.checkGate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(synthesizeRequest{Text: text, Voice: voice, Speed: speed})
	if err != nil {
		return nil, &fault.ClientError{Op: "marshal synthesis request", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, synthesisTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+"/api/convert", bytes.NewReader(body))
	if err != nil {
		return nil, &fault.ClientError{Op: "build synthesis request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, mapTransportError("synthesize", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, serverError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &fault.ClientError{Op: "read synthesis response", Err: err}
	}
	if len(audio) == 0 {
		return nil, &fault.EmptyResultError{What: "synthesized audio"}
	}
	return audio, nil
}

// Transcribe uploads the audio file as a multipart "audio" field.
func (c *HTTPClient) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	if err := c.checkGate(); err != nil {
		return Transcript{}, err
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return Transcript{}, &fault.ClientError{Op: "open recording", Err: err}
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", filepath.Base(audioPath))
	if err != nil {
		return Transcript{}, &fault.ClientError{Op: "build upload", Err: err}
	}
	if _, err := io.Copy(part, f); err != nil {
		return Transcript{}, &fault.ClientError{Op: "read recording", Err: err}
	}
	if err := mw.Close(); err != nil {
		return Transcript{}, &fault.ClientError{Op: "finish upload", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+"/api/transcribe", &buf)
	if err != nil {
		return Transcript{}, &fault.ClientError{Op: "build transcribe request", Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Transcript{}, mapTransportError("transcribe", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Transcript{}, serverError(resp)
	}

	var parsed struct {
		Transcript string   `json:"transcript"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Transcript{}, &fault.ClientError{Op: "decode transcribe response", Err: err}
	}

	// A server that omits confidence is trusted fully.
	confidence := 1.0
	if parsed.Confidence != nil {
		confidence = *parsed.Confidence
	}
	return Transcript{Text: parsed.Transcript, Confidence: confidence}, nil
}

type chatRequest struct {
	Prompt string `json:"prompt"`
}

// ChatReply posts the prompt to /api/gemini and returns the reply text.
// A blank reply is a soft failure, not a crash.
func (c *HTTPClient) ChatReply(ctx context.Context, prompt string) (string, error) {
	if err := c.checkGate(); err != nil {
		return "", err
	}

	body, err := json.Marshal(chatRequest{Prompt: prompt})
	if err != nil {
		return "", &fault.ClientError{Op: "marshal chat request", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+"/api/gemini", bytes.NewReader(body))
	if err != nil {
		return "", &fault.ClientError{Op: "build chat request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", mapTransportError("chat", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", serverError(resp)
	}

	var parsed struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &fault.ClientError{Op: "decode chat response", Err: err}
	}
	if strings.TrimSpace(parsed.Response) == "" {
		return "", &fault.EmptyResultError{What: "chat reply"}
	}
	return parsed.Response, nil
}

func (c *HTTPClient) checkGate() error {
	if c.gate != nil && !c.gate.Connected() {
		return &fault.OfflineError{Reason: "connectivity monitor reports disconnected"}
	}
	return nil
}

// serverError decodes the optional JSON error body of a non-200 response.
// The backend uses "message"; "error" is accepted too.
func serverError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := ""
	if err := json.Unmarshal(body, &parsed); err == nil {
		msg = parsed.Error
		if msg == "" {
			msg = parsed.Message
		}
	}
	return &fault.ServerError{Status: resp.StatusCode, Message: msg}
}

// mapTransportError classifies a transport-level failure: deadline and
// timeouts are retryable timeouts, everything reachable-shaped (refused,
// no route, DNS) is offline, the rest is a generic client error.
func mapTransportError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &fault.TimeoutError{Op: op}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return &fault.TimeoutError{Op: op}
		}
		return &fault.OfflineError{Reason: fmt.Sprintf("%s: %v", op, urlErr.Err)}
	}
	return &fault.ClientError{Op: op, Err: err}
}
