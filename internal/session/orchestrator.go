// Package session coordinates one voice or text turn at a time: input,
// transcription, chat reply, synthesis, playback. All failures are caught
// here, turned into a banner string and the machine returns to Idle;
// nothing is fatal to the process and nothing retries on its own.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/jsvoboda/voicebox/internal/audio"
	"github.com/jsvoboda/voicebox/internal/backend"
	"github.com/jsvoboda/voicebox/internal/connectivity"
	"github.com/jsvoboda/voicebox/internal/fault"
	"github.com/jsvoboda/voicebox/internal/storage"
	"github.com/jsvoboda/voicebox/internal/ttscache"
)

// State names the orchestrator's position in a turn.
type State string

const (
	StateIdle         State = "idle"
	StateRecording    State = "recording"
	StateTranscribing State = "transcribing"
	StateAwaiting     State = "awaitingReply"
	StateSynthesizing State = "synthesizing"
	StatePlaying      State = "playing"
)

// lowConfidenceThreshold flags transcripts the user should double-check.
const lowConfidenceThreshold = 0.7

// defaultFlushDelay gives the recorder's WAV a moment to hit the disk
// before the file is verified and uploaded.
const defaultFlushDelay = 200 * time.Millisecond

// ErrBusy rejects a new send/record while a turn is in flight. The UI
// disables its controls on the busy flag; this is the backstop.
var ErrBusy = errors.New("a turn is already in progress")

// ErrNotRecording rejects a stop without a matching start.
var ErrNotRecording = errors.New("no recording in progress")

// EventType tags what a subscriber is being told about.
type EventType string

const (
	EventState   EventType = "state"
	EventMessage EventType = "message"
	EventBanner  EventType = "banner"
)

// Event is pushed to subscribers on every state change, appended message
// and banner update.
type Event struct {
	Type    EventType `json:"type"`
	State   State     `json:"state,omitempty"`
	Message *Message  `json:"message,omitempty"`
	Banner  string    `json:"banner,omitempty"`
}

// StorageResolver is the slice of internal/storage the orchestrator needs.
type StorageResolver interface {
	Resolve() (string, error)
	Override(dir string) error
}

// Connectivity is the slice of the connectivity monitor the orchestrator
// and gateway need.
type Connectivity interface {
	Connected() bool
	State() connectivity.State
	Kick()
}

// Orchestrator is the turn state machine. One turn runs at a time; the
// busy gate, not a lock, serializes network work.
type Orchestrator struct {
	backend  backend.Client
	recorder audio.Recorder
	player   audio.Player
	cache    *ttscache.Cache
	resolver StorageResolver
	conn     Connectivity
	settings *SettingsStore
	logger   *zap.SugaredLogger

	flushDelay time.Duration

	mu            sync.Mutex
	state         State
	banner        string
	recordingPath string
	subs          map[int]chan Event
	nextSub       int

	log messageLog
}

func NewOrchestrator(
	client backend.Client,
	recorder audio.Recorder,
	player audio.Player,
	cache *ttscache.Cache,
	resolver StorageResolver,
	conn Connectivity,
	settings *SettingsStore,
	logger *zap.SugaredLogger,
) *Orchestrator {
	return &Orchestrator{
		backend:    client,
		recorder:   recorder,
		player:     player,
		cache:      cache,
		resolver:   resolver,
		conn:       conn,
		settings:   settings,
		logger:     logger,
		flushDelay: defaultFlushDelay,
		state:      StateIdle,
		subs:       make(map[int]chan Event),
	}
}

// CurrentState returns the machine's state.
func (o *Orchestrator) CurrentState() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Busy is true whenever a turn is in flight.
func (o *Orchestrator) Busy() bool {
	return o.CurrentState() != StateIdle
}

// Banner returns the current user-visible error notice, if any.
func (o *Orchestrator) Banner() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.banner
}

// Messages returns the conversation in display order.
func (o *Orchestrator) Messages() []Message {
	return o.log.snapshot()
}

// Settings returns the committed session configuration.
func (o *Orchestrator) Settings() Settings {
	return o.settings.Get()
}

// Connection returns the monitor's last observation.
func (o *Orchestrator) Connection() connectivity.State {
	return o.conn.State()
}

// Subscribe registers for events. The returned cancel func must be called
// when the subscriber goes away. Slow subscribers drop events rather than
// stall a turn.
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	ch := make(chan Event, 16)
	o.subs[id] = ch
	o.mu.Unlock()

	return ch, func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

func (o *Orchestrator) publish(ev Event) {
	o.mu.Lock()
	for _, ch := range o.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	o.mu.Unlock()
}

// setState transitions the machine and notifies subscribers.
func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.publish(Event{Type: EventState, State: s})
}

func (o *Orchestrator) setBanner(text string) {
	o.mu.Lock()
	o.banner = text
	o.mu.Unlock()
	o.publish(Event{Type: EventBanner, Banner: text})
}

func (o *Orchestrator) appendMessage(m Message) Message {
	m = o.log.append(m)
	o.publish(Event{Type: EventMessage, Message: &m})
	return m
}

// beginTurn takes the busy gate: Idle -> next, clearing any old banner.
func (o *Orchestrator) beginTurn(next State) error {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return ErrBusy
	}
	o.state = next
	o.banner = ""
	o.mu.Unlock()
	o.publish(Event{Type: EventState, State: next})
	return nil
}

// failTurn is the single catch boundary: capture, display, back to Idle.
func (o *Orchestrator) failTurn(err error) {
	o.logger.Warnw("turn failed", "error", err)
	sentry.CaptureException(err)
	o.setBanner(fault.Display(err))
	o.player.Stop()
	o.setState(StateIdle)
}

// SubmitText runs a full text turn: user message, chat reply, synthesis
// (cache first), playback. Returns ErrBusy while another turn is in
// flight; any turn failure has already been surfaced as the banner when
// the error comes back.
func (o *Orchestrator) SubmitText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return &fault.EmptyResultError{What: "message text"}
	}
	if err := o.beginTurn(StateAwaiting); err != nil {
		return err
	}
	if !o.conn.Connected() {
		err := &fault.OfflineError{Reason: o.conn.State().LastError}
		o.failTurn(err)
		return err
	}

	o.appendMessage(Message{Text: text, Origin: OriginUser})
	return o.completeTurn(ctx, text)
}

// completeTurn is the shared tail of the text and voice paths, entered in
// StateAwaiting with the user message already appended.
func (o *Orchestrator) completeTurn(ctx context.Context, prompt string) error {
	reply, err := o.backend.ChatReply(ctx, prompt)
	if err != nil {
		o.failTurn(err)
		return err
	}
	o.appendMessage(Message{Text: reply, Origin: OriginAssistant})

	o.setState(StateSynthesizing)
	path, err := o.speechFor(ctx, reply)
	if err != nil {
		o.failTurn(err)
		return err
	}

	o.setState(StatePlaying)
	if err := o.player.Play(ctx, path); err != nil {
		o.failTurn(err)
		return err
	}

	// Playback started is the end of the turn; it finishes on its own.
	o.setState(StateIdle)
	return nil
}

// speechFor returns a playable audio file for the text, from the cache
// when possible, synthesizing and caching otherwise. The file is verified
// either way: the sweep may have deleted a cached path already.
func (o *Orchestrator) speechFor(ctx context.Context, text string) (string, error) {
	set := o.settings.Get()

	if path, ok := o.cache.Get(text, string(set.Voice), set.Speed); ok {
		if err := verifyAudioFile(path); err != nil {
			o.logger.Debugw("cached audio unusable, resynthesizing", "path", path, "error", err)
		} else {
			return path, nil
		}
	}

	audioBytes, err := o.backend.Synthesize(ctx, text, string(set.Voice), set.Speed)
	if err != nil {
		return "", err
	}

	dir, err := o.resolver.Resolve()
	if err != nil {
		return "", &fault.ClientError{Op: "resolve storage", Err: err}
	}
	path := filepath.Join(dir, storage.FileName("tts", "wav"))
	if err := os.WriteFile(path, audioBytes, 0o644); err != nil {
		return "", &fault.ClientError{Op: "write audio file", Err: err}
	}
	if err := verifyAudioFile(path); err != nil {
		return "", err
	}

	o.cache.Put(text, string(set.Voice), set.Speed, path)
	return path, nil
}

// StartRecording begins a voice turn. Guarded by the busy gate, the
// connectivity flag and microphone permission.
func (o *Orchestrator) StartRecording(ctx context.Context) error {
	if err := o.beginTurn(StateRecording); err != nil {
		return err
	}
	if !o.conn.Connected() {
		err := &fault.OfflineError{Reason: o.conn.State().LastError}
		o.failTurn(err)
		return err
	}

	dir, err := o.resolver.Resolve()
	if err != nil {
		wrapped := &fault.ClientError{Op: "resolve storage", Err: err}
		o.failTurn(wrapped)
		return wrapped
	}
	path := filepath.Join(dir, storage.FileName("rec", "wav"))

	if err := o.recorder.Start(ctx, path); err != nil {
		o.failTurn(err)
		return err
	}

	o.mu.Lock()
	o.recordingPath = path
	o.mu.Unlock()
	return nil
}

// StopRecording ends the recording and runs the rest of the voice turn:
// verify the file, transcribe, then re-enter the text-submission path with
// the transcript. A blank or "no speech detected" transcript is a soft
// failure.
func (o *Orchestrator) StopRecording(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateRecording {
		o.mu.Unlock()
		return ErrNotRecording
	}
	o.state = StateTranscribing
	path := o.recordingPath
	o.recordingPath = ""
	o.mu.Unlock()
	o.publish(Event{Type: EventState, State: StateTranscribing})

	stopped, err := o.recorder.Stop()
	if err != nil {
		o.failTurn(err)
		return err
	}
	if stopped != "" {
		path = stopped
	}
	if path == "" {
		err := &fault.EmptyResultError{What: "recording"}
		o.failTurn(err)
		return err
	}

	// The recorder may flush late; don't trust the path immediately.
	time.Sleep(o.flushDelay)
	if err := verifyAudioFile(path); err != nil {
		o.failTurn(err)
		return err
	}

	tr, err := o.backend.Transcribe(ctx, path)
	if err != nil {
		o.failTurn(err)
		return err
	}

	text := strings.TrimSpace(tr.Text)
	if text == "" || strings.EqualFold(text, "no speech detected") {
		err := &fault.EmptyResultError{What: "transcript"}
		o.failTurn(err)
		return err
	}

	confidence := tr.Confidence
	o.appendMessage(Message{
		Text:          text,
		Origin:        OriginUser,
		AudioPath:     path,
		Confidence:    &confidence,
		LowConfidence: confidence < lowConfidenceThreshold,
	})

	o.setState(StateAwaiting)
	return o.completeTurn(ctx, text)
}

// StopPlayback halts any current playback. Allowed in any state; only a
// Playing machine changes state.
func (o *Orchestrator) StopPlayback() {
	o.player.Stop()
	o.mu.Lock()
	playing := o.state == StatePlaying
	o.mu.Unlock()
	if playing {
		o.setState(StateIdle)
	}
}

// UpdateSettings validates the draft as a whole and commits it atomically.
// A storage directory change is verified through the resolver before the
// commit; the connectivity monitor re-probes the (possibly new) host right
// after.
func (o *Orchestrator) UpdateSettings(draft Settings) error {
	if err := draft.Validate(); err != nil {
		return err
	}
	current := o.settings.Get()
	if draft.StorageDir != "" && draft.StorageDir != current.StorageDir {
		if err := o.resolver.Override(draft.StorageDir); err != nil {
			return fmt.Errorf("storage directory rejected: %w", err)
		}
	}
	if err := o.settings.Commit(draft); err != nil {
		return err
	}
	o.logger.Infow("settings committed",
		"voice", draft.Voice, "speed", draft.Speed,
		"server", draft.BaseURL(), "storageDir", draft.StorageDir)
	o.conn.Kick()
	return nil
}

// verifyAudioFile checks the path exists and holds actual bytes.
func verifyAudioFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &fault.ClientError{Op: "verify audio file", Err: err}
	}
	if info.Size() == 0 {
		return &fault.ClientError{Op: "verify audio file", Err: fmt.Errorf("%s is empty", path)}
	}
	return nil
}
