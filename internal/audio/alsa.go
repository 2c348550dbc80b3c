package audio

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jsvoboda/voicebox/internal/fault"
)

var (
	errAlreadyRecording = errors.New("a recording is already in progress")
	errRecorderExited   = errors.New("recorder exited before capturing anything")
)

// spawnGrace is how long a freshly spawned arecord gets to fail fast, so a
// missing or denied capture device surfaces on Start instead of on Stop.
const spawnGrace = 150 * time.Millisecond

// AlsaRecorder records through the arecord tool, 16 kHz mono signed 16-bit
// WAV. Device defaults to "default".
type AlsaRecorder struct {
	device string
	logger *zap.SugaredLogger

	mu   sync.Mutex
	cmd  *exec.Cmd
	path string
}

func NewAlsaRecorder(device string, logger *zap.SugaredLogger) *AlsaRecorder {
	if device == "" {
		device = "default"
	}
	return &AlsaRecorder{device: device, logger: logger}
}

// Start spawns arecord. The process outlives ctx on purpose: recording
// ends on an explicit Stop, not when the triggering request returns.
func (r *AlsaRecorder) Start(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		return &fault.ClientError{Op: "start recording", Err: errAlreadyRecording}
	}

	var stderr bytes.Buffer
	cmd := exec.Command("arecord",
		"-D", r.device,
		"-f", "S16_LE",
		"-r", "16000",
		"-c", "1",
		"-t", "wav",
		path,
	)
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return &fault.ClientError{Op: "start recording", Err: err}
	}

	// arecord exits immediately when the device is absent or access is
	// denied; give it a moment so that surfaces here.
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		if isPermissionFailure(stderr.String()) {
			return &fault.PermissionError{Resource: "microphone"}
		}
		if err == nil {
			err = errRecorderExited
		}
		return &fault.ClientError{Op: "start recording", Err: err}
	case <-time.After(spawnGrace):
	}

	r.cmd = cmd
	r.path = path
	go func() { <-done }() // reap when Stop signals it
	r.logger.Debugw("recording started", "path", path, "device", r.device)
	return nil
}

func (r *AlsaRecorder) Stop() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil {
		return "", nil
	}
	cmd, path := r.cmd, r.path
	r.cmd, r.path = nil, ""

	// SIGINT lets arecord finalize the WAV header before exiting.
	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		_ = cmd.Process.Kill()
	}
	r.logger.Debugw("recording stopped", "path", path)
	return path, nil
}

func isPermissionFailure(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "permission denied") ||
		strings.Contains(s, "no such file or directory") ||
		strings.Contains(s, "no such device") ||
		strings.Contains(s, "device or resource busy")
}

// AlsaPlayer plays WAV files through aplay. Play kills any running
// playback first so exactly one stream is audible.
type AlsaPlayer struct {
	device string
	logger *zap.SugaredLogger

	mu  sync.Mutex
	cmd *exec.Cmd
}

func NewAlsaPlayer(device string, logger *zap.SugaredLogger) *AlsaPlayer {
	if device == "" {
		device = "default"
	}
	return &AlsaPlayer{device: device, logger: logger}
}

// Play kills any running playback and starts the new file. Like the
// recorder, the process is detached from ctx: playback finishes on its
// own or on Stop, not when the caller returns.
func (p *AlsaPlayer) Play(_ context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	cmd := exec.Command("aplay", "-D", p.device, path)
	if err := cmd.Start(); err != nil {
		return &fault.ClientError{Op: "start playback", Err: err}
	}
	p.cmd = cmd

	go func() {
		_ = cmd.Wait()
		p.mu.Lock()
		if p.cmd == cmd {
			p.cmd = nil
		}
		p.mu.Unlock()
	}()

	p.logger.Debugw("playback started", "path", path)
	return nil
}

func (p *AlsaPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *AlsaPlayer) stopLocked() {
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	p.cmd = nil
}
