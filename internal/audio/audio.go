// Package audio records microphone input to a file and plays audio files
// back. At most one stream plays at a time; starting a new playback stops
// the current one first.
package audio

import "context"

// Recorder captures microphone input into a WAV file.
type Recorder interface {
	// Start begins recording into path. Fails with a permission fault when
	// the capture device cannot be opened.
	Start(ctx context.Context, path string) error

	// Stop ends the recording and returns the path written, or "" when no
	// recording was ever started. Callers verify the file themselves; the
	// adapter may report a path whose bytes were flushed late.
	Stop() (string, error)
}

// Player plays back audio files. Last request wins.
type Player interface {
	Play(ctx context.Context, path string) error
	Stop()
}
