// Package storage picks a writable directory for transient audio files and
// sweeps stale ones out of it.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Resolver picks the directory recordings and synthesized audio land in.
// Candidates are tried in order, once each per resolution: the preferred
// fixed path, the app-private documents subdirectory, the OS temp dir.
type Resolver struct {
	preferred string
	documents string

	mu       sync.Mutex
	override string // set by an explicit user choice, wins over candidates
	resolved string

	logger *zap.SugaredLogger
}

func NewResolver(preferred, documents string, logger *zap.SugaredLogger) *Resolver {
	return &Resolver{
		preferred: preferred,
		documents: documents,
		logger:    logger,
	}
}

// Resolve returns the first candidate directory that can actually be written
// to. Each candidate is created if absent and verified with a probe file.
// A failing step falls through to the next; if every step fails the error is
// returned for the caller to surface, never panicked on.
func (r *Resolver) Resolve() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.override != "" {
		return r.override, nil
	}
	if r.resolved != "" {
		return r.resolved, nil
	}

	candidates := []string{r.preferred, r.documents, filepath.Join(os.TempDir(), "voicebox")}
	var errs []error
	for _, dir := range candidates {
		if dir == "" {
			continue
		}
		if err := verifyWritable(dir); err != nil {
			r.logger.Debugw("storage candidate rejected", "dir", dir, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", dir, err))
			continue
		}
		r.resolved = dir
		r.logger.Infow("storage directory resolved", "dir", dir)
		return dir, nil
	}
	return "", fmt.Errorf("no writable storage directory: %w", errors.Join(errs...))
}

// Override switches resolution to a user-chosen directory after verifying it
// the same way a regular candidate is. Earlier candidates are not retried.
func (r *Resolver) Override(dir string) error {
	if err := verifyWritable(dir); err != nil {
		return fmt.Errorf("storage override %s: %w", dir, err)
	}
	r.mu.Lock()
	r.override = dir
	r.mu.Unlock()
	r.logger.Infow("storage directory overridden", "dir", dir)
	return nil
}

// verifyWritable creates dir if absent, then proves writability by creating
// and deleting a uniquely named probe file.
func verifyWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create: %w", err)
	}
	probe := filepath.Join(dir, ".probe-"+uuid.NewString())
	if err := os.WriteFile(probe, []byte("probe"), 0o644); err != nil {
		return fmt.Errorf("probe write: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return fmt.Errorf("probe remove: %w", err)
	}
	return nil
}

// FileName builds a storage file name with a monotonic timestamp suffix,
// e.g. "rec_1717171717171717171.wav".
func FileName(prefix, ext string) string {
	return fmt.Sprintf("%s_%d.%s", prefix, time.Now().UnixNano(), ext)
}
