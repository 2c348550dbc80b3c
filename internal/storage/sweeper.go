package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxAge is how old a stored audio file may get before a sweep
	// removes it. Files still referenced by a displayed message are deleted
	// too; a later replay of that message fails and the user re-sends.
	DefaultMaxAge = time.Hour

	// DefaultSweepInterval is the pause between sweep passes.
	DefaultSweepInterval = 10 * time.Minute
)

// Sweeper periodically removes stale audio files from the resolved storage
// directory. Deletes are best-effort and fire-and-forget; a sweep never
// coordinates with in-flight writes.
type Sweeper struct {
	resolver *Resolver
	maxAge   time.Duration
	interval time.Duration
	logger   *zap.SugaredLogger
}

func NewSweeper(resolver *Resolver, maxAge, interval time.Duration, logger *zap.SugaredLogger) *Sweeper {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{resolver: resolver, maxAge: maxAge, interval: interval, logger: logger}
}

// Run sweeps until ctx is cancelled. One pass runs immediately on start.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep runs a single pass, deleting every regular file older than maxAge.
func (s *Sweeper) Sweep() {
	dir, err := s.resolver.Resolve()
	if err != nil {
		s.logger.Warnw("sweep skipped, no storage directory", "error", err)
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warnw("sweep failed to list storage", "dir", dir, "error", err)
		return
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		removed++
		go func(path string) {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				s.logger.Debugw("sweep delete failed", "file", path, "error", err)
			}
		}(filepath.Join(dir, entry.Name()))
	}
	if removed > 0 {
		s.logger.Infow("swept stale audio files", "dir", dir, "count", removed)
	}
}
