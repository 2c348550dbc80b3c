package app

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/jsvoboda/voicebox/internal/audio"
	"github.com/jsvoboda/voicebox/internal/backend"
	"github.com/jsvoboda/voicebox/internal/connectivity"
	"github.com/jsvoboda/voicebox/internal/httpapi"
	"github.com/jsvoboda/voicebox/internal/session"
	"github.com/jsvoboda/voicebox/internal/storage"
	"github.com/jsvoboda/voicebox/internal/ttscache"
)

// App wires the client together: storage resolution, connectivity
// monitoring, the backend client, the audio adapter and the session
// orchestrator behind the UI gateway.
type App struct {
	cfg    Config
	logger *zap.SugaredLogger

	resolver *storage.Resolver
	sweeper  *storage.Sweeper
	monitor  *connectivity.Monitor
	orch     *session.Orchestrator
}

func New(cfg Config, logger *zap.SugaredLogger) (*App, error) {
	settings := session.NewSettingsStore(session.Settings{
		Voice:      session.Voice(cfg.Voice),
		Speed:      cfg.Speed,
		ServerHost: cfg.ServerHost,
		ServerPort: cfg.ServerPort,
	})
	if err := settings.Get().Validate(); err != nil {
		return nil, err
	}

	resolver := storage.NewResolver(cfg.StorageDir, documentsDir(), logger)
	if dir, err := resolver.Resolve(); err != nil {
		// Degrade with a notice; recording/synthesis will surface it again.
		logger.Warnw("no writable storage directory yet", "error", err)
	} else {
		logger.Infow("audio storage ready", "dir", dir)
	}

	// Shared HTTP client with connection pooling; the backend host rarely
	// changes, so keeping connections alive cuts per-turn latency.
	httpClient := &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
		},
	}

	baseURL := func() string { return settings.Get().BaseURL() }

	// The monitor's client is ungated: its status call is what decides
	// whether the gate opens at all.
	statusClient := backend.NewHTTPClient(baseURL, httpClient, nil, logger)
	monitor := connectivity.NewMonitor(statusClient, nil, cfg.ProbeInterval, logger)

	client := backend.NewHTTPClient(baseURL, httpClient, monitor, logger)

	orch := session.NewOrchestrator(
		client,
		audio.NewAlsaRecorder(cfg.CaptureDevice, logger),
		audio.NewAlsaPlayer(cfg.PlaybackDevice, logger),
		ttscache.New(ttscache.DefaultMaxEntries),
		resolver,
		monitor,
		settings,
		logger,
	)

	return &App{
		cfg:      cfg,
		logger:   logger,
		resolver: resolver,
		sweeper:  storage.NewSweeper(resolver, cfg.SweepMaxAge, cfg.SweepInterval, logger),
		monitor:  monitor,
		orch:     orch,
	}, nil
}

// Router returns the UI gateway handler.
func (a *App) Router() http.Handler {
	return httpapi.NewRouter(a.orch, a.logger)
}

// Start launches the background loops: the connectivity probe and the
// stale-file sweep. They stop when ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	go a.monitor.Run(ctx)
	go a.sweeper.Run(ctx)
}

// documentsDir is the app-private fallback used when the preferred fixed
// path is not writable.
func documentsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "voicebox", "audio")
}
