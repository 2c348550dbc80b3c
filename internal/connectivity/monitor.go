// Package connectivity tracks whether the backend is usable right now.
// Connected means both the OS reports a network link and the backend's
// status endpoint reports every service healthy.
package connectivity

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jsvoboda/voicebox/internal/backend"
)

// DefaultProbeInterval is how often the backend health probe runs.
const DefaultProbeInterval = 30 * time.Second

// linkPollInterval is how often the OS link state is sampled to detect
// unreachable->reachable transitions between health probes.
const linkPollInterval = 2 * time.Second

// LinkChecker reports OS-level reachability: a network link is present,
// independent of whether the backend is actually healthy.
type LinkChecker interface {
	LinkUp() bool
}

// InterfaceLinkChecker is the default LinkChecker; any up, non-loopback
// interface counts as a link.
type InterfaceLinkChecker struct{}

func (InterfaceLinkChecker) LinkUp() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagLoopback == 0 {
			return true
		}
	}
	return false
}

// StatusClient is the slice of the backend client the monitor needs.
type StatusClient interface {
	Status(ctx context.Context) (backend.Health, error)
}

// State is the monitor's last observation.
type State struct {
	Connected     bool      `json:"connected"`
	LastError     string    `json:"lastError,omitempty"`
	LastCheckedAt time.Time `json:"lastCheckedAt"`
}

// Monitor owns the connected flag. It is the sole writer; the orchestrator
// and gateway read snapshots. A probe already in flight is never duplicated.
type Monitor struct {
	client   StatusClient
	link     LinkChecker
	interval time.Duration
	logger   *zap.SugaredLogger

	mu    sync.RWMutex
	state State

	probing atomic.Bool
	kick    chan struct{}
}

func NewMonitor(client StatusClient, link LinkChecker, interval time.Duration, logger *zap.SugaredLogger) *Monitor {
	if link == nil {
		link = InterfaceLinkChecker{}
	}
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &Monitor{
		client:   client,
		link:     link,
		interval: interval,
		logger:   logger,
		kick:     make(chan struct{}, 1),
	}
}

// Connected implements backend.ConnectionGate.
func (m *Monitor) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Connected
}

// State returns the last observation.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Kick requests an immediate probe, e.g. after a settings commit. Dropped
// when a probe request is already pending.
func (m *Monitor) Kick() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Run probes on a fixed interval until ctx is cancelled. A link transition
// from down to up forces an immediate probe instead of waiting for the next
// tick. The first probe runs right away.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	linkTicker := time.NewTicker(linkPollInterval)
	defer linkTicker.Stop()

	lastLinkUp := m.link.LinkUp()
	m.Probe(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		case <-m.kick:
			m.Probe(ctx)
		case <-linkTicker.C:
			up := m.link.LinkUp()
			if up && !lastLinkUp {
				m.logger.Infow("network link restored, probing backend")
				m.Probe(ctx)
			} else if !up && lastLinkUp {
				m.setState(false, "network link down")
			}
			lastLinkUp = up
		}
	}
}

// Probe refreshes the connected flag once. Concurrent calls are dropped
// while one is outstanding. Failures land in the state's last error and
// are never returned.
func (m *Monitor) Probe(ctx context.Context) {
	if !m.probing.CompareAndSwap(false, true) {
		return
	}
	defer m.probing.Store(false)

	if !m.link.LinkUp() {
		m.setState(false, "network link down")
		return
	}

	health, err := m.client.Status(ctx)
	if err != nil {
		m.setState(false, "status check failed: "+err.Error())
		return
	}
	if !health.Healthy() {
		m.setState(false, "backend degraded: status="+health.Status+
			" tts="+health.Services.TTS+" stt="+health.Services.STT+" gemini="+health.Services.Gemini)
		return
	}
	m.setState(true, "")
}

func (m *Monitor) setState(connected bool, lastError string) {
	m.mu.Lock()
	changed := m.state.Connected != connected
	m.state = State{Connected: connected, LastError: lastError, LastCheckedAt: time.Now()}
	m.mu.Unlock()

	if changed {
		if connected {
			m.logger.Infow("backend connected")
		} else {
			m.logger.Warnw("backend disconnected", "reason", lastError)
		}
	}
}
