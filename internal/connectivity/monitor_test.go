package connectivity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jsvoboda/voicebox/internal/backend"
)

type fakeLink struct{ up atomic.Bool }

func (f *fakeLink) LinkUp() bool { return f.up.Load() }

type fakeStatus struct {
	mu     sync.Mutex
	health backend.Health
	err    error
	calls  int
	delay  time.Duration
}

func (f *fakeStatus) Status(ctx context.Context) (backend.Health, error) {
	f.mu.Lock()
	f.calls++
	health, err, delay := f.health, f.err, f.delay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return health, err
}

func (f *fakeStatus) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func healthyReport() backend.Health {
	var h backend.Health
	h.Status = "healthy"
	h.Services.TTS = "ok"
	h.Services.STT = "ok"
	h.Services.Gemini = "ok"
	return h
}

func newTestMonitor(status StatusClient, link LinkChecker) *Monitor {
	return NewMonitor(status, link, time.Minute, zap.NewNop().Sugar())
}

func TestProbe_ConnectedWhenLinkAndHealthy(t *testing.T) {
	link := &fakeLink{}
	link.up.Store(true)
	m := newTestMonitor(&fakeStatus{health: healthyReport()}, link)

	m.Probe(context.Background())

	st := m.State()
	if !st.Connected {
		t.Errorf("Connected = false, want true; lastError = %q", st.LastError)
	}
	if st.LastError != "" {
		t.Errorf("LastError = %q, want empty", st.LastError)
	}
	if st.LastCheckedAt.IsZero() {
		t.Error("LastCheckedAt not set")
	}
}

func TestProbe_LinkDownSkipsHealthCall(t *testing.T) {
	link := &fakeLink{}
	status := &fakeStatus{health: healthyReport()}
	m := newTestMonitor(status, link)

	m.Probe(context.Background())

	if m.Connected() {
		t.Error("Connected = true with the link down")
	}
	if status.callCount() != 0 {
		t.Errorf("status called %d times with link down, want 0", status.callCount())
	}
	if m.State().LastError == "" {
		t.Error("LastError should describe the down link")
	}
}

func TestProbe_SingleDegradedServiceDisconnects(t *testing.T) {
	services := []func(h *backend.Health){
		func(h *backend.Health) { h.Status = "degraded" },
		func(h *backend.Health) { h.Services.TTS = "error" },
		func(h *backend.Health) { h.Services.STT = "error" },
		func(h *backend.Health) { h.Services.Gemini = "error" },
	}

	for i, degrade := range services {
		link := &fakeLink{}
		link.up.Store(true)
		h := healthyReport()
		degrade(&h)
		m := newTestMonitor(&fakeStatus{health: h}, link)

		m.Probe(context.Background())

		if m.Connected() {
			t.Errorf("case %d: Connected = true with a degraded service", i)
		}
	}
}

func TestProbe_StatusErrorNeverPropagates(t *testing.T) {
	link := &fakeLink{}
	link.up.Store(true)
	m := newTestMonitor(&fakeStatus{err: errors.New("connection refused")}, link)

	m.Probe(context.Background()) // must not panic or return anything

	st := m.State()
	if st.Connected {
		t.Error("Connected = true after a failed probe")
	}
	if st.LastError == "" {
		t.Error("LastError should carry the probe failure")
	}
}

func TestProbe_SingleFlight(t *testing.T) {
	link := &fakeLink{}
	link.up.Store(true)
	status := &fakeStatus{health: healthyReport(), delay: 100 * time.Millisecond}
	m := newTestMonitor(status, link)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Probe(context.Background())
		}()
	}
	wg.Wait()

	if got := status.callCount(); got != 1 {
		t.Errorf("status called %d times for 5 concurrent probes, want 1", got)
	}
}

func TestRun_LinkRestoreForcesImmediateProbe(t *testing.T) {
	link := &fakeLink{}
	status := &fakeStatus{health: healthyReport()}
	// Long interval so only the link transition can trigger the probe.
	m := NewMonitor(status, link, time.Hour, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	// Initial probe observes the link as down.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && m.State().LastCheckedAt.IsZero() {
		time.Sleep(5 * time.Millisecond)
	}
	if m.Connected() {
		t.Fatal("monitor connected while link is down")
	}

	link.up.Store(true)

	deadline = time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && !m.Connected() {
		time.Sleep(10 * time.Millisecond)
	}
	if !m.Connected() {
		t.Error("link restore did not force a health probe")
	}
}

func TestKick_DroppedWhenPending(t *testing.T) {
	m := newTestMonitor(&fakeStatus{}, &fakeLink{})
	m.Kick()
	m.Kick() // second one must not block
}
