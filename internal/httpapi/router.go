// Package httpapi is the local gateway the web/mobile UI talks to. REST
// endpoints drive the session orchestrator; a websocket feed pushes state
// changes so the UI never polls or holds implicit globals.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/jsvoboda/voicebox/internal/fault"
	"github.com/jsvoboda/voicebox/internal/session"
)

type Router struct {
	orch   *session.Orchestrator
	logger *zap.SugaredLogger
}

func NewRouter(orch *session.Orchestrator, logger *zap.SugaredLogger) http.Handler {
	rt := &Router{orch: orch, logger: logger}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.Use(withSentryRecovery)

	r.Get("/healthz", rt.handleHealthz)
	r.Get("/api/state", rt.handleGetState)
	r.Get("/api/messages", rt.handleListMessages)
	r.Post("/api/messages", rt.handleSendMessage)
	r.Post("/api/record/start", rt.handleRecordStart)
	r.Post("/api/record/stop", rt.handleRecordStop)
	r.Post("/api/playback/stop", rt.handlePlaybackStop)
	r.Get("/api/settings", rt.handleGetSettings)
	r.Put("/api/settings", rt.handlePutSettings)
	r.Get("/ws", rt.handleStateWS)

	return r
}

func (rt *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// stateResponse is the UI's one-shot view of the session.
type stateResponse struct {
	State           session.State `json:"state"`
	Busy            bool          `json:"busy"`
	Connected       bool          `json:"connected"`
	ConnectionError string        `json:"connectionError,omitempty"`
	LastCheckedAt   time.Time     `json:"lastCheckedAt"`
	Banner          string        `json:"banner,omitempty"`
}

func (rt *Router) currentState() stateResponse {
	conn := rt.orch.Connection()
	return stateResponse{
		State:           rt.orch.CurrentState(),
		Busy:            rt.orch.Busy(),
		Connected:       conn.Connected,
		ConnectionError: conn.LastError,
		LastCheckedAt:   conn.LastCheckedAt,
		Banner:          rt.orch.Banner(),
	}
}

func (rt *Router) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.currentState())
}

func (rt *Router) handleListMessages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"messages": rt.orch.Messages()})
}

func (rt *Router) handleSendMessage(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := rt.orch.SubmitText(req.Context(), body.Text); err != nil {
		rt.writeTurnError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": rt.currentState()})
}

func (rt *Router) handleRecordStart(w http.ResponseWriter, req *http.Request) {
	if err := rt.orch.StartRecording(req.Context()); err != nil {
		rt.writeTurnError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": rt.currentState()})
}

func (rt *Router) handleRecordStop(w http.ResponseWriter, req *http.Request) {
	if err := rt.orch.StopRecording(req.Context()); err != nil {
		rt.writeTurnError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": rt.currentState()})
}

func (rt *Router) handlePlaybackStop(w http.ResponseWriter, _ *http.Request) {
	rt.orch.StopPlayback()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": rt.currentState()})
}

func (rt *Router) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.orch.Settings())
}

// handlePutSettings takes a full draft and commits it atomically; there is
// no partial apply.
func (rt *Router) handlePutSettings(w http.ResponseWriter, req *http.Request) {
	var draft session.Settings
	if err := json.NewDecoder(req.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := rt.orch.UpdateSettings(draft); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rt.orch.Settings())
}

// writeTurnError maps orchestrator errors onto HTTP statuses. The turn
// failure itself is already in the banner; this is just the request's
// verdict.
func (rt *Router) writeTurnError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrBusy) || errors.Is(err, session.ErrNotRecording) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	var (
		perm    *fault.PermissionError
		offline *fault.OfflineError
		timeout *fault.TimeoutError
		server  *fault.ServerError
		empty   *fault.EmptyResultError
	)
	switch {
	case errors.As(err, &perm):
		writeError(w, http.StatusForbidden, fault.Display(err))
	case errors.As(err, &offline):
		writeError(w, http.StatusServiceUnavailable, fault.Display(err))
	case errors.As(err, &timeout):
		writeError(w, http.StatusGatewayTimeout, fault.Display(err))
	case errors.As(err, &server):
		writeError(w, http.StatusBadGateway, fault.Display(err))
	case errors.As(err, &empty):
		writeError(w, http.StatusUnprocessableEntity, fault.Display(err))
	default:
		rt.logger.Errorw("turn failed", "error", err)
		writeError(w, http.StatusInternalServerError, fault.Display(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}
