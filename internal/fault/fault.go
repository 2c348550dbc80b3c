// Package fault defines the error taxonomy shared by the backend client,
// the audio adapter and the session orchestrator. Offline and Timeout are
// retryable by the user; everything else is terminal for the current turn.
package fault

import (
	"errors"
	"fmt"
)

// PermissionError means the microphone (or another local device) could not
// be opened because access was denied.
type PermissionError struct {
	Resource string // e.g. "microphone"
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Resource)
}

// OfflineError means there is no usable network path to the backend, either
// because the link is down or the backend reported itself unhealthy.
type OfflineError struct {
	Reason string
}

func (e *OfflineError) Error() string {
	if e.Reason == "" {
		return "backend unreachable"
	}
	return "backend unreachable: " + e.Reason
}

// TimeoutError means a single request exceeded its per-call deadline.
// There are no retries; the user re-triggers the action.
type TimeoutError struct {
	Op string // e.g. "synthesize"
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out", e.Op)
}

// ServerError carries a non-200 backend response. Message is decoded from
// the JSON error body when one was present.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error (HTTP %d)", e.Status)
	}
	return fmt.Sprintf("server error (HTTP %d): %s", e.Status, e.Message)
}

// ClientError wraps a local I/O failure or any unexpected error.
type ClientError struct {
	Op  string
	Err error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ClientError) Unwrap() error { return e.Err }

// EmptyResultError marks a blank or low-value result, e.g. a transcription
// with no detected speech or an empty chat reply. Soft failure: shown to the
// user, never raised as a crash.
type EmptyResultError struct {
	What string
}

func (e *EmptyResultError) Error() string {
	return "empty result: " + e.What
}

// Retryable reports whether the user retrying the same action could
// plausibly succeed without any other change.
func Retryable(err error) bool {
	var offline *OfflineError
	var timeout *TimeoutError
	return errors.As(err, &offline) || errors.As(err, &timeout)
}

// Display converts any error into the string shown in the UI banner.
// Unknown errors get a generic wrapper so internals never leak verbatim.
func Display(err error) string {
	if err == nil {
		return ""
	}
	var (
		perm    *PermissionError
		offline *OfflineError
		timeout *TimeoutError
		server  *ServerError
		client  *ClientError
		empty   *EmptyResultError
	)
	switch {
	case errors.As(err, &perm):
		return "Microphone access is not allowed. Grant permission and try again."
	case errors.As(err, &offline):
		return "Server is not reachable. Check your connection and server settings."
	case errors.As(err, &timeout):
		return "The server took too long to respond. Please try again."
	case errors.As(err, &server):
		if server.Message != "" {
			return "Server error: " + server.Message
		}
		return fmt.Sprintf("Server error (HTTP %d).", server.Status)
	case errors.As(err, &empty):
		return "No speech detected. Please try again."
	case errors.As(err, &client):
		return "Something went wrong: " + client.Err.Error()
	default:
		return "Something went wrong: " + err.Error()
	}
}
