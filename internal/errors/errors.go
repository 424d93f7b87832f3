// Package errors provides the unified error taxonomy used across the proxy,
// transport, attack engine and flow engine.
package errors

import (
	"errors"
	"fmt"
)

// Kind identifies which part of the taxonomy in spec §7 an error belongs to.
type Kind string

const (
	KindConfig                  Kind = "Config"
	KindNetwork                 Kind = "Network"
	KindCertificate             Kind = "Certificate"
	KindInvalidPayloadConfig    Kind = "InvalidPayloadConfig"
	KindPayloadGenerationFailed Kind = "PayloadGenerationFailed"
	KindAgentUnavailable        Kind = "AgentUnavailable"
	KindInvalidAttackConfig     Kind = "InvalidAttackConfig"
	KindSessionExpired          Kind = "SessionExpired"
	KindSessionInvalid          Kind = "SessionInvalid"
	KindElementNotFound         Kind = "ElementNotFound"
	KindTimeout                 Kind = "Timeout"
	KindSessionValidation       Kind = "SessionValidation"
	KindSelectorGeneration      Kind = "SelectorGeneration"
	KindRecording               Kind = "Recording"
)

// Error is a structured error carrying a Kind, a human message, optional
// details and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetail attaches a key/value pair and returns the same error for chaining.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newErr(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapErr(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Config errors (C1, C5) — fatal to the owning task.
func Config(message string, err error) *Error {
	return wrapErr(KindConfig, message, err)
}

// Network errors (C5, C6) — transient, caller may retry per its own policy.
func Network(message string, err error) *Error {
	return wrapErr(KindNetwork, message, err)
}

// Certificate errors (C1) — generation/parsing failed, fatal.
func Certificate(message string, err error) *Error {
	return wrapErr(KindCertificate, message, err)
}

// InvalidPayloadConfig errors (C8, C9) — user-visible, surfaced verbatim.
func InvalidPayloadConfig(reason string) *Error {
	return newErr(KindInvalidPayloadConfig, reason)
}

// PayloadGenerationFailed errors (C9) — runtime cap exceeded or I/O failure.
func PayloadGenerationFailed(reason string) *Error {
	return newErr(KindPayloadGenerationFailed, reason)
}

// AgentUnavailable errors (C10) — selection-time, may trigger redistribution.
func AgentUnavailable(agentID string) *Error {
	return newErr(KindAgentUnavailable, fmt.Sprintf("agent %s is unavailable", agentID)).
		WithDetail("agent_id", agentID)
}

// InvalidAttackConfig errors (C10) — pre-dispatch validation failure.
func InvalidAttackConfig(reason string) *Error {
	return newErr(KindInvalidAttackConfig, reason)
}

// SessionExpired errors (C11).
func SessionExpired(sessionID string) *Error {
	return newErr(KindSessionExpired, fmt.Sprintf("session %s has expired", sessionID)).
		WithDetail("session_id", sessionID)
}

// SessionInvalid errors (C11).
func SessionInvalid(sessionID, reason string) *Error {
	return newErr(KindSessionInvalid, reason).WithDetail("session_id", sessionID)
}

// ElementNotFound errors (C13) — raised after all bounded retries exhausted.
func ElementNotFound(selector string) *Error {
	return newErr(KindElementNotFound, fmt.Sprintf("element not found: %s", selector)).
		WithDetail("selector", selector)
}

// Timeout errors (C13) — a wait condition exceeded its deadline.
func Timeout(condition, details string) *Error {
	return newErr(KindTimeout, details).WithDetail("condition", condition)
}

// SessionValidation errors (C13) — CheckSession saw none of its indicators.
func SessionValidation(reason string) *Error {
	return newErr(KindSessionValidation, reason)
}

// SelectorGeneration errors (C12) — no candidate selector cleared the
// configured minimum priority for an element.
func SelectorGeneration(reason string) *Error {
	return newErr(KindSelectorGeneration, reason)
}

// Recording errors (C12) — an invalid state transition on FlowRecorder.
func Recording(reason string) *Error {
	return newErr(KindRecording, reason)
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// As extracts the *Error from err's chain, if present.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
