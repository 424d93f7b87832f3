// Package session implements the Session model (C11): the unified
// cookie/header bundle produced by the flow recorder and consumed by the
// attack engine and flow replayer, grounded on
// original_source/proxy-common/src/session.rs.
package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/regaipserdar/proxxy-sub001/internal/errors"
)

// SameSite mirrors the Set-Cookie SameSite attribute.
type SameSite int

const (
	SameSiteUnspecified SameSite = iota
	SameSiteStrict
	SameSiteLax
	SameSiteNone
)

// Cookie is one session cookie captured during recording.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  *time.Time
	HTTPOnly bool
	Secure   bool
	SameSite SameSite
}

// Status is the session's current validation state.
type Status int

const (
	StatusValidating Status = iota
	StatusActive
	StatusExpired
	StatusInvalid
)

// Metadata is additional debugging/tracking information about a session.
type Metadata struct {
	AgentID           string
	ValidationURL     string
	SuccessIndicators []string
	LastValidated     *time.Time
	UsageCount        uint64
}

// Session is the unified cookie+header bundle shared by the recorder,
// attack engine and replayer.
type Session struct {
	ID        uuid.UUID
	Name      string
	Headers   map[string]string
	Cookies   []Cookie
	CreatedAt time.Time
	ExpiresAt *time.Time
	ProfileID *uuid.UUID
	Status    Status
	Metadata  Metadata
}

// New creates a session in the Validating state.
func New(name string, profileID *uuid.UUID) *Session {
	return &Session{
		ID:        uuid.New(),
		Name:      name,
		Headers:   make(map[string]string),
		CreatedAt: time.Now(),
		ProfileID: profileID,
		Status:    StatusValidating,
	}
}

// IsExpired reports whether the session has passed its expiry time.
func (s *Session) IsExpired() bool {
	return s.ExpiresAt != nil && time.Now().After(*s.ExpiresAt)
}

// HTTPHeaders returns the session's headers plus a synthesized Cookie
// header (unless one is already present), ready to attach to a request.
func (s *Session) HTTPHeaders() map[string]string {
	headers := make(map[string]string, len(s.Headers)+1)
	for k, v := range s.Headers {
		headers[k] = v
	}

	if len(s.Cookies) > 0 {
		if _, exists := lookupCaseInsensitive(headers, "Cookie"); !exists {
			parts := make([]string, 0, len(s.Cookies))
			for _, c := range s.Cookies {
				parts = append(parts, c.Name+"="+c.Value)
			}
			headers["Cookie"] = strings.Join(parts, "; ")
		}
	}

	return headers
}

func lookupCaseInsensitive(headers map[string]string, name string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// IncrementUsage bumps the session's usage counter.
func (s *Session) IncrementUsage() {
	s.Metadata.UsageCount++
}

// MarkValidated transitions the session to Active.
func (s *Session) MarkValidated(validationURL string) {
	s.Status = StatusActive
	s.Metadata.ValidationURL = validationURL
	now := time.Now()
	s.Metadata.LastValidated = &now
}

// MarkExpired transitions the session to Expired.
func (s *Session) MarkExpired() {
	s.Status = StatusExpired
}

// MarkInvalid transitions the session to Invalid.
func (s *Session) MarkInvalid() {
	s.Status = StatusInvalid
}

// Apply merges other's headers and cookies on top of s (superset merge:
// other's values win on key collision, but keys only present in s are
// kept), returning the result as a new session without mutating either
// input.
func Apply(base, other *Session) *Session {
	merged := &Session{
		ID:        base.ID,
		Name:      base.Name,
		Headers:   make(map[string]string, len(base.Headers)+len(other.Headers)),
		CreatedAt: base.CreatedAt,
		ExpiresAt: base.ExpiresAt,
		ProfileID: base.ProfileID,
		Status:    base.Status,
		Metadata:  base.Metadata,
	}
	for k, v := range base.Headers {
		merged.Headers[k] = v
	}
	for k, v := range other.Headers {
		merged.Headers[k] = v
	}

	cookies := make(map[string]Cookie, len(base.Cookies)+len(other.Cookies))
	for _, c := range base.Cookies {
		cookies[c.Name] = c
	}
	for _, c := range other.Cookies {
		cookies[c.Name] = c
	}
	for _, c := range cookies {
		merged.Cookies = append(merged.Cookies, c)
	}

	if other.ExpiresAt != nil {
		merged.ExpiresAt = other.ExpiresAt
	}
	return merged
}

// Validate returns a typed error if the session cannot currently be used
// for a request: SessionExpired if past its expiry, SessionInvalid if
// its status is Invalid.
func (s *Session) Validate() error {
	if s.IsExpired() {
		return errors.SessionExpired(s.ID.String())
	}
	if s.Status == StatusInvalid {
		return errors.SessionInvalid(s.ID.String(), "session failed validation")
	}
	return nil
}
