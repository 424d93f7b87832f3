// Package intercept implements the Interception Controller (C4): pausing
// an in-flight transaction and resuming it once a decision is made,
// grounded on original_source/proxy-core/src/controller.rs
// (InterceptController, a DashMap<String, oneshot::Sender<InterceptCommand>>).
// Go has no oneshot channel type; a buffered chan of capacity 1 plays the
// same role, closed by the first successful send.
package intercept

import (
	"context"
	"sync"

	"github.com/regaipserdar/proxxy-sub001/internal/errors"
)

// CommandKind is the decision an operator makes about a paused request.
type CommandKind int

const (
	CommandForward CommandKind = iota
	CommandDrop
	CommandModify
)

// Command is the decision delivered to a paused request's waiter.
type Command struct {
	Kind CommandKind

	// ModifiedMethod/URL/Headers/Body are populated when Kind == CommandModify;
	// zero-value fields leave the corresponding part of the request unchanged.
	ModifiedMethod  string
	ModifiedURL     string
	ModifiedHeaders map[string]string
	ModifiedBody    []byte
}

// Controller tracks every currently-paused request, keyed by request_id.
type Controller struct {
	mu      sync.Mutex
	waiters map[string]chan Command
}

// New creates an empty Controller.
func New() *Controller {
	return &Controller{waiters: make(map[string]chan Command)}
}

// RegisterRequest registers requestID as paused and returns a channel that
// receives exactly one Command once resumed. Registering the same
// requestID twice replaces the earlier waiter (it is never resumed).
func (c *Controller) RegisterRequest(requestID string) <-chan Command {
	ch := make(chan Command, 1)
	c.mu.Lock()
	c.waiters[requestID] = ch
	c.mu.Unlock()
	return ch
}

// ResumeRequest delivers cmd to the waiter registered under requestID and
// reports whether a waiter was found. Resuming an unknown or already-
// resumed requestID is a no-op that returns false, matching the Rust
// original's bool return from resume_request.
func (c *Controller) ResumeRequest(requestID string, cmd Command) bool {
	c.mu.Lock()
	ch, ok := c.waiters[requestID]
	if ok {
		delete(c.waiters, requestID)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	ch <- cmd
	close(ch)
	return true
}

// CancelRequest removes requestID's waiter without a decision and closes
// its channel, so an in-flight WaitForDecision call returns an error
// rather than waiting for its ctx.
func (c *Controller) CancelRequest(requestID string) {
	c.mu.Lock()
	ch, ok := c.waiters[requestID]
	if ok {
		delete(c.waiters, requestID)
	}
	c.mu.Unlock()
	if ok {
		close(ch)
	}
}

// PendingCount reports how many requests are currently paused.
func (c *Controller) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// IsPending reports whether requestID is currently registered and
// awaiting resumption.
func (c *Controller) IsPending(requestID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.waiters[requestID]
	return ok
}

// WaitForDecision blocks until requestID is resumed, ctx is done, or the
// request is externally cancelled. It is the proxy engine's convenience
// wrapper over RegisterRequest/ResumeRequest.
func (c *Controller) WaitForDecision(ctx context.Context, requestID string) (Command, error) {
	ch := c.RegisterRequest(requestID)
	select {
	case cmd, ok := <-ch:
		if !ok {
			return Command{}, errors.Timeout("intercept decision", "waiter closed without a decision")
		}
		return cmd, nil
	case <-ctx.Done():
		c.CancelRequest(requestID)
		return Command{}, errors.Timeout("intercept decision", ctx.Err().Error())
	}
}
