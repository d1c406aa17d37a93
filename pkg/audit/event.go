// Package audit provides operation-level event logging for the change
// pipeline. Events complement the commit store: the store holds what
// configuration was intended, events record how each pipeline run ended,
// including rejections and apply failures that the caller may never have
// waited for.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Stages recorded on failure events.
const (
	StagePreCheck = "precheck"
	StageRender   = "render"
	StageCommit   = "commit"
	StageApply    = "apply"
)

// Event is one auditable pipeline outcome.
type Event struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	User      string        `json:"user"`
	Device    string        `json:"device"`
	Interface string        `json:"interface,omitempty"`
	Operation string        `json:"operation"` // precheck, configure, rollback
	CommitID  string        `json:"commit_id,omitempty"`
	Stage     string        `json:"stage,omitempty"` // failing stage, empty on success
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Filter defines criteria for querying audit events
type Filter struct {
	Device      string
	User        string
	Operation   string
	StartTime   time.Time
	EndTime     time.Time
	FailureOnly bool
	Limit       int
}

// NewEvent creates a new audit event
func NewEvent(user, device, operation string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		User:      user,
		Device:    device,
		Operation: operation,
	}
}

// WithInterface sets the interface name
func (e *Event) WithInterface(iface string) *Event {
	e.Interface = iface
	return e
}

// WithCommit records the commit created by this operation
func (e *Event) WithCommit(id string) *Event {
	e.CommitID = id
	return e
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess() *Event {
	e.Success = true
	return e
}

// WithFailure marks the event as failed at the given stage
func (e *Event) WithFailure(stage string, err error) *Event {
	e.Success = false
	e.Stage = stage
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the operation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}
