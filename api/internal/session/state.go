// Package session owns the per-user analysis state: Idle -> Loading -> Success | Failure.
package session

import (
	"errors"

	"snap-to-spec/api/internal/guide/types"
	"snap-to-spec/api/internal/presenter"
)

type Phase int

const (
	Idle Phase = iota
	Loading
	Success
	Failure
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Failure:
		return "failure"
	}
	return "unknown"
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

var (
	// ErrBusy: the session is Loading and cannot accept another submission or a reset.
	ErrBusy        = errors.New("analysis in progress")
	ErrNoGuide     = errors.New("no guide to update")
	ErrUnknownStep = presenter.ErrUnknownStep
	ErrNotFound    = errors.New("session not found")
	ErrNoImage     = errors.New("nothing to retry")
)

// State is what the presenter sees. Data and Error are never both set.
type State struct {
	IsLoading bool               `json:"is_loading" yaml:"is_loading"`
	Error     *string            `json:"error" yaml:"error"`
	Data      *types.RepairGuide `json:"data" yaml:"data"`
}

// Snapshot is a consistent copy of a session at one instant.
type Snapshot struct {
	ID    string `json:"session_id" yaml:"session_id"`
	Phase Phase  `json:"phase" yaml:"phase"`
	State `yaml:",inline"`

	CompletedSteps []int            `json:"completed_steps" yaml:"completed_steps"`
	AllComplete    bool             `json:"all_complete" yaml:"all_complete"`
	Badge          *presenter.Badge `json:"badge,omitempty" yaml:"badge,omitempty"`
	Copy           *presenter.Copy  `json:"copy,omitempty" yaml:"copy,omitempty"`
}

type EventKind string

const (
	EventLoading EventKind = "loading"
	EventSuccess EventKind = "success"
	EventFailure EventKind = "failure"
	EventReset   EventKind = "reset"
	EventToggle  EventKind = "toggle"
)

// Event is published on every transition and on step toggles.
type Event struct {
	Kind     EventKind `json:"event"`
	Step     int       `json:"step,omitempty"`
	Snapshot Snapshot  `json:"snapshot"`
}
