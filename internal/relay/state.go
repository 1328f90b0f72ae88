package relay

import (
	"net/http"
	"time"

	"github.com/angeloszaimis/proxee/internal/backend"
)

// State is a step in the relay lifecycle.
type State int

const (
	Accepted State = iota
	BackendSelected
	Connected
	Relaying
	Completed
)

func (s State) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case BackendSelected:
		return "backend_selected"
	case Connected:
		return "connected"
	case Relaying:
		return "relaying"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Status is the terminal result of a relay.
type Status int

const (
	Success Status = iota + 1
	Failure
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Outcome codes reported to the sink. They follow HTTP status classes so
// dashboards can split success from failure.
const (
	CodeSuccess     = http.StatusOK
	CodeUnavailable = http.StatusServiceUnavailable
	CodeDialFailed  = http.StatusBadGateway
	CodeRelayFailed = http.StatusInternalServerError
)

// Outcome describes a finished connection.
type Outcome struct {
	ClientAddr string
	Backend    backend.Server
	Start      time.Time
	Duration   time.Duration
	// Stage is the last state reached before completion.
	Stage  State
	Status Status
	Code   int
	Err    error
}
