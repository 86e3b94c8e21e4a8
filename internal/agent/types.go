// Package agent implements the background delivery agent: a long-lived
// actor that displays notifications on behalf of sessions, routes
// notification clicks back to them, and proxies fetches with an offline
// fallback. All state is owned by one goroutine and reached through the
// inbox.
package agent

import (
	"context"
	"errors"
	"net/http"

	"github.com/nixlim/buzz/internal/notify"
)

// Lifecycle is the agent's position in install → activate.
type Lifecycle int32

const (
	Parsed Lifecycle = iota
	Installing
	Installed
	Activating
	Activated
	Redundant
)

func (l Lifecycle) String() string {
	switch l {
	case Parsed:
		return "parsed"
	case Installing:
		return "installing"
	case Installed:
		return "installed"
	case Activating:
		return "activating"
	case Activated:
		return "activated"
	case Redundant:
		return "redundant"
	}
	return "unknown"
}

var (
	// ErrAgentStopped is returned for requests posted after Stop.
	ErrAgentStopped = errors.New("agent stopped")

	// ErrNotActive is returned when a request needs an activated agent.
	ErrNotActive = errors.New("agent not active")
)

// Client is a session the agent can bring to the foreground.
type Client interface {
	ID() string
	Focus(ctx context.Context) error
}

// Opener opens a new session when no client can be focused.
type Opener interface {
	Open(ctx context.Context, origin string) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, origin string) error

func (f OpenerFunc) Open(ctx context.Context, origin string) error { return f(ctx, origin) }

// Event is one inbox message. The concrete types below are the whole set.
type Event interface {
	isEvent()
}

// Install moves a parsed agent to installed. The agent skips waiting.
type Install struct{}

// Activate claims every attached client.
type Activate struct{}

// Fetch asks the agent to perform a request with offline fallback.
type Fetch struct {
	Request *http.Request
	reply   chan fetchResult
}

// NotificationClick reports that the notification under Tag was activated.
type NotificationClick struct {
	Tag    string
	Action string
}

// Show asks the agent to display a notification.
type Show struct {
	Notification notify.Notification
	reply        chan error
}

// Attach registers a client with the agent.
type Attach struct {
	Client Client
}

// Detach removes a client.
type Detach struct {
	ID string
}

func (Install) isEvent()           {}
func (Activate) isEvent()          {}
func (Fetch) isEvent()             {}
func (NotificationClick) isEvent() {}
func (Show) isEvent()              {}
func (Attach) isEvent()            {}
func (Detach) isEvent()            {}

type fetchResult struct {
	resp *http.Response
	err  error
}

// Stats counts what the agent has done.
type Stats struct {
	Shown       int `json:"shown"`
	ShowErrors  int `json:"show_errors"`
	Clicks      int `json:"clicks"`
	Focused     int `json:"focused"`
	Opened      int `json:"opened"`
	Fetches     int `json:"fetches"`
	OfflineHits int `json:"offline_hits"`
	Cached      int `json:"cached"`
}
