// Package permission implements the notification permission gate. The
// platform owns the decision; the gate mirrors it for the session and tells
// subscribers when it changes.
package permission

import (
	"errors"
	"fmt"
)

// State is the notification permission as the platform reports it.
type State int

const (
	Unrequested State = iota
	Granted
	Denied
	Unsupported
)

func (s State) String() string {
	switch s {
	case Unrequested:
		return "default"
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	case Unsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ParseState is the inverse of String for the persisted states.
func ParseState(s string) (State, error) {
	switch s {
	case "default", "":
		return Unrequested, nil
	case "granted":
		return Granted, nil
	case "denied":
		return Denied, nil
	}
	return Unrequested, fmt.Errorf("unknown permission state %q", s)
}

var (
	// ErrUnsupported means the platform cannot show notifications at all.
	ErrUnsupported = errors.New("notifications are not supported here")

	// ErrNoPrompter means a request reached a platform with no way to ask.
	ErrNoPrompter = errors.New("no permission prompter attached")
)

// Decision is the user's answer to a permission prompt.
type Decision int

const (
	// Dismiss closes the prompt without choosing; the state stays default.
	Dismiss Decision = iota
	Allow
	Block
)
