package tui

import (
	"context"
	"errors"
	"time"
)

// ShutdownManager stops buzz components in order once the UI exits.
type ShutdownManager struct {
	// DrainTimeout bounds how long servers may take to drain.
	DrainTimeout time.Duration

	// CloseSession stops the alert loop and releases the session's agent.
	CloseSession func() error

	// StopServers stops agent listeners, if any.
	StopServers func(ctx context.Context) error

	// Cleanup runs last, e.g. to close the diagnostic log.
	Cleanup func()
}

// NewShutdownManager creates a ShutdownManager with a 5-second drain timeout.
func NewShutdownManager() *ShutdownManager {
	return &ShutdownManager{
		DrainTimeout: 5 * time.Second,
	}
}

// Shutdown runs every configured step even when an earlier one fails and
// returns the joined errors.
func (sm *ShutdownManager) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), sm.DrainTimeout)
	defer cancel()

	var errs []error
	if sm.CloseSession != nil {
		errs = append(errs, sm.CloseSession())
	}
	if sm.StopServers != nil {
		errs = append(errs, sm.StopServers(ctx))
	}
	if sm.Cleanup != nil {
		sm.Cleanup()
	}
	return errors.Join(errs...)
}
