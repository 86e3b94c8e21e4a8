//go:build !linux && !darwin

package notify

import (
	"log/slog"

	"github.com/nixlim/buzz/internal/config"
)

func platformCandidates(config.NotificationConfig, *slog.Logger) []Notifier {
	return nil
}

func platformBackend(config.NotificationConfig, *slog.Logger) (Notifier, error) {
	return nil, ErrUnsupported
}
