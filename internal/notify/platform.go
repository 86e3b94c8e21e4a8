package notify

import (
	"fmt"
	"log/slog"

	"github.com/nixlim/buzz/internal/config"
)

// New resolves the configured backend. With backend "auto" it picks the
// first available one for this platform and falls back to Disabled, so
// callers can detect a missing capability through Available.
func New(cfg config.NotificationConfig, log *slog.Logger) (Notifier, error) {
	if log == nil {
		log = slog.Default()
	}
	switch cfg.Backend {
	case config.BackendNone:
		return Disabled{}, nil
	case config.BackendAuto:
		for _, candidate := range platformCandidates(cfg, log) {
			if candidate.Available() {
				log.Debug("notification backend selected", "backend", candidate.Name())
				return candidate, nil
			}
		}
		log.Warn("no notification backend available")
		return Disabled{}, nil
	default:
		n, err := platformBackend(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("notification backend %q: %w", cfg.Backend, err)
		}
		return n, nil
	}
}
