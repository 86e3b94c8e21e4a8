//go:build darwin

package notify

import (
	"log/slog"

	"github.com/nixlim/buzz/internal/config"
)

func platformCandidates(cfg config.NotificationConfig, _ *slog.Logger) []Notifier {
	return []Notifier{NewOSAScriptNotifier(cfg.AppName)}
}

func platformBackend(cfg config.NotificationConfig, _ *slog.Logger) (Notifier, error) {
	if cfg.Backend == config.BackendOSAScript {
		return NewOSAScriptNotifier(cfg.AppName), nil
	}
	return nil, ErrUnsupported
}
