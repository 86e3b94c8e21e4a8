//go:build linux

package notify

import (
	"log/slog"

	"github.com/nixlim/buzz/internal/config"
)

func platformCandidates(cfg config.NotificationConfig, log *slog.Logger) []Notifier {
	var out []Notifier
	if d, err := NewDBusNotifier(cfg.AppName, log); err == nil {
		out = append(out, d)
	} else {
		log.Debug("dbus notifications unavailable", "err", err)
	}
	out = append(out, NewNotifySendNotifier(cfg.AppName))
	return out
}

func platformBackend(cfg config.NotificationConfig, log *slog.Logger) (Notifier, error) {
	switch cfg.Backend {
	case config.BackendDBus:
		return NewDBusNotifier(cfg.AppName, log)
	case config.BackendNotifySend:
		return NewNotifySendNotifier(cfg.AppName), nil
	}
	return nil, ErrUnsupported
}
