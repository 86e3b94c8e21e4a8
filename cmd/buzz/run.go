package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/buzz/internal/agent"
	"github.com/nixlim/buzz/internal/config"
	"github.com/nixlim/buzz/internal/console"
	"github.com/nixlim/buzz/internal/logging"
	"github.com/nixlim/buzz/internal/notify"
	"github.com/nixlim/buzz/internal/permission"
	"github.com/nixlim/buzz/internal/session"
	"github.com/nixlim/buzz/internal/tui"
	"github.com/nixlim/buzz/internal/vibrate"
)

// shutdowner is implemented by notifiers that hold a bus connection.
type shutdowner interface {
	Shutdown() error
}

func runSession(ctx context.Context, plain bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := openLogger(cfg)
	logger.Info("buzz starting", "version", version, "plain", plain)

	notifier, err := notify.New(cfg.Notifications, logger.Logger)
	if err != nil {
		// Permission reports unsupported; alerts still reach the log.
		fmt.Fprintf(os.Stderr, "buzz: %v\n", err)
		logger.Warn("notification backend unavailable", "error", err)
		notifier = notify.Disabled{}
	}

	bell := vibrate.NewBell(os.Stdout)

	platform := permission.NewFilePlatform(
		config.ExpandPath(cfg.Permission.StatePath),
		notifier.Available(),
		nil,
	)

	var tuiPrompter *tui.Prompter
	if plain {
		platform.SetPrompter(console.NewPrompter(os.Stdin, os.Stdout))
	} else {
		tuiPrompter = tui.NewPrompter()
		platform.SetPrompter(tuiPrompter)
	}

	registry := agent.NewRegistry()
	sess, err := session.New(session.Options{
		Config:   cfg,
		Platform: platform,
		Notifier: notifier,
		Vibrator: bell,
		Registry: registry,
		Opener:   agent.NewCommandOpener(cfg.Agent.OpenCommand),
		Logger:   logger.Logger,
	})
	if err != nil {
		logger.Close()
		return fmt.Errorf("starting session: %w", err)
	}

	sm := tui.NewShutdownManager()
	sm.CloseSession = sess.Close
	sm.StopServers = func(context.Context) error {
		registry.Close()
		if s, ok := notifier.(shutdowner); ok {
			return s.Shutdown()
		}
		return nil
	}
	sm.Cleanup = func() {
		bell.Stop()
		logger.Info("buzz stopped")
		logger.Close()
	}

	if plain {
		return runPlain(ctx, sess, shutdownOnce(sm))
	}
	return runDashboard(cfg, sess, tuiPrompter, logger, shutdownOnce(sm))
}

// shutdownOnce lets the quit key and the post-run path share one teardown.
func shutdownOnce(sm *tui.ShutdownManager) func() error {
	var (
		once sync.Once
		err  error
	)
	return func() error {
		once.Do(func() { err = sm.Shutdown() })
		return err
	}
}

func runDashboard(cfg config.Config, sess *session.Session, prompter *tui.Prompter, logger *logging.Logger, shutdown func() error) error {
	model := tui.NewModel(cfg, sess,
		tui.WithPrompter(prompter),
		tui.WithDiagProvider(logger),
		tui.WithOnShutdown(func() { _ = shutdown() }),
	)

	p := tea.NewProgram(model, tea.WithAltScreen())

	// Ensure a signal outside the program's raw-mode handling still tears down.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			p.Quit()
		}
	}()

	_, err := p.Run()
	prompter.Close()
	// The model only runs OnShutdown on its own quit keys.
	shutdownErr := shutdown()
	if err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	if shutdownErr != nil {
		fmt.Fprintf(os.Stderr, "buzz: shutdown: %v\n", shutdownErr)
	}
	return nil
}

func runPlain(ctx context.Context, sess *session.Session, shutdown func() error) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snap := sess.Snapshot()
	fmt.Fprintf(os.Stdout, "buzz: notifications via %s, permission %s\n", snap.Backend, snap.Permission)

	switch snap.Permission {
	case permission.Unrequested:
		go func() {
			state, err := sess.RequestPermission(ctx)
			if err != nil && ctx.Err() == nil {
				fmt.Fprintf(os.Stderr, "buzz: %v\n", err)
			}
			fmt.Fprintln(os.Stdout, plainPermissionLine(state))
		}()
	default:
		fmt.Fprintln(os.Stdout, plainPermissionLine(snap.Permission))
	}

	console.Follow(ctx, sess.Log(), os.Stdout, 250*time.Millisecond)

	if err := shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "buzz: shutdown: %v\n", err)
	}
	return nil
}

func plainPermissionLine(s permission.State) string {
	switch s {
	case permission.Granted:
		return "Permission granted. Alerts start shortly."
	case permission.Denied:
		return session.RecoveryHint
	case permission.Unsupported:
		return session.UnsupportedHint
	default:
		return "No decision yet. Run buzz again to be asked."
	}
}
