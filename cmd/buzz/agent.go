package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nixlim/buzz/internal/agent"
	"github.com/nixlim/buzz/internal/agentrpc"
	"github.com/nixlim/buzz/internal/notify"
)

func newAgentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Run the delivery agent as a standalone process",
		Long: `Run the background delivery agent on its own.

The agent accepts notifications over OTLP/gRPC on agent.grpc_port and
serves the cached fetch proxy and a health endpoint on agent.http_port.
Point another buzz at it with agent.endpoint = "host:port".`,
		RunE: runAgent,
	}
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := openLogger(cfg)
	defer logger.Close()

	notifier, err := notify.New(cfg.Notifications, logger.Logger)
	if err != nil {
		return fmt.Errorf("notification backend: %w", err)
	}
	if s, ok := notifier.(shutdowner); ok {
		defer s.Shutdown()
	}

	registry := agent.NewRegistry()
	defer registry.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, _, err := registry.Register(ctx, agent.Options{
		Origin:   cfg.Agent.Origin,
		Notifier: notifier,
		Opener:   agent.NewCommandOpener(cfg.Agent.OpenCommand),
		Logger:   logger.Logger,
	})
	if err != nil {
		return fmt.Errorf("registering agent: %w", err)
	}
	if err := a.Ready(ctx); err != nil {
		return fmt.Errorf("activating agent: %w", err)
	}

	grpcSrv := agentrpc.NewGRPCServer(cfg.Agent, a, logger.Logger)
	if err := grpcSrv.Start(); err != nil {
		return err
	}
	defer grpcSrv.Stop()

	httpSrv := agentrpc.NewHTTPServer(cfg.Agent, a.Handler(), logger.Logger)
	if err := httpSrv.Start(); err != nil {
		return err
	}
	defer httpSrv.Stop()

	fmt.Fprintf(os.Stdout, "buzz agent for %s via %s\n", cfg.Agent.Origin, notifier.Name())
	fmt.Fprintf(os.Stdout, "  otlp/grpc  %s\n", grpcSrv.Addr())
	fmt.Fprintf(os.Stdout, "  http       http://%s/healthz\n", httpSrv.Addr())

	<-ctx.Done()
	logger.Info("agent stopping", "stats", a.Stats())
	return nil
}
