package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nixlim/buzz/internal/permission"
)

func TestResetPermissionCmd(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "permission.toml")
	cfgPath := filepath.Join(dir, "config.toml")
	cfg := fmt.Sprintf("[permission]\nstate_path = %q\n", statePath)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	p := permission.NewFilePlatform(statePath, true, permission.PrompterFunc(func(context.Context) (permission.Decision, error) {
		return permission.Block, nil
	}))
	if st, err := p.Request(context.Background()); err != nil || st != permission.Denied {
		t.Fatalf("seeding decision: %v, %v", st, err)
	}

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--config", cfgPath, "reset-permission"})
	if err := root.Execute(); err != nil {
		t.Fatalf("reset-permission: %v", err)
	}

	if got := p.Query(); got != permission.Unrequested {
		t.Errorf("state after reset = %s, want default", got)
	}
	if !strings.Contains(out.String(), "was denied") || !strings.Contains(out.String(), statePath) {
		t.Errorf("output = %q", out.String())
	}

	// A second reset with nothing stored still succeeds.
	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgPath, "reset-permission"})
	if err := root.Execute(); err != nil {
		t.Fatalf("second reset-permission: %v", err)
	}
	if !strings.Contains(out.String(), "was default") {
		t.Errorf("second output = %q", out.String())
	}
}

func TestResetPermissionCmd_RejectsArgs(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"reset-permission", "extra"})
	if err := root.Execute(); err == nil {
		t.Error("expected an error for an unexpected argument")
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"agent", "reset-permission"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not wired: %v", name, err)
		}
	}
	for _, flag := range []string{"config", "debug"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s missing", flag)
		}
	}
	if root.Flags().Lookup("plain") == nil {
		t.Error("--plain flag missing")
	}
}
