package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nixlim/buzz/internal/config"
	"github.com/nixlim/buzz/internal/permission"
)

func newResetPermissionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-permission",
		Short: "Forget the remembered notification permission",
		Long: `Remove the stored allow/block decision so the next buzz session asks
again. This is the way back after choosing Block.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := config.ExpandPath(cfg.Permission.StatePath)
			p := permission.NewFilePlatform(path, true, nil)
			before := p.Query()
			if err := p.Reset(); err != nil {
				return fmt.Errorf("resetting permission: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "permission reset (was %s): %s\n", before, path)
			return nil
		},
	}
}
