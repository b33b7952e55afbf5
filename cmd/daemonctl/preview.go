package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codexmonitor/daemonctl/internal/preview"
)

func newCommandPreviewCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "command-preview",
		Short: "Print the command that starts the daemon, without the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.loadConfig()
			if err != nil {
				return err
			}
			daemonPath, err := cfg.DaemonPath()
			if err != nil {
				return err
			}

			rendered := preview.Build(preview.Options{
				DaemonPath:      daemonPath,
				ListenAddr:      cfg.ListenAddr,
				DataDir:         cfg.DataDir,
				InsecureNoAuth:  cfg.InsecureNoAuth,
				TokenConfigured: cfg.Token != "",
				Style:           preview.PlatformStyle(),
			})
			if opts.json {
				return printJSON(cmd.OutOrStdout(), rendered)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered.Command)
			return err
		},
	}
}
