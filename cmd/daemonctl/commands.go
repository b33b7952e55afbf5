package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/codexmonitor/daemonctl/internal/config"
	apperrors "github.com/codexmonitor/daemonctl/internal/errors"
	"github.com/codexmonitor/daemonctl/internal/lifecycle"
)

func newStartCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon, replacing an outdated one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.loadConfig()
			if err != nil {
				return err
			}
			daemonPath, err := cfg.DaemonPath()
			if err != nil {
				return err
			}

			ctrl := lifecycle.New(targetFor(cfg, daemonPath), lifecycle.WithLogger(log))
			status, err := ctrl.Start(cmd.Context())
			if err != nil {
				if opts.json {
					printStatus(cmd.OutOrStdout(), lifecycle.ErrorStatus(cfg.ListenAddr, err), true)
				}
				return err
			}
			return printStatus(cmd.OutOrStdout(), status, opts.json)
		},
	}
}

func newStopCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.loadConfig()
			if err != nil {
				return err
			}

			status := lifecycle.New(targetFor(cfg, ""), lifecycle.WithLogger(log)).Stop(cmd.Context())
			if err := printStatus(cmd.OutOrStdout(), status, opts.json); err != nil {
				return err
			}
			if status.State != lifecycle.StateStopped {
				message := "Daemon is still running after stop attempt."
				if status.LastError != nil {
					message = *status.LastError
				}
				return apperrors.New(apperrors.KindProcess, message)
			}
			return nil
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what is listening on the daemon address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.loadConfig()
			if err != nil {
				return err
			}
			status := lifecycle.New(targetFor(cfg, ""), lifecycle.WithLogger(log)).Status(cmd.Context())
			return printStatus(cmd.OutOrStdout(), status, opts.json)
		},
	}
}

func targetFor(cfg *config.Config, daemonPath string) lifecycle.Target {
	return lifecycle.Target{
		ListenAddr:     cfg.ListenAddr,
		Token:          cfg.Token,
		InsecureNoAuth: cfg.InsecureNoAuth,
		DataDir:        cfg.DataDir,
		DaemonPath:     daemonPath,
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStatus(w io.Writer, status lifecycle.Status, asJSON bool) error {
	if asJSON {
		return printJSON(w, status)
	}

	fmt.Fprintf(w, "state: %s\n", status.State)
	if status.ListenAddr != nil {
		fmt.Fprintf(w, "listen: %s\n", *status.ListenAddr)
	}
	if status.PID != nil {
		fmt.Fprintf(w, "pid: %d\n", *status.PID)
	}
	if status.LastError != nil {
		fmt.Fprintf(w, "error: %s\n", *status.LastError)
	}
	return nil
}
