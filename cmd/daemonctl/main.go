package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/codexmonitor/daemonctl/internal/config"
	"github.com/codexmonitor/daemonctl/internal/daemon"
	apperrors "github.com/codexmonitor/daemonctl/internal/errors"
)

const appName = "codex-monitor-daemonctl"

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	listen         string
	token          string
	dataDir        string
	daemonPath     string
	insecureNoAuth bool
	json           bool
	verbose        bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "daemonctl",
		Short: "Control the Codex Monitor mobile access daemon",
		Long: `daemonctl starts, stops and inspects the Codex Monitor mobile access daemon.

Listen address and token default to the values the desktop app saved in its
settings. The token can also be provided through ` + config.TokenEnvVar + `.`,
		Version:       daemon.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFlags(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.listen, "listen", "", "Daemon listen address (host:port)")
	pf.StringVar(&opts.token, "token", "", "Remote backend token")
	pf.StringVar(&opts.dataDir, "data-dir", "", "App data directory (default: platform app data dir)")
	pf.StringVar(&opts.daemonPath, "daemon-path", "", "Path to the codex-monitor-daemon binary")
	pf.BoolVar(&opts.insecureNoAuth, "insecure-no-auth", false, "Run the daemon without authentication (development only)")
	pf.BoolVar(&opts.json, "json", false, "Print structured JSON output")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Log lifecycle steps to stderr")

	cmd.AddCommand(newStartCmd(opts))
	cmd.AddCommand(newStopCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newCommandPreviewCmd(opts))

	cmd.SetVersionTemplate(fmt.Sprintf("%s v%s\n", appName, daemon.Version))
	return cmd
}

// stringFlags are trimmed and must not be blank when given.
var stringFlags = []string{"listen", "token", "data-dir", "daemon-path"}

func validateFlags(cmd *cobra.Command) error {
	for _, name := range stringFlags {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		trimmed := strings.TrimSpace(flag.Value.String())
		if trimmed == "" {
			return apperrors.Config("--%s requires a non-empty value", name)
		}
		if err := flag.Value.Set(trimmed); err != nil {
			return err
		}
	}
	return nil
}

func newLogger(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log.SetLevel(logrus.WarnLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// loadConfig resolves configuration and applies the controller file's
// log level unless --verbose was given.
func (o *rootOptions) loadConfig() (*config.Config, *logrus.Logger, error) {
	log := newLogger(o.verbose)

	cfg, err := config.Load(config.Overrides{
		Listen:         o.listen,
		Token:          o.token,
		DataDir:        o.dataDir,
		DaemonPath:     o.daemonPath,
		InsecureNoAuth: o.insecureNoAuth,
	}, os.Getenv, log)
	if err != nil {
		return nil, nil, err
	}

	if !o.verbose && cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			log.WithError(err).Warnf("ignoring log-level in %s", config.ControllerConfigFile)
		} else {
			log.SetLevel(level)
		}
	}
	return cfg, log, nil
}

// Signals keep their default disposition: every command is a bounded
// sequence of probes, and an interrupted one ends the process rather than
// reporting a state it did not observe.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, apperrors.Message(err))
		os.Exit(1)
	}
}
