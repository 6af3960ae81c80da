package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/Travis-Britz/ddnsync/internal/config"
	"github.com/Travis-Britz/ddnsync/internal/log"
)

var Version = "dev"

type options struct {
	configFile string
	stateFile  string
	verbose    bool
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "ddnsync",
		Short: "Point a DNS record at this host's public IP",
		Long: "ddnsync runs a single reconciliation pass: it resolves the public IP of this host,\n" +
			"compares it with the cached IP and the live DNS record, and updates the record only when they differ.\n" +
			"Run it from cron or a systemd timer.",
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true, // run logs every failure itself
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "ddnsync.yaml", "Path to configuration file")
	cmd.Flags().StringVar(&opts.stateFile, "state-file", "", "Override the state file from the configuration")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

func run(ctx context.Context, out io.Writer, opts options) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return err
	}
	if opts.stateFile != "" {
		cfg.StateFile = opts.stateFile
	}

	logger, err := log.NewLogger(opts.verbose || cfg.Log.Verbose, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() {
		err := logger.Sync()
		var perr *fs.PathError
		if err != nil && !errors.As(err, &perr) {
			fmt.Fprintln(os.Stderr, err)
		}
	}()

	// Only one pass may touch the state file at a time.
	lock := flock.New(cfg.StateFile + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring lock %s: %w", lock.Path(), err)
	}
	if !locked {
		logger.Error("another instance is running", zap.String("lock", lock.Path()))
		return fmt.Errorf("another instance holds %s", lock.Path())
	}
	defer lock.Unlock()

	if err := promptToken(cfg); err != nil {
		return err
	}

	r, err := config.Build(ctx, cfg, logger.Named("reconciler"))
	if err != nil {
		logger.Error("could not configure reconciler", zap.Error(err))
		return err
	}
	res, err := r.Reconcile(ctx)
	if err != nil {
		logger.Error("reconciliation failed", zap.Error(err))
		return err
	}
	fmt.Fprintln(out, res)
	return nil
}

// promptToken asks for a Cloudflare API token when none is configured and stdin is a terminal.
// The token is only used for this run.
func promptToken(cfg *config.Config) error {
	cf := &cfg.Provider.Cloudflare
	if cfg.Provider.Name != config.ProviderCloudflare || cf.APIToken != "" || cf.TokenFile != "" || cf.APIKey != "" {
		return nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	fmt.Fprint(os.Stderr, "Enter Cloudflare API token: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("error reading from stdin: %w", err)
	}
	cf.APIToken = string(b)
	return nil
}
