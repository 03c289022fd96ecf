package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/joelklabo/bangbot/internal/admin"
	"github.com/joelklabo/bangbot/internal/app"
	"github.com/joelklabo/bangbot/internal/check"
	"github.com/joelklabo/bangbot/internal/config"
	"github.com/joelklabo/bangbot/internal/metrics"
	"github.com/joelklabo/bangbot/internal/presets"
	"github.com/joelklabo/bangbot/internal/store"
)

const pruneInterval = 10 * time.Minute

func newRunCommand(cfgPath func() string) *cobra.Command {
	var skipCheck bool

	cmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "Connect transports and answer commands",
		Long:  "Run the bot using the config file, or a named preset when one is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := runOptions{configPath: cfgPath(), skipCheck: skipCheck, out: cmd.OutOrStdout()}
			if len(args) == 1 {
				opts.preset = args[0]
			}
			return runContext(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "skip preflight dependency checks")
	return cmd
}

type runOptions struct {
	configPath string
	preset     string
	skipCheck  bool
	out        io.Writer
}

func runContext(ctx context.Context, opts runOptions) error {
	path := opts.configPath
	if opts.preset != "" {
		p, cleanup, err := materializePreset(opts.preset)
		if err != nil {
			return err
		}
		defer cleanup()
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := setupLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closer.Close()

	if !opts.skipCheck {
		results := check.Run(check.ForConfig(cfg, opts.preset, presets.Deps()))
		printResults(opts.out, results, false)
		if n := check.Missing(results); n > 0 {
			return fmt.Errorf("%d required dependencies missing; rerun with --skip-check to bypass", n)
		}
	}

	st, err := store.New(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	bot, err := app.Build(cfg, st, logger)
	if err != nil {
		return fmt.Errorf("build bot: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := metrics.Start(ctx, cfg.Metrics.Listen, logger); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("metrics: %w", err)
			}
		}()
	}
	if cfg.Admin.Enable {
		srv := admin.New(cfg.Admin, bot.Runner, bot.Help, st, logger)
		go func() {
			if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("admin: %w", err)
			}
		}()
	}
	if window := time.Duration(cfg.Runner.DedupWindowSeconds) * time.Second; window > 0 {
		go pruneLoop(ctx, st, window, logger)
	}

	printBanner(opts.out, cfg, buildVersion())
	logger.Info("bangbot starting",
		slog.Int("transports", len(bot.Transports)),
		slog.String("prefix", cfg.Prefixes.Command),
	)

	runErr := make(chan error, 1)
	go func() { runErr <- bot.Runner.Start(ctx) }()

	select {
	case err := <-runErr:
		return err
	case err := <-errCh:
		cancel()
		<-runErr
		return err
	}
}

func pruneLoop(ctx context.Context, st *store.Store, window time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := st.PruneMessages(window)
			if err != nil {
				logger.Warn("prune dedup entries", slog.String("err", err.Error()))
				continue
			}
			if n > 0 {
				logger.Debug("pruned dedup entries", slog.Int("count", n))
			}
		}
	}
}

// materializePreset writes a preset to a temp dir so it loads like any
// other config file.
func materializePreset(name string) (string, func(), error) {
	data, err := presets.Get(name)
	if err != nil {
		return "", nil, err
	}
	dir, err := os.MkdirTemp("", "bangbot-preset-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }
	path := filepath.Join(dir, name+".yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}
