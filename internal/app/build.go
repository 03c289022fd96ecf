package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joelklabo/bangbot/internal/builtins"
	"github.com/joelklabo/bangbot/internal/commands"
	"github.com/joelklabo/bangbot/internal/config"
	"github.com/joelklabo/bangbot/internal/core"
	"github.com/joelklabo/bangbot/internal/store"
	"github.com/joelklabo/bangbot/internal/transports"

	_ "github.com/joelklabo/bangbot/internal/transports/discord"
	_ "github.com/joelklabo/bangbot/internal/transports/email/imap"
	_ "github.com/joelklabo/bangbot/internal/transports/mock"
	_ "github.com/joelklabo/bangbot/internal/transports/nostr"
)

// Bot is everything Build wires together.
type Bot struct {
	Runner     *core.Runner
	Transports []core.Transport
	// Help is nil when help is disabled.
	Help *commands.Help
}

// Build constructs transports, the command dispatcher and the runner from cfg.
// Extra descriptors are registered after the builtins and before help is
// seeded, so they show up in the help listing.
func Build(cfg *config.Config, st *store.Store, logger *slog.Logger, extra ...commands.Descriptor) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}

	trs := make([]core.Transport, 0, len(cfg.Transports))
	for _, tc := range cfg.Transports {
		tr, err := transports.Build(tc, transports.Deps{Store: st, Logger: logger})
		if err != nil {
			return nil, err
		}
		trs = append(trs, tr)
	}

	tokenizer, err := commands.NewTokenizer(cfg.Prefixes)
	if err != nil {
		return nil, err
	}

	dispatcher, err := commands.NewDispatcher(builtins.All(nil)...)
	if err != nil {
		return nil, err
	}
	if err := dispatcher.Add(extra...); err != nil {
		return nil, err
	}

	help, err := buildHelp(cfg.Help)
	if err != nil {
		return nil, err
	}
	if help != nil {
		help.AddFrom(dispatcher.Descriptors()...)
		help.AddFrom(help)
		if err := dispatcher.Add(help); err != nil {
			return nil, err
		}
	}

	rc := cfg.Runner
	opts := []core.RunnerOption{
		core.WithAllowedSenders(rc.AllowedSenders),
		core.WithRateLimit(rc.RateLimitPerMinute, rc.RateBurst),
		core.WithReplyTimeout(time.Duration(rc.ReplyTimeoutSecs) * time.Second),
		core.WithDecorations(rc.FailureDecoration(), rc.InfoDecoration()),
		core.WithMaxReplyChars(rc.MaxReplyChars),
	}
	if st != nil {
		opts = append(opts, core.WithAuditLogger(st))
		if rc.DedupWindowSeconds > 0 {
			opts = append(opts, core.WithDedup(st, time.Duration(rc.DedupWindowSeconds)*time.Second))
		}
	}

	r := core.NewRunner(trs, tokenizer, dispatcher, logger, opts...)
	logger.Debug("bot built",
		slog.Int("transports", len(trs)),
		slog.Int("commands", len(dispatcher.Descriptors())),
		slog.Bool("help", help != nil),
	)
	return &Bot{Runner: r, Transports: trs, Help: help}, nil
}

func buildHelp(hc config.HelpConfig) (*commands.Help, error) {
	if hc.Disable {
		return nil, nil
	}
	var (
		help *commands.Help
		err  error
	)
	if hc.File != "" {
		help, err = commands.HelpFromFile(hc.Identifier, hc.File)
		if err != nil {
			return nil, fmt.Errorf("load help: %w", err)
		}
	} else {
		help = commands.NewHelp(hc.Identifier, nil)
	}
	if hc.LookupFormat != "" {
		help.LookupFormat = hc.LookupFormat
	}
	return help, nil
}
