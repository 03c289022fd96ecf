package main

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joelklabo/bangbot/internal/builtins"
	"github.com/joelklabo/bangbot/internal/commands"
	"github.com/joelklabo/bangbot/internal/config"
)

func newParseCommand(cfgPath func() string) *cobra.Command {
	var prefixes commands.Prefixes

	cmd := &cobra.Command{
		Use:   "parse <text>",
		Short: "Show how a line is tokenized and which commands match",
		Example: `  bangbot parse '!roll -count 2 --total'
  bangbot parse --prefix '?' '?echo "two words"'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePrefixes(cfgPath(), prefixes)
			if err != nil {
				return err
			}
			tk, err := commands.NewTokenizer(p)
			if err != nil {
				return err
			}
			parsed, err := tk.Parse(strings.Join(args, " "))
			if err != nil {
				return err
			}
			d, err := commands.NewDispatcher(builtins.All(nil)...)
			if err != nil {
				return err
			}
			printParsed(cmd, parsed, d.Lookup(parsed.Identifier()))
			return nil
		},
	}
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVar(&prefixes.Command, "prefix", "", "command prefix (default from config, else !)")
	cmd.Flags().StringVar(&prefixes.Flag, "flag", "", "flag prefix (default from config, else --)")
	cmd.Flags().StringVar(&prefixes.Pair, "pair", "", "pair prefix (default from config, else -)")
	return cmd
}

// parsePrefixes layers flags over the config file's prefixes over the
// defaults. A missing config file is not an error here.
func parsePrefixes(path string, override commands.Prefixes) (commands.Prefixes, error) {
	p := commands.DefaultPrefixes()
	cfg, err := config.Load(path)
	switch {
	case err == nil:
		p = cfg.Prefixes
	case errors.Is(err, fs.ErrNotExist):
	default:
		return p, err
	}
	if override.Command != "" {
		p.Command = override.Command
	}
	if override.Flag != "" {
		p.Flag = override.Flag
	}
	if override.Pair != "" {
		p.Pair = override.Pair
	}
	return p, nil
}

func printParsed(cmd *cobra.Command, a *commands.Args, matches []commands.Descriptor) {
	w := cmd.OutOrStdout()
	pairs := a.Pairs()
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	kv := make([]string, 0, len(keys))
	for _, k := range keys {
		kv = append(kv, k+"="+pairs[k])
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m.Identifier()+" ("+m.Description()+")")
	}
	if len(names) == 0 {
		names = append(names, "none")
	}

	fmt.Fprintln(w, row("identifier", a.Identifier()))
	fmt.Fprintln(w, row("flags", strings.Join(a.Flags(), ", ")))
	fmt.Fprintln(w, row("pairs", strings.Join(kv, ", ")))
	fmt.Fprintln(w, row("raw", strings.Join(a.Raw(), " | ")))
	fmt.Fprintln(w, row("argument", a.ArgumentText()))
	fmt.Fprintln(w, row("matches", strings.Join(names, ", ")))
}
