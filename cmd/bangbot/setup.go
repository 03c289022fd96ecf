package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/joelklabo/bangbot/internal/check"
	"github.com/joelklabo/bangbot/internal/config"
	"github.com/joelklabo/bangbot/internal/presets"
	"github.com/joelklabo/bangbot/internal/wizard"
)

func newInitCommand(cfgPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactively write a config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := ""
			if f := cmd.Flag("config"); f != nil && f.Changed {
				path = cfgPath()
			}
			written, err := wizard.Run(cmd.Context(), path, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config ready at %s\nNext: bangbot doctor -c %s\n", written, written)
			return nil
		},
	}
}

func newDoctorCommand(cfgPath func() string) *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the config and run preflight checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := cfgPath()
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, okStyle.Render("config ok")+" "+path)

			results := check.Run(check.ForConfig(cfg, preset, presets.Deps()))
			printResults(out, results, true)
			if n := check.Missing(results); n > 0 {
				return fmt.Errorf("%d required dependencies missing", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&preset, "preset", "", "also check a preset's prerequisites")
	return cmd
}

func newPresetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets [name]",
		Short: "List presets, or print one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				data, err := presets.Get(args[0])
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}
			list := presets.List()
			names := make([]string, 0, len(list))
			for n := range list {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				fmt.Fprintln(out, row(n, list[n]))
			}
			return nil
		},
	}
	return cmd
}
