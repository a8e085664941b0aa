package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"quickpkg/internal/deps"
	"quickpkg/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify paths and the configured compressor before packaging",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cfg, deps.PathResolver{})

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				state := paint("OK", ansiGreen, colorize)
				if !r.Passed {
					state = paint("FAIL", ansiRed, colorize)
				}
				rows = append(rows, []string{r.Name, state, r.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "State", "Detail"}, rows, nil))
			if !preflight.Passed(results) {
				return &exitError{code: 1, message: "quickpkg: some checks failed"}
			}
			return nil
		},
	}
}
