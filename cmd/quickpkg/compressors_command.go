package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"quickpkg/internal/compress"
	"quickpkg/internal/deps"
)

func newCompressorsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "compressors",
		Short: "List compression methods and whether their programs are installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			vars := cfg.Vars()
			methods := append([]compress.Method{compress.StoreMethod}, compress.Methods()...)
			requirements := make([]deps.Requirement, 0, len(methods))
			for _, m := range methods {
				req := deps.Requirement{
					Name:     displayCompress(m.Name),
					Package:  m.Package,
					Optional: m.Name != cfg.Binpkg.Compress,
				}
				if argv, err := compress.Expand(m, vars); err == nil {
					req.Command = argv[0]
				}
				requirements = append(requirements, req)
			}

			colorize := shouldColorize(cmd.OutOrStdout())
			rows := make([][]string, 0, len(requirements))
			for _, status := range deps.CheckBinaries(deps.PathResolver{}, requirements) {
				state := paint("available", ansiGreen, colorize)
				detail := status.Path
				if !status.Available {
					state = paint("missing", ansiYellow, colorize)
					if !status.Optional {
						state = paint("missing", ansiRed, colorize)
					}
					detail = status.Detail
				}
				selected := ""
				if !status.Optional {
					selected = "*"
				}
				rows = append(rows, []string{selected, status.Name, status.Command, state, detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"", "Method", "Command", "State", "Detail"},
				rows,
				nil,
			))
			return nil
		},
	}
}
