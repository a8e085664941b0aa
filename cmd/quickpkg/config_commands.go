package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"quickpkg/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

// newConfigShowCommand prints the effective configuration after defaults,
// environment fallbacks and path expansion have been applied.
func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "show",
		Short:       "Validate and print the effective configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, resolved, exists, err := config.Load(strings.TrimSpace(path))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", resolved)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			rows := [][]string{
				{"root", cfg.Paths.Root},
				{"vdb_dir", cfg.Paths.VDBDir},
				{"pkgdir", cfg.Paths.PkgDir},
				{"format", cfg.Binpkg.Format},
				{"compress", displayCompress(cfg.Binpkg.Compress)},
				{"multi_instance", yesNo(cfg.Binpkg.MultiInstance)},
				{"config_protect", strings.Join(cfg.ConfigProtect.Protect, " ")},
				{"config_protect_mask", strings.Join(cfg.ConfigProtect.ProtectMask, " ")},
				{"umask", cfg.Options.Umask},
				{"include_config", yesNo(cfg.Options.IncludeConfig)},
				{"include_unmodified_config", yesNo(cfg.Options.IncludeUnmodifiedConfig)},
				{"locks_held", yesNo(cfg.Options.LocksHeld)},
			}
			fmt.Fprintln(out, renderTable([]string{"Setting", "Value"}, rows, nil))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func displayCompress(method string) string {
	if method == "" {
		return "(store)"
	}
	return method
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
