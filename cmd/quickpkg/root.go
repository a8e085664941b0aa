package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"quickpkg/internal/config"
	"quickpkg/internal/deps"
	"quickpkg/internal/packager"
	"quickpkg/internal/pkgerr"
)

type packageFlags struct {
	umask                   string
	ignoreDefaultOpts       bool
	includeConfig           string
	includeUnmodifiedConfig string
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var flags packageFlags

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:   "quickpkg [flags] <specifier>...",
		Short: "Build binary packages from installed packages",
		Long: "quickpkg rebuilds binary packages from files of installed packages.\n" +
			"Specifiers are atoms (sys-apps/sed, =app-misc/foo-1.0, sed), wildcards\n" +
			"(app-misc/*, */*:0) or sets (@world, @selected).",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !flags.ignoreDefaultOpts {
				args, err = applyDefaultOpts(cmd.Flags(), cfg.Options.DefaultOpts, args)
				if err != nil {
					return err
				}
			}
			if len(args) == 0 {
				return pkgerr.Wrap(pkgerr.ErrInvalidSpecifier, "cli", "arguments",
					"at least one package specifier is required", nil)
			}
			opts, err := flags.packagingOptions(cfg)
			if err != nil {
				return err
			}
			mask, err := flags.resolveUmask(cfg)
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			return withUmask(mask, func() error {
				return runPackaging(cmd, cfg, opts, args, logger)
			})
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.Flags().StringVar(&flags.umask, "umask", "", "Octal umask for created files (default from config, 0077)")
	rootCmd.Flags().BoolVar(&flags.ignoreDefaultOpts, "ignore-default-opts", false, "Ignore QUICKPKG_DEFAULT_OPTS and options.default_opts")
	rootCmd.Flags().StringVar(&flags.includeConfig, "include-config", "", "Include all protected configuration files: y or n")
	rootCmd.Flags().StringVar(&flags.includeUnmodifiedConfig, "include-unmodified-config", "", "Include protected configuration files that still match their recorded checksum: y or n")

	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newCompressorsCommand(ctx))
	rootCmd.AddCommand(newCheckCommand(ctx))

	return rootCmd
}

func (f packageFlags) packagingOptions(cfg *config.Config) (packager.Options, error) {
	includeConfig, err := parseYesNo("include-config", f.includeConfig, cfg.Options.IncludeConfig)
	if err != nil {
		return packager.Options{}, err
	}
	includeUnmodified, err := parseYesNo("include-unmodified-config", f.includeUnmodifiedConfig, cfg.Options.IncludeUnmodifiedConfig)
	if err != nil {
		return packager.Options{}, err
	}
	return packager.Options{
		IncludeConfig:           includeConfig,
		IncludeUnmodifiedConfig: includeUnmodified,
		LocksHeld:               cfg.Options.LocksHeld,
	}, nil
}

func (f packageFlags) resolveUmask(cfg *config.Config) (int, error) {
	value := strings.TrimSpace(f.umask)
	if value == "" {
		value = cfg.Options.Umask
	}
	return config.ParseUmask(value)
}

func parseYesNo(name, value string, fallback bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return fallback, nil
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return false, pkgerr.Wrap(pkgerr.ErrConfiguration, "cli", "--"+name,
			fmt.Sprintf("expected y or n, got %q", value), nil)
	}
}

func runPackaging(cmd *cobra.Command, cfg *config.Config, opts packager.Options, specifiers []string, logger *slog.Logger) error {
	rt, err := packager.Setup(cmd.Context(), cfg, opts, deps.PathResolver{}, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	summary, err := rt.Run(cmd.Context(), specifiers, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	writeReport(out, summary, shouldColorize(out))

	switch code := summary.ExitCode(); {
	case len(summary.Successes) == 0:
		return &exitError{code: code, message: "quickpkg: no binary packages were created"}
	case code != packager.ExitSuccess:
		return &exitError{code: code}
	}
	return nil
}
