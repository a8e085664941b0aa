package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"mvdan.cc/sh/v3/shell"

	"quickpkg/internal/pkgerr"
)

// applyDefaultOpts parses raw as if its words preceded the command line.
// Flags given explicitly on the command line keep their values; positional
// words are returned ahead of args.
func applyDefaultOpts(fs *pflag.FlagSet, raw string, args []string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return args, nil
	}
	words, err := shell.Fields(raw, nil)
	if err != nil {
		return nil, pkgerr.Wrap(pkgerr.ErrConfiguration, "cli", "default options",
			fmt.Sprintf("split %q", raw), err)
	}

	explicit := make(map[string]string)
	fs.Visit(func(f *pflag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	if err := fs.Parse(words); err != nil {
		return nil, pkgerr.Wrap(pkgerr.ErrConfiguration, "cli", "default options",
			fmt.Sprintf("parse %q", raw), err)
	}
	leading := append([]string(nil), fs.Args()...)

	for name, value := range explicit {
		if err := fs.Set(name, value); err != nil {
			return nil, fmt.Errorf("restore --%s: %w", name, err)
		}
	}
	return append(leading, args...), nil
}
