// Package main implements the quickpkg command line.
//
// quickpkg resolves package specifiers against the installed-package
// database and turns each match into a binary package in the configured
// repository. The root command does the packaging; `config` and
// `compressors` are helper subcommands. A summary table is printed to
// stdout and the exit status is 0 on full success, 1 when nothing was
// produced or a package failed, and 2 when a specifier matched nothing.
package main
