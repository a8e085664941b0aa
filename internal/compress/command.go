package compress

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/shell"

	"quickpkg/internal/deps"
	"quickpkg/internal/pkgerr"
)

const flagsPlaceholder = "${BINPKG_COMPRESS_FLAGS}"

// Command is a fully resolved compressor invocation.
type Command struct {
	Method Method
	// Argv holds the expanded command; Argv[0] is the resolved executable.
	Argv []string
}

// Resolve expands the template of method against vars and locates its
// executable with resolver.
func Resolve(method string, vars map[string]string, resolver deps.Resolver) (Command, error) {
	m, ok := Lookup(method)
	if !ok {
		return Command{}, pkgerr.Wrap(pkgerr.ErrUnsupportedCompression, "compress", "resolve",
			fmt.Sprintf("unknown method %q", method), nil)
	}
	argv, err := Expand(m, vars)
	if err != nil {
		return Command{}, err
	}
	if resolver == nil {
		resolver = deps.PathResolver{}
	}
	resolved, err := resolver.LookPath(argv[0])
	if err != nil {
		name := m.Name
		if name == "" {
			name = "store"
		}
		return Command{}, pkgerr.Wrap(pkgerr.ErrCompressorUnavailable, "compress", "resolve",
			fmt.Sprintf("method %q needs %q; install %s", name, argv[0], m.Package), err)
	}
	argv[0] = resolved
	return Command{Method: m, Argv: argv}, nil
}

// Expand substitutes flag overrides and the job count into the template of
// m, then splits it into words with shell rules. Empty words are dropped.
func Expand(m Method, vars map[string]string) ([]string, error) {
	template := m.Template
	if m.Name != "" {
		override := "BINPKG_COMPRESS_FLAGS_" + strings.ToUpper(m.Name)
		if strings.TrimSpace(vars[override]) != "" {
			template = strings.ReplaceAll(template, flagsPlaceholder, "${"+override+"}")
		}
	}
	template = strings.ReplaceAll(template, "{JOBS}", strconv.Itoa(JobCount(vars["MAKEOPTS"])))

	fields, err := shell.Fields(template, func(name string) string { return vars[name] })
	if err != nil {
		return nil, pkgerr.Wrap(pkgerr.ErrUnsupportedCompression, "compress", "expand",
			fmt.Sprintf("template %q", m.Template), err)
	}
	argv := fields[:0]
	for _, field := range fields {
		if field != "" {
			argv = append(argv, field)
		}
	}
	if len(argv) == 0 {
		return nil, pkgerr.Wrap(pkgerr.ErrUnsupportedCompression, "compress", "expand",
			fmt.Sprintf("template %q expanded to nothing", m.Template), nil)
	}
	return argv, nil
}

var jobsRe = regexp.MustCompile(`(?:^|\s)(?:-j\s*|--jobs(?:=|\s+))(\d+)`)

// JobCount extracts the parallel job count from a MAKEOPTS value.
func JobCount(makeopts string) int {
	match := jobsRe.FindStringSubmatch(makeopts)
	if match == nil {
		return 1
	}
	n, err := strconv.Atoi(match[1])
	if err != nil || n < 1 {
		return 1
	}
	return n
}
