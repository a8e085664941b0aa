package packager

import "quickpkg/internal/vardb"

// Exit statuses of an invocation.
const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitMissing = 2
)

// Success records one registered artifact.
type Success struct {
	CPV  vardb.CPV
	Size int64
	Path string
}

// Summary accumulates the outcome of a run. Components only append.
type Summary struct {
	Successes      []Success
	Missing        []string
	ExcludedConfig int
	Failures       int
}

// ExitCode maps the summary to the process exit status: nothing produced is
// a failure, unresolved specifiers take precedence over package failures.
func (s *Summary) ExitCode() int {
	switch {
	case len(s.Successes) == 0:
		return ExitFailure
	case len(s.Missing) > 0:
		return ExitMissing
	case s.Failures > 0:
		return ExitFailure
	default:
		return ExitSuccess
	}
}

// TotalSize returns the byte total of all successes.
func (s *Summary) TotalSize() int64 {
	var total int64
	for _, success := range s.Successes {
		total += success.Size
	}
	return total
}

func (s *Summary) record(result Result) {
	switch result.Status {
	case StatusSuccess:
		s.Successes = append(s.Successes, Success{CPV: result.CPV, Size: result.Size, Path: result.Path})
		s.ExcludedConfig += len(result.Excluded)
	case StatusFailed:
		s.Failures++
	}
}
