package pkgerr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSpecifier       = errors.New("invalid specifier")
	ErrAmbiguousSpecifier     = errors.New("ambiguous specifier")
	ErrSetNotFound            = errors.New("set not found")
	ErrSetExpansion           = errors.New("set expansion error")
	ErrMalformedMetadata      = errors.New("malformed metadata")
	ErrCompressorUnavailable  = errors.New("compressor unavailable")
	ErrUnsupportedCompression = errors.New("unsupported compression")
	ErrUnsupportedFormat      = errors.New("unsupported format")
	ErrArchive                = errors.New("archive construction failed")
	ErrRegistration           = errors.New("registration failed")
	ErrConfiguration          = errors.New("configuration error")
	ErrLock                   = errors.New("lock error")
)

// Tier classifies how far an error propagates.
type Tier int

const (
	// TierPackage aborts the current package only.
	TierPackage Tier = iota
	// TierInput marks the specifier as missing.
	TierInput
	// TierFatal aborts the whole invocation.
	TierFatal
)

func (t Tier) String() string {
	switch t {
	case TierInput:
		return "input"
	case TierFatal:
		return "fatal"
	default:
		return "package"
	}
}

// Wrap builds an error message that includes component context while tagging
// it with the provided marker. The marker should be one of the sentinels above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrArchive
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to the tier that decides its blast radius.
func Classify(err error) Tier {
	switch {
	case errors.Is(err, ErrInvalidSpecifier),
		errors.Is(err, ErrAmbiguousSpecifier),
		errors.Is(err, ErrSetNotFound),
		errors.Is(err, ErrSetExpansion):
		return TierInput
	case errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrUnsupportedCompression),
		errors.Is(err, ErrConfiguration):
		return TierFatal
	default:
		return TierPackage
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "packaging failure"
	}
	return strings.Join(parts, ": ")
}
