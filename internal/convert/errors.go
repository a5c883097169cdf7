package convert

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies conversion failures so callers can branch on them when
// deciding user messaging. Raw diagnostics (stderr and such) stay in the
// error for logging and are never shown to end users.
type Kind int

const (
	// KindConverterUnavailable: no converter executable could be resolved.
	KindConverterUnavailable Kind = iota + 1
	// KindNoMatchingMember: the archive holds no recognized source document.
	KindNoMatchingMember
	// KindCorruptArchive: the archive itself is unreadable.
	KindCorruptArchive
	// KindSourceUnreadable: the source could not be materialized for the
	// converter (extraction failed).
	KindSourceUnreadable
	// KindConversionFailed: the subprocess exited non-zero, or exited
	// cleanly without producing the expected output file.
	KindConversionFailed
	// KindConversionTimedOut: the subprocess exceeded its deadline or was
	// cancelled and had to be killed.
	KindConversionTimedOut
)

func (k Kind) String() string {
	switch k {
	case KindConverterUnavailable:
		return "ConverterUnavailable"
	case KindNoMatchingMember:
		return "NoMatchingMember"
	case KindCorruptArchive:
		return "CorruptArchive"
	case KindSourceUnreadable:
		return "SourceUnreadable"
	case KindConversionFailed:
		return "ConversionFailed"
	case KindConversionTimedOut:
		return "ConversionTimedOut"
	default:
		return "Unknown"
	}
}

// Error is the typed failure of any conversion-pipeline step.
type Error struct {
	Kind    Kind
	Message string
	Stderr  string
	Cause   error
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("[%s] %s", e.Kind, e.Message)}
	if e.Stderr != "" {
		parts = append(parts, fmt.Sprintf("stderr: %s", strings.TrimSpace(e.Stderr)))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}
	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err is a conversion error of the given kind.
func IsKind(err error, kind Kind) bool {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind == kind
	}
	return false
}

// KindOf extracts the failure kind, or 0 for foreign errors.
func KindOf(err error) Kind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return 0
}
