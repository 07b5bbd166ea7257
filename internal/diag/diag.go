// Package diag implements the error/warning surface (C15): classified
// failures attached to code positions. Modeled on the teacher's
// errors.SentraError (sentra-language-sentra/internal/errors/errors.go):
// a Kind enum, a message, a location, and an Error() string — generalized
// from source-text locations to p-code addresses, and split into a fatal
// Diagnostic (returned as an error) versus a non-fatal Warning (collected
// in a Sink rather than returned).
package diag

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/decompile/core/internal/addr"
)

// Severity classifies a Diagnostic by spec.md §7's five error kinds.
type Severity string

const (
	SeverityInvariant Severity = "InvariantViolation" // fatal, abandons the function
	SeverityRecovery  Severity = "RecoveryFailure"     // localized, degraded form kept
	SeverityUnavailable Severity = "DataUnavailable"   // recovered locally
	SeverityTypeConflict Severity = "TypeConflict"     // warning only
	SeverityParse     Severity = "ParseError"          // aborts decode
)

// Diagnostic is a classified failure attached to an address. Fatal
// diagnostics (SeverityInvariant, SeverityParse) are constructed with a
// captured stack via github.com/pkg/errors so the abandoned-function
// record can report where the invariant broke.
type Diagnostic struct {
	Severity Severity
	Message  string
	At       addr.Address
	cause    error
}

func (d *Diagnostic) Error() string {
	if d.At.Invalid() {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%s at %s: %s", d.Severity, d.At, d.Message)
}

func (d *Diagnostic) Unwrap() error { return d.cause }

// NewInvariant builds a fatal low-level invariant violation, stack-wrapped
// so the driver can log where analysis broke.
func NewInvariant(at addr.Address, format string, args ...interface{}) *Diagnostic {
	d := &Diagnostic{Severity: SeverityInvariant, Message: fmt.Sprintf(format, args...), At: at}
	d.cause = errors.WithStack(errors.New(d.Message))
	return d
}

// NewRecoveryFailure builds a localized recovery failure (jump-table codes
// 1-3, late-detected unreachable flow).
func NewRecoveryFailure(at addr.Address, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Severity: SeverityRecovery, Message: fmt.Sprintf(format, args...), At: at}
}

// NewDataUnavailable builds a "loader could not supply bytes" diagnostic.
func NewDataUnavailable(at addr.Address, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Severity: SeverityUnavailable, Message: fmt.Sprintf(format, args...), At: at}
}

// NewTypeConflict builds a warning-level type conflict diagnostic.
func NewTypeConflict(at addr.Address, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Severity: SeverityTypeConflict, Message: fmt.Sprintf(format, args...), At: at}
}

// NewParseError builds a fatal decode-abort diagnostic.
func NewParseError(format string, args ...interface{}) *Diagnostic {
	d := &Diagnostic{Severity: SeverityParse, Message: fmt.Sprintf(format, args...)}
	d.cause = errors.WithStack(errors.New(d.Message))
	return d
}

// Warning is a non-control-flow-affecting note attached near an address,
// or to the function prototype header when At is invalid (spec.md §7's
// warning(text, address) / warningHeader(text)).
type Warning struct {
	Text string
	At   addr.Address
}

func (w Warning) String() string {
	if w.At.Invalid() {
		return w.Text
	}
	return fmt.Sprintf("%s: %s", w.At, w.Text)
}

// Sink collects warnings for one function, in attachment order.
type Sink struct {
	warnings []Warning
}

func (s *Sink) Warning(text string, at addr.Address) {
	s.warnings = append(s.warnings, Warning{Text: text, At: at})
}

func (s *Sink) WarningHeader(text string) {
	s.warnings = append(s.warnings, Warning{Text: text})
}

func (s *Sink) Warnings() []Warning { return s.warnings }

// IterationCapExceeded formats the fatal "action group iteration cap
// exceeded" message (spec.md §5 "Cancellation"), using humanize.Comma so
// large op/iteration counts read as "12,345" rather than "12345".
func IterationCapExceeded(group string, iterations, cap int, at addr.Address) *Diagnostic {
	return NewInvariant(at, "action group %q exceeded its iteration cap (%s of %s iterations)",
		group, humanize.Comma(int64(iterations)), humanize.Comma(int64(cap)))
}

// RangeTooLarge formats a warning about an address range whose byte size
// (formatted with humanize.Bytes) exceeds an expected bound.
func RangeTooLarge(r addr.Range, at addr.Address) Warning {
	return Warning{Text: fmt.Sprintf("storage range spans %s, wider than expected", humanize.Bytes(r.Size())), At: at}
}
