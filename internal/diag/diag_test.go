package diag

import (
	"errors"
	"strings"
	"testing"

	"github.com/decompile/core/internal/addr"
)

var codeSpace = &addr.Space{ID: 0, Name: "code", Kind: addr.SpaceCode}

func TestDiagnosticErrorFormatsWithAndWithoutAddress(t *testing.T) {
	at := addr.Address{Space: codeSpace, Offset: 0x400}
	d := NewRecoveryFailure(at, "could not resolve %d targets", 3)
	if got, want := d.Error(), "RecoveryFailure at code:0x400: could not resolve 3 targets"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	header := NewParseError("unexpected end of stream")
	if got, want := header.Error(), "ParseError: unexpected end of stream"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNewInvariantAndParseErrorCaptureAStack(t *testing.T) {
	d := NewInvariant(addr.Address{Space: codeSpace, Offset: 0x10}, "block graph is cyclic")
	if d.Unwrap() == nil {
		t.Fatalf("expected NewInvariant to wrap a cause with a captured stack")
	}
	if !errors.Is(d, d) {
		t.Errorf("expected a Diagnostic to satisfy errors.Is against itself")
	}

	p := NewParseError("bad opcode byte")
	if p.Unwrap() == nil {
		t.Fatalf("expected NewParseError to wrap a cause")
	}
}

func TestNonFatalConstructorsLeaveCauseNil(t *testing.T) {
	at := addr.Address{Space: codeSpace, Offset: 0x20}
	if d := NewDataUnavailable(at, "loader returned no bytes"); d.Unwrap() != nil {
		t.Errorf("expected NewDataUnavailable to leave cause nil")
	}
	if d := NewTypeConflict(at, "union field mismatch"); d.Unwrap() != nil {
		t.Errorf("expected NewTypeConflict to leave cause nil")
	}
	if d := NewRecoveryFailure(at, "x"); d.Unwrap() != nil {
		t.Errorf("expected NewRecoveryFailure to leave cause nil")
	}
}

func TestSeverityConstants(t *testing.T) {
	at := addr.Address{Space: codeSpace, Offset: 0}
	cases := []struct {
		d    *Diagnostic
		want Severity
	}{
		{NewInvariant(at, "x"), SeverityInvariant},
		{NewRecoveryFailure(at, "x"), SeverityRecovery},
		{NewDataUnavailable(at, "x"), SeverityUnavailable},
		{NewTypeConflict(at, "x"), SeverityTypeConflict},
		{NewParseError("x"), SeverityParse},
	}
	for _, c := range cases {
		if c.d.Severity != c.want {
			t.Errorf("got severity %v, want %v", c.d.Severity, c.want)
		}
	}
}

func TestWarningStringFormatsWithAndWithoutAddress(t *testing.T) {
	at := addr.Address{Space: codeSpace, Offset: 0x400}
	w := Warning{Text: "unreachable code eliminated", At: at}
	if got, want := w.String(), "code:0x400: unreachable code eliminated"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	header := Warning{Text: "prototype inferred from calling convention"}
	if got, want := header.String(), "prototype inferred from calling convention"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSinkCollectsInAttachmentOrder(t *testing.T) {
	var s Sink
	at := addr.Address{Space: codeSpace, Offset: 0x100}
	s.WarningHeader("header note")
	s.Warning("body note", at)

	got := s.Warnings()
	if len(got) != 2 {
		t.Fatalf("got %d warnings, want 2", len(got))
	}
	if got[0].Text != "header note" || !got[0].At.Invalid() {
		t.Errorf("got %+v, want a header-style warning first", got[0])
	}
	if got[1].Text != "body note" || got[1].At != at {
		t.Errorf("got %+v, want the address-attached warning second", got[1])
	}
}

func TestIterationCapExceededFormatsCounts(t *testing.T) {
	at := addr.Address{Space: codeSpace, Offset: 0x100}
	d := IterationCapExceeded("simplify", 2001, 2000, at)
	if d.Severity != SeverityInvariant {
		t.Errorf("expected the iteration cap error to be fatal (SeverityInvariant)")
	}
	if !strings.Contains(d.Message, "2,001") || !strings.Contains(d.Message, "2,000") {
		t.Errorf("got message %q, want comma-grouped counts", d.Message)
	}
}

func TestRangeTooLargeFormatsBytes(t *testing.T) {
	r := addr.Range{
		First: addr.Address{Space: codeSpace, Offset: 0},
		Last:  addr.Address{Space: codeSpace, Offset: 1<<20 - 1},
	}
	w := RangeTooLarge(r, addr.Address{Space: codeSpace, Offset: 0})
	if !strings.Contains(w.Text, "MB") {
		t.Errorf("got %q, want a human-readable MB size", w.Text)
	}
}
