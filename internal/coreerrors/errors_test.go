package coreerrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestCoreErrorIsMatchesOnKind(t *testing.T) {
	a := New(KindRisk, "order rejected")
	b := New(KindRisk, "a different reason entirely")
	c := New(KindState, "wrong kind")

	if !errors.Is(a, b) {
		t.Fatalf("errors.Is(a, b) = false, want true: same Kind should match regardless of Reason")
	}
	if errors.Is(a, c) {
		t.Fatalf("errors.Is(a, c) = true, want false: different Kind must not match")
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := Wrap(KindUpstream, "oracle fetch failed", cause)

	if !errors.Is(wrapped, cause) {
		t.Fatalf("errors.Is(wrapped, cause) = false, want true")
	}
	if got := wrapped.Error(); got == "" {
		t.Fatalf("Error() returned empty string")
	}
}

func TestErrorStringsDiffer(t *testing.T) {
	withCause := Wrap(KindTimeout, "scan timed out", errors.New("deadline exceeded"))
	withoutCause := New(KindTimeout, "scan timed out")

	if withCause.Error() == withoutCause.Error() {
		t.Fatalf("Error() should include the cause when one is present")
	}
}

func TestSentinelErrorsAreCoreErrors(t *testing.T) {
	var ce *CoreError
	if !errors.As(ErrInsufficientCapital, &ce) {
		t.Fatalf("ErrInsufficientCapital is not a *CoreError")
	}
	if ce.Kind != KindState {
		t.Fatalf("ErrInsufficientCapital.Kind = %v, want %v", ce.Kind, KindState)
	}
}

func TestErrorsAsExtractsKind(t *testing.T) {
	err := fmt.Errorf("placing order: %w", New(KindRisk, "quantity too large"))
	var ce *CoreError
	if !errors.As(err, &ce) {
		t.Fatalf("errors.As failed to extract *CoreError through fmt.Errorf wrapping")
	}
	if ce.Kind != KindRisk {
		t.Fatalf("extracted Kind = %v, want %v", ce.Kind, KindRisk)
	}
}
