package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestWithDetailsMatchesSentinel(t *testing.T) {
	err := WithDetails(ErrCardinalityExceeded, map[string]any{"position": "President"})
	if !errors.Is(err, ErrCardinalityExceeded) {
		t.Fatal("expected detailed error to match its sentinel")
	}
	if errors.Is(err, ErrInstituteMismatch) {
		t.Fatal("expected detailed error not to match an unrelated sentinel")
	}
	var domainErr *Error
	if !errors.As(fmt.Errorf("submit: %w", err), &domainErr) {
		t.Fatal("expected wrapped error to unwrap to *Error")
	}
	if domainErr.Details()["position"] != "President" {
		t.Fatalf("expected details to survive wrapping, got %v", domainErr.Details())
	}
	if ErrCardinalityExceeded.Details() != nil {
		t.Fatal("expected sentinel to stay free of details")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "validation", err: ErrWindowClosed, want: KindValidation},
		{name: "conflict wrapped", err: fmt.Errorf("x: %w", ErrBallotAlreadyCast), want: KindConflict},
		{name: "fatal", err: ErrArchiveIncomplete, want: KindFatal},
		{name: "deadline", err: context.DeadlineExceeded, want: KindTransient},
		{name: "unavailable", err: Unavailable(errors.New("connection refused")), want: KindTransient},
		{name: "unknown", err: errors.New("boom"), want: KindUnknown},
		{name: "nil", err: nil, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestUnavailableKeepsDomainErrorsAndCause(t *testing.T) {
	if got := Unavailable(ErrSlotTaken); !errors.Is(got, ErrSlotTaken) {
		t.Fatalf("expected domain error to pass through, got %v", got)
	}
	timeout := Unavailable(context.DeadlineExceeded)
	if !errors.Is(timeout, ErrTimeout) || !errors.Is(timeout, context.DeadlineExceeded) {
		t.Fatalf("expected timeout classification with cause preserved, got %v", timeout)
	}
	if Unavailable(nil) != nil {
		t.Fatal("expected nil to stay nil")
	}
}
