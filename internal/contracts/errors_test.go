package contracts

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"data unavailable", DataUnavailable("momentum", "AAPL", ErrNotAvailable), false},
		{"timeout", TimeoutExceeded("momentum", context.DeadlineExceeded), false},
		{"configuration", ConfigurationError("strategy.yaml", errors.New("bad caps")), true},
		{"invariant", InvariantViolation("structural", "AAPL", errors.New("score 120")), true},
		{"wrapped invariant", fmt.Errorf("scan failed: %w", InvariantViolation("x", "", errors.New("boom"))), true},
		{"deadline", context.DeadlineExceeded, false},
		{"unclassified", errors.New("db down"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.want {
				t.Errorf("IsFatal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPipelineError_UnwrapAndRecord(t *testing.T) {
	err := DataUnavailable("structural", "TSLA", ErrNotAvailable)

	if !errors.Is(err, ErrNotAvailable) {
		t.Error("errors.Is(ErrNotAvailable) = false")
	}

	rec := err.Record()
	if rec.Kind != KindDataUnavailable || rec.InstrumentID != "TSLA" || rec.Source != "structural" {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestFeatureVector_Validate(t *testing.T) {
	fv := &FeatureVector{InstrumentID: "AAPL", Close: 10, Volume: 100}
	if err := fv.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	fv.Close = 0
	if err := fv.Validate(); !errors.Is(err, ErrMalformedFeatures) {
		t.Errorf("expected ErrMalformedFeatures, got %v", err)
	}

	for _, name := range FeatureNames() {
		if _, ok := fv.Lookup(name); !ok {
			t.Errorf("Lookup(%s) not found", name)
		}
	}
	if _, ok := fv.Lookup("rsi"); ok {
		t.Error("Lookup(rsi) should be unknown")
	}
}
