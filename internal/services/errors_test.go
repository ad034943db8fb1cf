package services_test

import (
	"errors"
	"testing"

	"fetchd/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExtraction, "libclient", "extract", "unsupported url", base)
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatal("expected extraction marker in chain")
	}
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped cause in chain")
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "procexec", "run", "", nil)
	if !errors.Is(err, services.ErrProcess) {
		t.Fatal("nil marker should default to process error")
	}
}

func TestFallbackEligible(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		eligible bool
	}{
		{"extraction", services.Wrap(services.ErrExtraction, "libclient", "download", "", nil), true},
		{"timeout", services.Wrap(services.ErrTimeout, "strategy", "library attempt", "", nil), true},
		{"process", services.Wrap(services.ErrProcess, "procexec", "run", "", nil), false},
		{"cancelled", services.Wrap(services.ErrCancelled, "libclient", "download", "", nil), false},
		{"configuration", services.Wrap(services.ErrConfiguration, "configmerge", "validate", "", nil), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		if got := services.FallbackEligible(tc.err); got != tc.eligible {
			t.Errorf("%s: FallbackEligible = %v, want %v", tc.name, got, tc.eligible)
		}
	}
}

func TestUserMessageStripsMarker(t *testing.T) {
	err := services.Wrap(services.ErrProcess, "procexec", "run", "exit status 1", nil)
	got := services.UserMessage(err)
	if got != "procexec: run: exit status 1" {
		t.Fatalf("unexpected user message %q", got)
	}
	if services.UserMessage(nil) != "" {
		t.Fatal("nil error should produce empty message")
	}
}
