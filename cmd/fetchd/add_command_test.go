package main

import (
	"reflect"
	"testing"
)

func TestParseOptionPairs(t *testing.T) {
	options, err := parseOptionPairs([]string{"format=best", "write-subs=true", "retries=3"})
	if err != nil {
		t.Fatalf("parseOptionPairs failed: %v", err)
	}
	want := map[string]any{
		"format":     "best",
		"write-subs": true,
		"retries":    "3",
	}
	if !reflect.DeepEqual(options, want) {
		t.Fatalf("options = %#v, want %#v", options, want)
	}
}

func TestParseOptionPairsRejectsMalformed(t *testing.T) {
	for _, pair := range []string{"no-equals", "=value", "  =x"} {
		if _, err := parseOptionPairs([]string{pair}); err == nil {
			t.Errorf("expected error for %q", pair)
		}
	}
}

func TestParseOptionPairsEmpty(t *testing.T) {
	options, err := parseOptionPairs(nil)
	if err != nil {
		t.Fatalf("parseOptionPairs failed: %v", err)
	}
	if options != nil {
		t.Fatalf("expected nil options, got %#v", options)
	}
}
