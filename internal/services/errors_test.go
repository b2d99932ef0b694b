package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"ukbqsm/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "register-mag", "antsRegistrationSyNQuick.sh", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"register-mag", "antsRegistrationSyNQuick.sh", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestErrorKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrValidation, "check-inputs", "stat", "missing T1", nil), "validation"},
		{services.Wrap(services.ErrConfiguration, "config", "", "bad", nil), "configuration"},
		{services.Wrap(services.ErrNotFound, "ledger", "", "", nil), "not_found"},
		{services.Wrap(services.ErrExternalTool, "regions", "fslstats", "", errors.New("exit 1")), "external_tool"},
		{fmt.Errorf("wrapped: %w", context.Canceled), "internal"},
	}
	for _, tc := range cases {
		if got := services.ErrorKind(tc.err); got != tc.want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
