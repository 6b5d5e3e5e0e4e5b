package observability

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestSanitizeUserIDStripsControlCharacters(t *testing.T) {
	got := SanitizeUserID("user\x00-1\x1b" + strings.Repeat("x", 80))
	if strings.ContainsAny(got, "\x00\x1b") {
		t.Fatalf("expected control characters removed, got %q", got)
	}
	if len([]rune(got)) != 64 {
		t.Fatalf("expected id truncated to 64 runes, got %d", len([]rune(got)))
	}
}

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"asha@example.com": "a***@example.com",
		"not-an-email":     "***",
		" b@jaya.farm ":    "b***@jaya.farm",
	}
	for input, want := range cases {
		if got := MaskEmail(input); got != want {
			t.Errorf("MaskEmail(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	logger, err := NewLogger("chatty")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !logger.Core().Enabled(zap.InfoLevel) {
		t.Fatalf("expected info enabled by default")
	}
	if logger.Core().Enabled(zap.DebugLevel) {
		t.Fatalf("expected debug disabled by default")
	}
}

func TestNewLoggerHonoursEnvironment(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	logger, err := NewLogger("debug")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger.Core().Enabled(zap.WarnLevel) {
		t.Fatalf("expected LOG_LEVEL to win over the requested level")
	}
}

func TestStartSpanWithNoopProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test", "op")
	if ctx == nil || span == nil {
		t.Fatalf("expected span and context")
	}
	EndSpan(span, errors.New("boom"))
}
