package observability

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvLogLevel overrides the level chosen by the caller.
const EnvLogLevel = "LOG_LEVEL"

var nop = zap.NewNop()

// NewLogger returns a JSON logger on stderr, leaving stdout to command output.
// The level comes from LOG_LEVEL, then level, then info.
func NewLogger(level string) (*zap.Logger, error) {
	atom := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	for _, candidate := range []string{os.Getenv(EnvLogLevel), level} {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate == "" {
			continue
		}
		if err := atom.UnmarshalText([]byte(candidate)); err == nil {
			break
		}
	}

	enc := zap.NewProductionEncoderConfig()
	enc.MessageKey = "message"
	enc.TimeKey = "timestamp"
	enc.LevelKey = "severity"
	enc.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder

	return zap.Config{
		Level:             atom,
		Encoding:          "json",
		EncoderConfig:     enc,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}.Build()
}

// OrNop returns logger, or a no-op logger when nil.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return nop
	}
	return logger
}
