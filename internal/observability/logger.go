package observability

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every log line.
const ServiceName = "our-story"

// NewLogger builds the production JSON logger. LOG_LEVEL selects the level (default INFO).
func NewLogger() (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Level = parseLogLevel(os.Getenv("LOG_LEVEL"))
	config.InitialFields = map[string]interface{}{"service": ServiceName}

	return config.Build()
}

func parseLogLevel(s string) zap.AtomicLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "WARN":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "ERROR":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}
