// Package logging builds the zap logger shared by every component.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON production logger, or a console logger at debug level
// when env is "development".
func New(env string) (*zap.Logger, error) {
	if strings.EqualFold(env, "development") {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// ChatID is the field every chat-scoped log line carries.
func ChatID(id int64) zap.Field {
	return zap.Int64("chat_id", id)
}

// RequestID is the field every request-scoped log line carries.
func RequestID(id int64) zap.Field {
	return zap.Int64("request_id", id)
}
