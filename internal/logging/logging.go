// Package logging builds the service's zap logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvDevelopment selects the human-readable console logger
const EnvDevelopment = "development"

// New returns a JSON production logger, or a colored console logger when env
// is EnvDevelopment.
func New(env string) (*zap.Logger, error) {
	if env == EnvDevelopment {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
