// Package logging builds the zap logger shared by the binaries.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"schoolreport/internal/config"
)

// New returns a production JSON logger for prod environments and a
// human-readable development logger otherwise. Config warnings collected
// before the logger existed are flushed through it.
func New(cfg config.App, name string) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	logger = logger.Named(name).With(zap.String("env", cfg.Env))
	for _, w := range cfg.Warnings {
		logger.Warn("config fallback", zap.String("detail", w))
	}
	return logger, nil
}
