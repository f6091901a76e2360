// Package logging builds the zap logger used across the pipeline,
// mirroring the level/format switch in the teacher's cmd/server/main.go.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/baras-app/baras/internal/config"
	"github.com/baras-app/baras/internal/errs"
)

// New builds a *zap.Logger from a LoggingConfig: JSON encoding in
// production, a colorized development encoder otherwise.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// LogBarasError writes a *errs.BarasError as a structured record carrying
// its kind and every contextual field, per §7's "structured log record
// with a kind, a human message, and contextual fields."
func LogBarasError(logger *zap.Logger, err *errs.BarasError) {
	if logger == nil || err == nil {
		return
	}
	fields := make([]zap.Field, 0, len(err.Fields)+2)
	fields = append(fields, zap.String("kind", string(err.Kind)))
	if err.Cause != nil {
		fields = append(fields, zap.Error(err.Cause))
	}
	for k, v := range err.Fields {
		fields = append(fields, zap.Any(k, v))
	}

	switch err.Kind {
	case errs.KindStateInvariant, errs.KindInternalBug, errs.KindWriter:
		logger.Error(err.Message, fields...)
	case errs.KindDefinition, errs.KindReader:
		logger.Warn(err.Message, fields...)
	default:
		logger.Debug(err.Message, fields...)
	}
}
