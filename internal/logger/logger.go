// Package logger builds the zap loggers used across gotsd.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field names shared by every component.
const (
	FieldPath      = "path"
	FieldNamespace = "namespace"
	FieldType      = "type"
	FieldMember    = "member"
	FieldCount     = "count"
	FieldProvider  = "provider"
	FieldVersion   = "version"
	FieldURL       = "url"
)

// New returns a logger writing to stderr so rendered declarations on stdout
// stay clean. verbosity 0 logs warnings, 1 info, 2 and above debug.
func New(verbosity int, jsonOutput bool) (*zap.SugaredLogger, error) {
	level := zap.WarnLevel
	switch {
	case verbosity >= 2:
		level = zap.DebugLevel
	case verbosity == 1:
		level = zap.InfoLevel
	}

	if jsonOutput {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		config.OutputPaths = []string{"stderr"}
		zapLogger, err := config.Build()
		if err != nil {
			return nil, err
		}
		return zapLogger.Sugar(), nil
	}

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		NameKey:        "logger",
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		level,
	)
	return zap.New(core).Sugar(), nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
