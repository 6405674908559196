package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects encoding and destination. Zero value is JSON on stderr at info.
type Options struct {
	Level    string
	Encoding string // "json" or "console"
	File     string // optional; appended to alongside stderr
}

func NewLogger(level string) (*zap.Logger, error) {
	return New(Options{Level: level})
}

func New(opts Options) (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	l, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		l = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(l)

	if opts.Encoding == "console" {
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if opts.File != "" {
		config.OutputPaths = append(config.OutputPaths, opts.File)
	}

	return config.Build()
}
