// Package logging builds the run's zap logger from a level and format name.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a supported logging granularity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format is a supported output encoding.
type Format string

const (
	FormatConsole    Format = "console"
	FormatStructured Format = "structured"
)

var levels = map[Level]zapcore.Level{
	LevelDebug: zapcore.DebugLevel,
	LevelInfo:  zapcore.InfoLevel,
	LevelWarn:  zapcore.WarnLevel,
	LevelError: zapcore.ErrorLevel,
}

// Factory builds loggers writing to one destination.
type Factory struct {
	out io.Writer
}

// NewFactory returns a factory writing to out, or stderr when out is nil.
func NewFactory(out io.Writer) *Factory {
	if out == nil {
		out = os.Stderr
	}
	return &Factory{out: out}
}

// Build returns a logger for level and format.
func (f *Factory) Build(level Level, format Format) (*zap.Logger, error) {
	lvl, ok := levels[Level(strings.ToLower(string(level)))]
	if !ok {
		return nil, fmt.Errorf("unsupported log level: %s", level)
	}
	var enc zapcore.Encoder
	switch Format(strings.ToLower(string(format))) {
	case FormatStructured:
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	case FormatConsole:
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		enc = zapcore.NewConsoleEncoder(cfg)
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(f.out), zap.NewAtomicLevelAt(lvl))
	return zap.New(core), nil
}
