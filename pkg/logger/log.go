package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eqtlab/whale-tracker/pkg/logger/output"
)

// recentLimit is how many log lines are attached to diagnostics.
const recentLimit = 20

type Logger struct {
	*zap.Logger
	recent *output.Ring
}

func New(debug bool) *Logger {
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.ISO8601TimeEncoder

	recent := output.NewRing(recentLimit)

	consoleEncoder := zapcore.NewConsoleEncoder(config)
	defaultEncoder := consoleEncoder

	defaultLogLevel := zapcore.DebugLevel

	if !debug {
		defaultLogLevel = zapcore.InfoLevel
		defaultEncoder = zapcore.NewJSONEncoder(config)
	}

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(recent), zapcore.InfoLevel),
		zapcore.NewCore(defaultEncoder, zapcore.AddSync(os.Stdout), defaultLogLevel),
	)

	return &Logger{
		Logger: zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)),
		recent: recent,
	}
}

// NewNop returns a logger that writes nowhere but still remembers recent lines.
func NewNop() *Logger {
	recent := output.NewRing(recentLimit)
	config := zap.NewProductionEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(config), zapcore.AddSync(recent), zapcore.InfoLevel)
	return &Logger{Logger: zap.New(core), recent: recent}
}

// Recent returns the latest info and above lines, oldest first.
func (l *Logger) Recent() []string {
	return l.recent.Lines()
}
