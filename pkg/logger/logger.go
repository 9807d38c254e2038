package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Log struct {
	LogLevel zapcore.Level `yaml:"level" envconfig:"LOG_LEVEL"`
	Sink     string        `yaml:"sink" envconfig:"LOG_SINK"`
}

// NewLogger builds a json zap logger named after the component.
// Empty Sink writes to stdout. An unusable Sink also falls back to
// stdout and the failure is logged there once.
func NewLogger(cfg Log, name string) *zap.Logger {
	return newLogger(cfg, name, zapcore.AddSync(os.Stdout))
}

func newLogger(cfg Log, name string, fallback zapcore.WriteSyncer) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	sink := fallback
	var sinkErr error
	if cfg.Sink != "" {
		f, err := os.OpenFile(cfg.Sink, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			sinkErr = err
		} else {
			sink = zapcore.AddSync(f)
		}
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, zap.NewAtomicLevelAt(cfg.LogLevel))
	log := zap.New(core, zap.AddCaller()).Named(name)
	if sinkErr != nil {
		log.Warn("log sink unavailable, writing to stdout", zap.String("sink", cfg.Sink), zap.Error(sinkErr))
	}
	return log
}
