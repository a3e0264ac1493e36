package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/modhost/engine"
	"github.com/wippyai/modhost/host"
	"github.com/wippyai/modhost/linker"
	"github.com/wippyai/modhost/loader"
	"github.com/wippyai/modhost/manifest"
	"github.com/wippyai/modhost/moddata"
	"github.com/wippyai/modhost/resolver"
	"github.com/wippyai/modhost/rewrite"
)

// newLogger builds the process logger. The terminal UI owns the screen, so
// it only gets errors.
func newLogger(level zapcore.Level, verbose, interactive bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		level = zapcore.DebugLevel
	}
	if interactive {
		level = zapcore.ErrorLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func installLogger(l *zap.Logger) {
	manifest.SetLogger(l.Named("manifest"))
	moddata.SetLogger(l.Named("moddata"))
	resolver.SetLogger(l.Named("resolver"))
	engine.SetLogger(l.Named("engine"))
	linker.SetLogger(l.Named("linker"))
	rewrite.SetLogger(l.Named("rewrite"))
	loader.SetLogger(l.Named("loader"))
	host.SetLogger(l.Named("host"))
}
