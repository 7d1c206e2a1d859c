// Package logging builds the logr.Logger the rest of the operator logs
// through, backed by zap, with klog (used internally by client-go)
// redirected into the same sink so a single log stream covers both.
package logging

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"k8s.io/klog/v2"

	"github.com/stackhpc/perftest-operator/pkg/config"
)

// New builds a logr.Logger from the given settings and points klog at it,
// so that log lines client-go emits through klog land in the same stream.
func New(cfg config.LoggingSettings) (logr.Logger, error) {
	level, err := zapcore.ParseLevel(orDefault(cfg.Level, "info"))
	if err != nil {
		return logr.Logger{}, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	if cfg.Production {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if cfg.Encoding != "" {
		zapCfg.Encoding = cfg.Encoding
	}

	zl, err := zapCfg.Build()
	if err != nil {
		return logr.Logger{}, fmt.Errorf("building zap logger: %w", err)
	}

	log := zapr.NewLogger(zl)
	klog.SetLogger(log)
	return log, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
