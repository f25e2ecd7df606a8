package app

import (
	"strings"

	"github.com/bloodbridge/bloodbridge/pkg/logger"
)

// ConfigureLogging initialises the global logger from the server level and log section.
func ConfigureLogging(level string, cfg LogConfig) error {
	level = strings.TrimSpace(level)
	if level == "" {
		level = "info"
	}
	return logger.Init(logger.Options{
		Level:      level,
		Encoding:   cfg.Encoding,
		File:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   cfg.Compress,
		Stdout:     cfg.Stdout,
	})
}
