package config

import (
	"go.uber.org/zap/zapcore"

	"github.com/meshsync/go-meshsync/log"
)

// LogEncoder defines a log encoder kind.
type LogEncoder = string

const (
	defaultLoggingLevel = zapcore.InfoLevel
	// ConsoleLogEncoder represents logging with plain text.
	ConsoleLogEncoder LogEncoder = log.ConsoleEncoder
	// JSONLogEncoder represents logging with JSON.
	JSONLogEncoder LogEncoder = log.JSONEncoder
)

// Logger names.
const (
	AppLogger       = "app"
	NodeLogger      = "node"
	TransportLogger = "transport"
	MetricsLogger   = "metrics"
	SimLogger       = "sim"
)

// LoggerConfig holds the logging level for each module.
type LoggerConfig struct {
	Encoder              LogEncoder `mapstructure:"log-encoder"`
	AppLoggerLevel       string     `mapstructure:"app"`
	NodeLoggerLevel      string     `mapstructure:"node"`
	TransportLoggerLevel string     `mapstructure:"transport"`
	MetricsLoggerLevel   string     `mapstructure:"metrics"`
	SimLoggerLevel       string     `mapstructure:"sim"`
}

func defaultLoggingConfig() LoggerConfig {
	return LoggerConfig{
		Encoder:              ConsoleLogEncoder,
		AppLoggerLevel:       defaultLoggingLevel.String(),
		NodeLoggerLevel:      defaultLoggingLevel.String(),
		TransportLoggerLevel: zapcore.WarnLevel.String(),
		MetricsLoggerLevel:   zapcore.WarnLevel.String(),
		SimLoggerLevel:       defaultLoggingLevel.String(),
	}
}

// Levels maps logger names to configured level names.
func (c LoggerConfig) Levels() map[string]string {
	return map[string]string{
		AppLogger:       c.AppLoggerLevel,
		NodeLogger:      c.NodeLoggerLevel,
		TransportLogger: c.TransportLoggerLevel,
		MetricsLogger:   c.MetricsLoggerLevel,
		SimLogger:       c.SimLoggerLevel,
	}
}
