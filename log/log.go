// Package log builds the zap loggers used by node components.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Encoder kinds accepted by New.
const (
	ConsoleEncoder = "console"
	JSONEncoder    = "json"
)

// where logs go by default.
var logWriter io.Writer = os.Stdout

// NewEncoder returns the zap encoder for kind.
func NewEncoder(kind string) (zapcore.Encoder, error) {
	switch strings.ToLower(kind) {
	case "", ConsoleEncoder:
		return zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), nil
	case JSONEncoder:
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), nil
	}
	return nil, fmt.Errorf("unknown log encoder %q", kind)
}

// NewWithLevel creates a named logger writing to stdout with a fixed level and optional hooks.
func NewWithLevel(module string, level zap.AtomicLevel, encoder zapcore.Encoder, hooks ...func(zapcore.Entry) error) *zap.Logger {
	return newWithWriter(logWriter, module, level, encoder, hooks...)
}

func newWithWriter(w io.Writer, module string, level zap.AtomicLevel, encoder zapcore.Encoder, hooks ...func(zapcore.Entry) error) *zap.Logger {
	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level)
	return zap.New(zapcore.RegisterHooks(core, hooks...)).Named(module)
}

// Modules hands out per-module loggers derived from one root logger.
// Each module gets its own level; modules without an explicit level use the default.
type Modules struct {
	root     *zap.Logger
	fallback zap.AtomicLevel
	levels   map[string]string
}

// NewModules creates module loggers on top of root.
// levels maps a module name to a level name such as "debug" or "warn".
func NewModules(root *zap.Logger, fallback zapcore.Level, levels map[string]string) *Modules {
	return &Modules{
		root:     root,
		fallback: zap.NewAtomicLevelAt(fallback),
		levels:   levels,
	}
}

// Get returns the logger for module. Invalid level names fall back to the default level.
func (m *Modules) Get(module string) *zap.Logger {
	lvl := m.fallback
	if name, ok := m.levels[module]; ok && name != "" {
		parsed, err := zap.ParseAtomicLevel(name)
		if err != nil {
			m.root.Warn("invalid log level", zap.String("module", module), zap.String("level", name), zap.Error(err))
		} else {
			lvl = parsed
		}
	}
	return m.root.Named(module).WithOptions(withDynamicLevel(lvl))
}
