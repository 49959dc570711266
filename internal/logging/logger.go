// Package logging hands out per-module slog loggers whose levels can be
// changed at runtime. Records go to stdout, to the systemd journal when it
// is reachable, and to an in-memory history that the HTTP API serves.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const historySize = 512

type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

var (
	mu          sync.RWMutex
	config      Config
	initialized bool
	loggers     = make(map[string]*slog.Logger)
	levels      = make(map[string]*slog.LevelVar)
	history     = NewHistory(historySize)
)

// Initialize applies c to every existing and future module logger. It may be
// called again when the configuration is reloaded.
func Initialize(c Config) {
	mu.Lock()
	defer mu.Unlock()

	config = c
	initialized = true
	for module, lv := range levels {
		lv.Set(moduleLevel(module))
		loggers[module] = slog.New(newHandler(c.Format, lv)).With("module", module)
	}

	global := &slog.LevelVar{}
	global.Set(ParseLevel(c.Level, slog.LevelInfo))
	slog.SetDefault(slog.New(newHandler(c.Format, global)))
}

// GetLogger returns the logger for module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mu.RLock()
	l, ok := loggers[module]
	mu.RUnlock()
	if ok {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[module]; ok {
		return l
	}
	lv := &slog.LevelVar{}
	lv.Set(moduleLevel(module))
	format := "text"
	if initialized {
		format = config.Format
	}
	l = slog.New(newHandler(format, lv)).With("module", module)
	loggers[module] = l
	levels[module] = lv
	return l
}

// SetLevel changes the level of one module logger.
func SetLevel(module string, level slog.Level) {
	GetLogger(module)
	mu.RLock()
	defer mu.RUnlock()
	levels[module].Set(level)
}

// History returns the shared in-memory log history.
func History() *HistoryBuffer {
	return history
}

// moduleLevel must be called with mu held.
func moduleLevel(module string) slog.Level {
	if !initialized {
		return slog.LevelInfo
	}
	level := ParseLevel(config.Level, slog.LevelInfo)
	if s, ok := config.Modules[module]; ok {
		level = ParseLevel(s, level)
	}
	return level
}

func newHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	handlers := []slog.Handler{NewHistoryHandler(history, level)}
	if stdoutAvailable() {
		handlers = append(handlers, stdout)
	}
	if JournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	if len(handlers) == 1 {
		return NewMultiHandler(stdout, handlers[0])
	}
	return NewMultiHandler(handlers...)
}

// stdoutAvailable is false when stdout is /dev/null or closed.
func stdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&os.ModeCharDevice != 0 || mode&os.ModeNamedPipe != 0 || mode&os.ModeSocket != 0 || mode.IsRegular()
}

// ParseLevel maps debug, info, warn and error to slog levels, falling back
// to def for anything else.
func ParseLevel(s string, def slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return def
}
