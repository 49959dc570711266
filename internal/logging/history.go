package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

type Entry struct {
	Time       time.Time      `json:"time"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// HistoryBuffer keeps the most recent log entries.
type HistoryBuffer struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	count   int
}

func NewHistory(size int) *HistoryBuffer {
	return &HistoryBuffer{entries: make([]Entry, size)}
}

func (b *HistoryBuffer) Write(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.head] = e
	b.head = (b.head + 1) % len(b.entries)
	if b.count < len(b.entries) {
		b.count++
	}
}

// Entries returns the entries oldest first.
func (b *HistoryBuffer) Entries() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Entry, 0, b.count)
	start := (b.head - b.count + len(b.entries)) % len(b.entries)
	for i := 0; i < b.count; i++ {
		out = append(out, b.entries[(start+i)%len(b.entries)])
	}
	return out
}

// HistoryHandler is a slog.Handler writing into a HistoryBuffer.
type HistoryHandler struct {
	buffer *HistoryBuffer
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

func NewHistoryHandler(buffer *HistoryBuffer, level slog.Leveler) *HistoryHandler {
	return &HistoryHandler{buffer: buffer, level: level}
}

func (h *HistoryHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *HistoryHandler) Handle(_ context.Context, r slog.Record) error {
	e := Entry{
		Time:       r.Time,
		Level:      strings.ToLower(r.Level.String()),
		Module:     "app",
		Message:    r.Message,
		Attributes: make(map[string]any),
	}
	add := func(a slog.Attr) bool {
		if a.Key == "module" {
			e.Module = a.Value.String()
		} else {
			flatten(e.Attributes, h.groups, a)
		}
		return true
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(add)
	h.buffer.Write(e)
	return nil
}

func flatten(dst map[string]any, groups []string, a slog.Attr) {
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		for _, ga := range v.Group() {
			flatten(dst, append(groups[:len(groups):len(groups)], a.Key), ga)
		}
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			dst[key] = err.Error()
		} else {
			dst[key] = v.Any()
		}
	default:
		dst[key] = v.Any()
	}
}

func (h *HistoryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &HistoryHandler{
		buffer: h.buffer,
		level:  h.level,
		attrs:  append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...),
		groups: h.groups,
	}
}

func (h *HistoryHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &HistoryHandler{
		buffer: h.buffer,
		level:  h.level,
		attrs:  h.attrs,
		groups: append(h.groups[:len(h.groups):len(h.groups)], name),
	}
}
