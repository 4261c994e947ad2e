package host

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
)

// LogHandler is a slog.Handler that writes records to the engine log. The
// category is the level name, the content is the message followed by
// key=value attributes.
type LogHandler struct {
	engine   Engine
	authCode int32
	codec    Codec
	level    slog.Leveler
	prefix   string
	attrs    []string
}

// NewLogHandler creates a handler logging at level and above
func NewLogHandler(engine Engine, authCode int32, codec Codec, level slog.Leveler) *LogHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &LogHandler{engine: engine, authCode: authCode, codec: codec, level: level}
}

// Enabled implements slog.Handler
func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler
func (h *LogHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		b.WriteByte(' ')
		b.WriteString(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&b, h.prefix, a)
		return true
	})

	priority, category := logLevel(r.Level)
	nativeCategory, err := h.codec.Encode(category)
	if err != nil {
		return err
	}
	content, err := h.codec.Encode(b.String())
	if err != nil {
		return err
	}
	return h.engine.AddLog(h.authCode, priority, nativeCategory, content)
}

// WithAttrs implements slog.Handler
func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = append([]string(nil), h.attrs...)
	for _, a := range attrs {
		var b strings.Builder
		appendAttr(&b, h.prefix, a)
		if b.Len() > 0 {
			h2.attrs = append(h2.attrs, b.String()[1:])
		}
	}
	return &h2
}

// WithGroup implements slog.Handler
func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}

func appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(b, p, ga)
		}
		return
	}

	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	s := a.Value.String()
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		s = strconv.Quote(s)
	}
	b.WriteString(s)
}

func logLevel(level slog.Level) (LogPriority, string) {
	switch {
	case level >= slog.LevelError:
		return LogError, "ERROR"
	case level >= slog.LevelWarn:
		return LogWarning, "WARNING"
	case level >= slog.LevelInfo:
		return LogInfo, "INFO"
	default:
		return LogDebug, "DEBUG"
	}
}
