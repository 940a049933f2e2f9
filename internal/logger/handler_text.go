package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
	ansiBold   = "\033[1m"
)

const textTimeLayout = "2006-01-02 15:04:05.000"

// ColorTextHandler writes one console line per record:
//
//	2006-01-02 15:04:05.000 INFO  [enable] message key=value ...
//
// A top-level phase attribute is lifted into the bracketed tag so that
// lifecycle lines line up. Groups become dotted key prefixes.
type ColorTextHandler struct {
	level    slog.Leveler
	w        io.Writer
	mu       *sync.Mutex
	phase    string
	bound    []byte
	prefix   string
	useColor bool
}

var textBufPool = sync.Pool{New: func() any {
	b := make([]byte, 0, 256)
	return &b
}}

// NewColorTextHandler creates a text handler writing to w.
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, useColor bool) *ColorTextHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &ColorTextHandler{level: level, w: w, mu: &sync.Mutex{}, useColor: useColor}
}

func (h *ColorTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ColorTextHandler) Handle(_ context.Context, r slog.Record) error {
	bp := textBufPool.Get().(*[]byte)
	buf := (*bp)[:0]
	defer func() {
		*bp = buf
		textBufPool.Put(bp)
	}()

	phase := h.phase
	var attrs []byte
	r.Attrs(func(a slog.Attr) bool {
		if h.prefix == "" && a.Key == KeyPhase {
			phase = a.Value.Resolve().String()
			return true
		}
		attrs = h.appendAttr(attrs, h.prefix, a)
		return true
	})

	buf = r.Time.AppendFormat(buf, textTimeLayout)
	buf = append(buf, ' ')
	buf = h.appendLevel(buf, r.Level)
	if phase != "" {
		buf = append(buf, " ["...)
		buf = append(buf, phase...)
		buf = append(buf, ']')
	}
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)
	buf = append(buf, h.bound...)
	buf = append(buf, attrs...)
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func (h *ColorTextHandler) appendLevel(buf []byte, level slog.Level) []byte {
	name, color := "ERROR", ansiRed
	switch {
	case level < slog.LevelInfo:
		name, color = "DEBUG", ansiGray
	case level < slog.LevelWarn:
		name, color = "INFO ", ansiGreen
	case level < slog.LevelError:
		name, color = "WARN ", ansiYellow
	}
	if !h.useColor {
		return append(buf, name...)
	}
	if level >= slog.LevelError {
		color = ansiBold + color
	}
	buf = append(buf, color...)
	buf = append(buf, name...)
	return append(buf, ansiReset...)
}

func (h *ColorTextHandler) appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			buf = h.appendAttr(buf, p, ga)
		}
		return buf
	}

	buf = append(buf, ' ')
	if h.useColor {
		buf = append(buf, ansiCyan...)
	}
	buf = append(buf, prefix...)
	buf = append(buf, a.Key...)
	if h.useColor {
		buf = append(buf, ansiReset...)
	}
	buf = append(buf, '=')
	return appendTextValue(buf, a.Value)
}

func appendTextValue(buf []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(buf, v.Float64(), 'f', 3, 64)
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindTime:
		return v.Time().AppendFormat(buf, time.RFC3339)
	}

	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindDuration:
		s = v.Duration().String()
	default:
		s = fmt.Sprint(v.Any())
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}

func (h *ColorTextHandler) clone() *ColorTextHandler {
	c := *h
	c.bound = append([]byte(nil), h.bound...)
	return &c
}

func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		if h.prefix == "" && a.Key == KeyPhase {
			c.phase = a.Value.Resolve().String()
			continue
		}
		c.bound = h.appendAttr(c.bound, h.prefix, a)
	}
	return c
}

func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.prefix = h.prefix + name + "."
	return c
}
