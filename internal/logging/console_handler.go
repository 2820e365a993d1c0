package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleOutput is shared by every handler derived from one logger.
type consoleOutput struct {
	mu sync.Mutex
	w  io.Writer
}

// prettyHandler writes a header line per record followed by indented
// "- key: value" lines. Component, run id, and stage move into the header.
type prettyHandler struct {
	out       *consoleOutput
	level     slog.Leveler
	addSource bool
	prefix    string // dotted group path
	fields    []field
}

type field struct {
	key   string
	value slog.Value
}

func newPrettyHandler(w io.Writer, level slog.Leveler, addSource bool) slog.Handler {
	return &prettyHandler{out: &consoleOutput{w: w}, level: level, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.fields = slices.Clone(h.fields)
	for _, attr := range attrs {
		next.fields = appendField(next.fields, h.prefix, attr)
	}
	return &next
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = joinKey(h.prefix, name)
	return &next
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	fields := slices.Clone(h.fields)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendField(fields, h.prefix, attr)
		return true
	})

	hdr := header{level: record.Level, time: record.Time, message: strings.TrimSpace(record.Message)}
	if h.addSource {
		hdr.source = record.Source()
	}
	body := fields[:0]
	for _, f := range mergeFields(fields) {
		switch f.key {
		case FieldComponent:
			hdr.component = attrString(f.value)
		case FieldRunID:
			hdr.runID = attrString(f.value)
		case FieldStage:
			hdr.stage = attrString(f.value)
		default:
			body = append(body, f)
		}
	}

	var b strings.Builder
	hdr.writeTo(&b)
	for _, f := range body {
		b.WriteString("    - ")
		b.WriteString(f.key)
		b.WriteString(": ")
		b.WriteString(formatValue(f.value))
		b.WriteByte('\n')
	}

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	_, err := io.WriteString(h.out.w, b.String())
	return err
}

type header struct {
	time      time.Time
	level     slog.Level
	component string
	runID     string
	stage     string
	message   string
	source    *slog.Source
}

// writeTo renders "2026-01-02 15:04:05 INFO [segmenter] run 1a2b3c4d (video) – msg".
func (hd header) writeTo(b *strings.Builder) {
	ts := hd.time
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString(formatTimestamp(ts))
	b.WriteByte(' ')
	b.WriteString(levelLabel(hd.level))
	if hd.component != "" {
		b.WriteString(" [" + hd.component + "]")
	}
	if subject := hd.subject(); subject != "" {
		b.WriteString(" " + subject)
	}
	b.WriteString(" – ")
	if hd.message == "" {
		b.WriteString("(no message)")
	} else {
		b.WriteString(hd.message)
	}
	if hd.source != nil && hd.source.File != "" {
		b.WriteString(" [" + filepath.Base(hd.source.File) + ":" + strconv.Itoa(hd.source.Line) + "]")
	}
	b.WriteByte('\n')
}

func (hd header) subject() string {
	runID := strings.TrimSpace(hd.runID)
	if len(runID) > 8 {
		runID = runID[:8]
	}
	stage := strings.TrimSpace(hd.stage)
	switch {
	case runID == "":
		return stage
	case stage == "":
		return "run " + runID
	default:
		return "run " + runID + " (" + stage + ")"
	}
}

// appendField flattens groups into dotted keys.
func appendField(dst []field, prefix string, attr slog.Attr) []field {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if attr.Key != "" {
			groupPrefix = joinKey(prefix, attr.Key)
		}
		for _, member := range value.Group() {
			dst = appendField(dst, groupPrefix, member)
		}
		return dst
	}
	if attr.Key == "" {
		return dst
	}
	return append(dst, field{key: joinKey(prefix, attr.Key), value: value})
}

// mergeFields keeps each key at its first position with its last value.
func mergeFields(fields []field) []field {
	index := make(map[string]int, len(fields))
	merged := make([]field, 0, len(fields))
	for _, f := range fields {
		if i, ok := index[f.key]; ok {
			merged[i].value = f.value
			continue
		}
		index[f.key] = len(merged)
		merged = append(merged, f)
	}
	return merged
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}
