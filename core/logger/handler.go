package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"
)

type lineFormat uint8

const (
	formatJSON lineFormat = iota
	formatKV
)

const tsLayout = "2006-01-02T15:04:05.000Z07:00"

type field struct {
	key string
	val any
}

// entry collects the fields of one line. A later value for a key replaces
// the earlier one in place.
type entry struct {
	fields []field
	pos    map[string]int
}

func newEntry(size int) *entry {
	return &entry{fields: make([]field, 0, size), pos: make(map[string]int, size)}
}

func (e *entry) set(key string, val any) {
	if i, ok := e.pos[key]; ok {
		e.fields[i].val = val
		return
	}
	e.pos[key] = len(e.fields)
	e.fields = append(e.fields, field{key: key, val: val})
}

// fill sets key only when the line does not carry it yet.
func (e *entry) fill(key string, val any) {
	if _, ok := e.pos[key]; !ok {
		e.set(key, val)
	}
}

func (e *entry) str(key string) string {
	i, ok := e.pos[key]
	if !ok {
		return ""
	}
	s, _ := e.fields[i].val.(string)
	return s
}

// ordered returns the non-empty fields by key rank.
func (e *entry) ordered() []field {
	out := make([]field, 0, len(e.fields))
	for _, f := range e.fields {
		if s, ok := f.val.(string); f.val == nil || (ok && s == "") {
			continue
		}
		out = append(out, f)
	}
	slices.SortStableFunc(out, func(a, b field) int {
		if ra, rb := keyRank(a.key), keyRank(b.key); ra != rb {
			return ra - rb
		}
		return strings.Compare(a.key, b.key)
	})
	return out
}

// lineHandler renders records as single JSON or key=value lines. Context
// metadata fills rid, chat and order fields the record does not set itself.
type lineHandler struct {
	level  slog.Leveler
	format lineFormat
	out    *sink
	// alerts receives a copy of WARN and above when set.
	alerts *sink
	pre    []field
	group  string
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *lineHandler) Handle(ctx context.Context, r slog.Record) error {
	e := newEntry(len(h.pre) + r.NumAttrs() + 8)
	e.set("ts", r.Time.UTC().Truncate(time.Millisecond).Format(tsLayout))
	e.set("level", r.Level.String())
	for _, f := range h.pre {
		e.set(f.key, f.val)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(e.set, h.group, a)
		return true
	})
	for _, a := range MetaFrom(ctx).attrs() {
		addAttr(e.fill, "", a)
	}
	e.fill("component", "app")
	if e.str("event") == "" {
		e.set("event", r.Message)
	}
	if s := e.str("status"); s != "" {
		e.set("status", strings.ToLower(s))
	}

	line, err := h.encode(e.ordered())
	if err != nil {
		return err
	}
	if h.alerts != nil && r.Level >= slog.LevelWarn {
		if err := h.alerts.writeLine(line); err != nil {
			return err
		}
	}
	return h.out.writeLine(line)
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.pre = slices.Clone(h.pre)
	for _, a := range attrs {
		addAttr(func(k string, v any) { c.pre = append(c.pre, field{key: k, val: v}) }, h.group, a)
	}
	return &c
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.group = joinKey(h.group, name)
	return &c
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// addAttr flattens a into dotted keys and hands each plain value to set.
func addAttr(set func(string, any), prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	key := joinKey(prefix, a.Key)
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			addAttr(set, key, child)
		}
		return
	}
	if key == "" {
		return
	}
	switch v.Kind() {
	case slog.KindString:
		set(key, strings.TrimSpace(v.String()))
	case slog.KindDuration:
		set(msKey(key), RoundMS(v.Duration()).Milliseconds())
	case slog.KindTime:
		set(key, v.Time().UTC().Format(time.RFC3339Nano))
	case slog.KindInt64:
		set(key, v.Int64())
	case slog.KindUint64:
		set(key, v.Uint64())
	case slog.KindFloat64:
		set(key, v.Float64())
	case slog.KindBool:
		set(key, v.Bool())
	default:
		switch x := v.Any().(type) {
		case nil:
		case error:
			set(key, x.Error())
		case fmt.Stringer:
			set(key, x.String())
		default:
			set(key, fmt.Sprint(x))
		}
	}
}

func (h *lineHandler) encode(fields []field) ([]byte, error) {
	var b bytes.Buffer
	if h.format == formatJSON {
		b.WriteByte('{')
	}
	for i, f := range fields {
		if h.format == formatJSON {
			val, err := json.Marshal(f.val)
			if err != nil {
				return nil, fmt.Errorf("logger: encode %s: %w", f.key, err)
			}
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(f.key))
			b.WriteByte(':')
			b.Write(val)
			continue
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f.key)
		b.WriteByte('=')
		b.WriteString(kvValue(f.val))
	}
	if h.format == formatJSON {
		b.WriteByte('}')
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func kvValue(v any) string {
	s, ok := v.(string)
	if !ok {
		return fmt.Sprint(v)
	}
	if strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
