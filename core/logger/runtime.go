package logger

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"unicode"
)

type metaKey struct{}

// Meta is the correlation data carried through one handled update. Zero
// fields are left out of log lines.
type Meta struct {
	RID      string
	UpdateID int
	UserID   int64
	ChatID   int64
	Handler  string
	// OrderID is set once a handler has resolved the order it works on.
	OrderID int64
}

// attrs returns m as log attributes, skipping zero fields.
func (m Meta) attrs() []slog.Attr {
	out := make([]slog.Attr, 0, 6)
	if m.RID != "" {
		out = append(out, slog.String("rid", m.RID))
	}
	if m.UpdateID != 0 {
		out = append(out, slog.Int("update_id", m.UpdateID))
	}
	if m.ChatID != 0 {
		out = append(out, slog.Int64("chat_id", m.ChatID))
	}
	if m.UserID != 0 && m.UserID != m.ChatID {
		out = append(out, slog.Int64("user_id", m.UserID))
	}
	if m.Handler != "" {
		out = append(out, slog.String("handler", m.Handler))
	}
	if m.OrderID != 0 {
		out = append(out, slog.Int64("order_id", m.OrderID))
	}
	return out
}

// MetaFrom returns the metadata stored in ctx, or the zero Meta.
func MetaFrom(ctx context.Context) Meta {
	if ctx == nil {
		return Meta{}
	}
	m, _ := ctx.Value(metaKey{}).(Meta)
	return m
}

// WithMeta stores m in ctx, replacing any earlier metadata.
func WithMeta(ctx context.Context, m Meta) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, metaKey{}, m)
}

func editMeta(ctx context.Context, edit func(*Meta)) context.Context {
	m := MetaFrom(ctx)
	edit(&m)
	return WithMeta(ctx, m)
}

// WithUpdate records the update identifiers and derives the rid from them.
func WithUpdate(ctx context.Context, updateID int, chatID, userID int64) context.Context {
	return editMeta(ctx, func(m *Meta) {
		m.UpdateID, m.ChatID, m.UserID = updateID, chatID, userID
		m.RID = BuildRID(updateID, chatID)
	})
}

// WithHandler names the handler serving the update.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		return ctx
	}
	return editMeta(ctx, func(m *Meta) { m.Handler = handler })
}

// WithOrderID marks ctx as working on order id, so later lines and queued
// replies carry it.
func WithOrderID(ctx context.Context, id int64) context.Context {
	if id == 0 {
		return ctx
	}
	return editMeta(ctx, func(m *Meta) { m.OrderID = id })
}

// BuildRID returns the correlation id of an update: base36 update id and
// chat id joined by a dot. Private chats share their id with the sender, so
// the user is not part of it.
func BuildRID(updateID int, chatID int64) string {
	return strconv.FormatInt(int64(updateID), 36) + "." + strconv.FormatInt(chatID, 36)
}

// Clean drops control and format runes from user supplied text and cuts it
// to max runes. Newlines and tabs become spaces so one event stays on one line.
func Clean(s string, max int) string {
	if max <= 0 || s == "" {
		return ""
	}
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n == max {
			break
		}
		switch {
		case r == '\n' || r == '\t':
			r = ' '
		case unicode.IsControl(r) || unicode.Is(unicode.Cf, r):
			continue
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
