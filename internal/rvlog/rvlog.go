// Package rvlog wraps log/slog with the one behavior this emulator's
// core intentionally does not have an opinion on: where retired-step
// and trap events go. The rv32 package stays logging-free (it only
// exposes Context.OnRetire); everything under cmd/ wires that hook to a
// Logger from this package.
package rvlog

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Handler is a slog.Handler that timestamps each record, flattens it to
// a single line, and writes it to an injected io.Writer -- the same
// shape as rcornwell-S370's LogHandler, minus the always-also-stderr
// debug mirror (a single-process CLI tool has no reason to duplicate
// its own output stream).
type Handler struct {
	out io.Writer
	h   slog.Handler
	mu  *sync.Mutex
}

// NewHandler builds a Handler writing to out at the given level. A nil
// out discards everything past the Enabled check.
func NewHandler(out io.Writer, level slog.Level) *Handler {
	if out == nil {
		out = io.Discard
	}
	return &Handler{
		out: out,
		h:   slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}),
		mu:  &sync.Mutex{},
	}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{out: h.out, h: h.h.WithAttrs(attrs), mu: h.mu}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{out: h.out, h: h.h.WithGroup(name), mu: h.mu}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	parts := []string{r.Time.Format("2006/01/02 15:04:05"), r.Level.String() + ":", r.Message}
	r.Attrs(func(a slog.Attr) bool {
		parts = append(parts, a.Key+"="+a.Value.String())
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, strings.Join(parts, " ")+"\n")
	return err
}

// New builds a *slog.Logger backed by a Handler writing to out at the
// given level.
func New(out io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewHandler(out, level))
}
