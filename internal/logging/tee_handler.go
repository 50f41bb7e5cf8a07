package logging

import (
	"context"
	"errors"
	"log/slog"
)

// teeBranch is one destination of a teeHandler. A nil level accepts whatever
// the handler itself accepts.
type teeBranch struct {
	handler slog.Handler
	level   slog.Leveler
}

func (b teeBranch) enabled(ctx context.Context, level slog.Level) bool {
	if b.level != nil && level < b.level.Level() {
		return false
	}
	return b.handler.Enabled(ctx, level)
}

// teeHandler writes each record to every branch that accepts its level, so
// the console and the log file can run at different verbosity.
type teeHandler struct {
	branches []teeBranch
}

func newTeeHandler(branches ...teeBranch) slog.Handler {
	kept := make([]teeBranch, 0, len(branches))
	for _, b := range branches {
		if b.handler != nil {
			kept = append(kept, b)
		}
	}
	switch {
	case len(kept) == 0:
		return NoopHandler{}
	case len(kept) == 1 && kept[0].level == nil:
		return kept[0].handler
	}
	return &teeHandler{branches: kept}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, b := range h.branches {
		if b.enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers to every accepting branch even when one fails and returns
// the joined errors.
func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, b := range h.branches {
		if !b.enabled(ctx, record.Level) {
			continue
		}
		if err := b.handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(next slog.Handler) slog.Handler { return next.WithAttrs(attrs) })
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(next slog.Handler) slog.Handler { return next.WithGroup(name) })
}

func (h *teeHandler) derive(fn func(slog.Handler) slog.Handler) slog.Handler {
	next := make([]teeBranch, len(h.branches))
	for i, b := range h.branches {
		next[i] = teeBranch{handler: fn(b.handler), level: b.level}
	}
	return &teeHandler{branches: next}
}

// TeeHandler duplicates records to every handler, each filtering by its own
// level.
func TeeHandler(handlers ...slog.Handler) slog.Handler {
	branches := make([]teeBranch, 0, len(handlers))
	for _, h := range handlers {
		branches = append(branches, teeBranch{handler: h})
	}
	return newTeeHandler(branches...)
}
