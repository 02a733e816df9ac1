package logging

import (
	"context"
	"errors"
	"log/slog"
)

// fanoutHandler 将同一条记录写入文件与 stdout，单个目标失败不影响其余目标。
type fanoutHandler []slog.Handler

func newMultiHandler(handlers ...slog.Handler) slog.Handler {
	return fanoutHandler(handlers)
}

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var err error
	for _, h := range f {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		err = errors.Join(err, h.Handle(ctx, record.Clone()))
	}
	return err
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanoutHandler) derive(fn func(slog.Handler) slog.Handler) fanoutHandler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}
