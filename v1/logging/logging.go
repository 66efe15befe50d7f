// Package logging builds the slog logger shared by every warp-kv component.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mirkobrombin/warp-kv/v1/config"
)

// New returns a logger writing to stdout in the configured format. When
// cfg.File is set, records are also appended to that file as JSON; the file
// rotates at UTC midnight and when it grows past cfg.MaxSizeMB. The returned
// closer releases the file and must be called on shutdown.
func New(cfg config.LogConfig, stdout io.Writer) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	var console slog.Handler
	if cfg.Format == "json" {
		console = slog.NewJSONHandler(stdout, opts)
	} else {
		console = slog.NewTextHandler(stdout, opts)
	}
	if cfg.File == "" {
		return slog.New(console), nopCloser{}, nil
	}

	if dir := filepath.Dir(cfg.File); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	f := newRotatingFile(&lumberjack.Logger{
		Filename: cfg.File,
		MaxSize:  cfg.MaxSizeMB,
		MaxAge:   cfg.MaxAgeDays,
	})
	h := fanout{console, slog.NewJSONHandler(f, opts)}
	return slog.New(h), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// rotatingFile is a lumberjack file that also rolls over once a day.
type rotatingFile struct {
	*lumberjack.Logger
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newRotatingFile(l *lumberjack.Logger) *rotatingFile {
	f := &rotatingFile{
		Logger: l,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go f.rotateDaily()
	return f
}

func (f *rotatingFile) rotateDaily() {
	defer close(f.done)
	timer := time.NewTimer(time.Until(nextMidnight(time.Now())))
	defer timer.Stop()
	for {
		select {
		case <-f.stop:
			return
		case <-timer.C:
			_ = f.Rotate()
			timer.Reset(time.Until(nextMidnight(time.Now())))
		}
	}
}

// Close stops the daily rotation and closes the current file.
func (f *rotatingFile) Close() error {
	f.once.Do(func() { close(f.stop) })
	<-f.done
	return f.Logger.Close()
}

// nextMidnight returns the first UTC midnight strictly after t.
func nextMidnight(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
}

// fanout sends every record to all of its handlers.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
