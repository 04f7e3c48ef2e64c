// Package logging provides a middleware that logs every action flowing
// through the dispatch pipeline. It is the injectable replacement for
// ad-hoc print statements in application reducers.
package logging

import (
	"context"
	"fmt"
	"log/slog"

	rex "github.com/pelagornis/go-rex/pkg/rex/v1"
	"github.com/pelagornis/go-rex/pkg/rex/v1/effect"
	rexlog "github.com/pelagornis/go-rex/pkg/rex/v1/log"
)

// Middleware logs each observed action with its Go type at the configured
// level. It never mutates state and produces no effects.
type Middleware[S any] struct {
	log   rexlog.Logger
	level slog.Level
}

// New creates a logging middleware emitting at DEBUG.
func New[S any](log rexlog.Logger) *Middleware[S] {
	return NewAtLevel[S](log, slog.LevelDebug)
}

// NewAtLevel creates a logging middleware emitting at the given level.
func NewAtLevel[S any](log rexlog.Logger, level slog.Level) *Middleware[S] {
	return &Middleware[S]{
		log:   log.With("component", "LoggingMiddleware"),
		level: level,
	}
}

func (m *Middleware[S]) Process(ctx context.Context, state S, action rex.Action, _ func(rex.Action)) []effect.Effect {
	if !m.log.IsEnabled(m.level) {
		return nil
	}
	m.log.LogCtx(ctx, m.level, "Processing action",
		"action_type", fmt.Sprintf("%T", action),
	)
	return nil
}

var _ rex.Middleware[struct{}] = (*Middleware[struct{}])(nil)
