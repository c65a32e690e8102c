// Package buttons maps device button triggers to widget commands.
package buttons

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"display-hub/pkg/lametric"
)

const prefix = "action."

// ErrMalformed is returned for names that are not "action.<app>=<command>".
var ErrMalformed = errors.New("malformed button name")

// Handler reacts to a command for its app. It reports whether the command was known.
type Handler interface {
	OnButton(ctx context.Context, cmd string) bool
}

// Registry holds one handler per app.
type Registry struct {
	handlers map[lametric.AppName]Handler
	logger   *slog.Logger
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	return &Registry{
		handlers: make(map[lametric.AppName]Handler),
		logger:   logger,
	}
}

// Register binds h to app, replacing any earlier handler.
func (r *Registry) Register(app lametric.AppName, h Handler) {
	r.handlers[app] = h
}

// Parse splits "action.livescores=clean" into app and command.
func Parse(name string) (lametric.AppName, string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(name), prefix)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrMalformed, name)
	}
	app, cmd, ok := strings.Cut(rest, "=")
	if !ok || app == "" || cmd == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformed, name)
	}
	return lametric.AppName(app), cmd, nil
}

// Press runs the command named by name. Unknown names are logged and ignored.
func (r *Registry) Press(ctx context.Context, name string) bool {
	app, cmd, err := Parse(name)
	if err != nil {
		r.logger.Warn("Ignoring button", "name", name, "error", err)
		return false
	}
	h, ok := r.handlers[app]
	if !ok {
		r.logger.Warn("No handler registered for button", "name", name, "app", app)
		return false
	}
	if !h.OnButton(ctx, cmd) {
		r.logger.Warn("Unknown button command", "app", app, "command", cmd)
		return false
	}
	r.logger.Info("Button handled", "app", app, "command", cmd)
	return true
}
