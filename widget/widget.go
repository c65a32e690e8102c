// Package widget implements the units of content rotated on the display.
package widget

import (
	"context"
	"fmt"
	"log/slog"

	"display-hub/pkg/lametric"
)

// Outbound is the device capability widgets render through.
type Outbound interface {
	Activate(ctx context.Context, pkg, widgetID string) error
	SendModel(ctx context.Context, app lametric.AppName, content lametric.Content) error
	SendNotification(ctx context.Context, n lametric.Notification) error
}

// Widget is one slot of the display rotation.
type Widget interface {
	Name() lametric.AppName
	Activate(ctx context.Context) error
	OnShow(ctx context.Context)
	OnHide(ctx context.Context)
	// Duration returns the on-screen time for a configured base duration.
	Duration(base int) int
	Hidden() bool
}

// Ref locates a widget instance on the device.
type Ref struct {
	Package  string
	WidgetID string
}

// Base carries what every widget has: its app name, device reference and device client.
type Base struct {
	out    Outbound
	logger *slog.Logger
	ref    Ref
	app    lametric.AppName
}

// NewBase creates a base widget.
func NewBase(app lametric.AppName, ref Ref, out Outbound, logger *slog.Logger) Base {
	return Base{
		app:    app,
		ref:    ref,
		out:    out,
		logger: logger.With("widget", string(app)),
	}
}

// Name returns the app name.
func (b *Base) Name() lametric.AppName {
	return b.app
}

// Activate asks the device to show this widget.
func (b *Base) Activate(ctx context.Context) error {
	if err := b.out.Activate(ctx, b.ref.Package, b.ref.WidgetID); err != nil {
		return fmt.Errorf("activate %s: %w", b.app, err)
	}
	return nil
}

// OnShow does nothing by default.
func (b *Base) OnShow(context.Context) {}

// OnHide does nothing by default.
func (b *Base) OnHide(context.Context) {}

// Duration returns base unchanged.
func (b *Base) Duration(base int) int {
	return base
}

// Hidden is false by default.
func (b *Base) Hidden() bool {
	return false
}

func (b *Base) sendModel(ctx context.Context, frames []lametric.Frame) {
	if err := b.out.SendModel(ctx, b.app, lametric.NewContent(frames, lametric.NoSound)); err != nil {
		b.logger.Warn("Failed to send model", "frames", len(frames), "error", err)
	}
}

// Passive is a widget the device renders by itself, like the clock.
type Passive struct {
	Base
}

// NewPassive creates a passive widget.
func NewPassive(app lametric.AppName, ref Ref, out Outbound, logger *slog.Logger) *Passive {
	return &Passive{Base: NewBase(app, ref, out, logger)}
}
