// Package rotation decides which widget the display shows.
package rotation

import (
	"context"
	"time"

	"display-hub/metrics"
	"display-hub/widget"
)

// Item is a widget slot in a rotation list.
type Item struct {
	widget      widget.Widget
	activatedAt time.Time
	duration    int // base seconds
	hidden      bool
}

// NewItem creates an item showing w for duration seconds (scaled by the widget).
func NewItem(w widget.Widget, duration int, hidden bool) *Item {
	return &Item{
		widget:   w,
		duration: duration,
		hidden:   hidden,
	}
}

// Widget returns the item's widget.
func (i *Item) Widget() widget.Widget {
	return i.widget
}

// Activate shows the widget. The item counts as active even when the device call fails,
// so a dead device does not make rotation spin.
func (i *Item) Activate(ctx context.Context, now time.Time) error {
	err := i.widget.Activate(ctx)
	i.activatedAt = now
	metrics.Activations.WithLabelValues(string(i.widget.Name())).Inc()
	i.widget.OnShow(ctx)
	return err
}

// Deactivate marks the item inactive.
func (i *Item) Deactivate(ctx context.Context) {
	i.activatedAt = time.Time{}
	i.widget.OnHide(ctx)
}

// Active reports whether the item is being shown.
func (i *Item) Active() bool {
	return !i.activatedAt.IsZero()
}

// Expired reports whether an active item outlived its effective duration.
func (i *Item) Expired(now time.Time) bool {
	if !i.Active() {
		return false
	}
	d := time.Duration(i.widget.Duration(i.duration)) * time.Second
	return now.Sub(i.activatedAt) > d
}

// Allowed reports whether the item may be shown.
func (i *Item) Allowed() bool {
	return !i.hidden && !i.widget.Hidden()
}

// Ring is a repeating rotation list.
type Ring struct {
	items []*Item
	order []*Item
}

// NewRing creates a ring in configured order.
func NewRing(items []*Item) *Ring {
	return &Ring{
		items: items,
		order: append([]*Item(nil), items...),
	}
}

// Len returns the number of items.
func (r *Ring) Len() int {
	return len(r.order)
}

// Next pops the front item and appends it to the back.
func (r *Ring) Next() *Item {
	if len(r.order) == 0 {
		return nil
	}
	it := r.order[0]
	r.order = append(r.order[1:], it)
	return it
}

// First restores configured order and pops the first item.
func (r *Ring) First() *Item {
	r.order = append(r.order[:0], r.items...)
	return r.Next()
}
