package widget

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"display-hub/pkg/lametric"
)

var (
	termoIcon     = lametric.IconID(2369)
	offerIcon     = lametric.IconID(10329)
	offerWarmIcon = lametric.IconID(10772)
	offerHotIcon  = lametric.IconID(10773)
)

const (
	offerWarmAbove = 60
	offerHotAbove  = 70
)

// Termo shows the primary location's temperature and humidity.
type Termo struct {
	Base
	primary string
}

// NewTermo creates the temperature widget for readings from primary.
func NewTermo(ref Ref, out Outbound, primary string, logger *slog.Logger) *Termo {
	return &Termo{
		Base:    NewBase(lametric.TermoApp, ref, out, logger),
		primary: primary,
	}
}

// Update renders r. Readings from other locations are ignored.
func (t *Termo) Update(ctx context.Context, r lametric.Reading) bool {
	if t.primary != "" && r.Location != t.primary {
		t.logger.Debug("Ignoring reading from secondary location", "location", r.Location)
		return false
	}
	t.sendModel(ctx, []lametric.Frame{
		{Text: strconv.FormatFloat(r.Temp, 'f', -1, 64), Icon: termoIcon, Duration: 6000},
		{Text: strconv.FormatFloat(r.Humid, 'f', -1, 64) + "%", Icon: termoIcon, Duration: 4000},
	})
	return true
}

// Offer shows the best accommodation offer.
type Offer struct {
	Base
}

// NewOffer creates the offer widget.
func NewOffer(ref Ref, out Outbound, logger *slog.Logger) *Offer {
	return &Offer{Base: NewBase(lametric.Sure, ref, out, logger)}
}

func perNightIcon(v float64) lametric.Icon {
	switch {
	case v > offerHotAbove:
		return offerHotIcon
	case v > offerWarmAbove:
		return offerWarmIcon
	default:
		return offerIcon
	}
}

// Update renders o.
func (w *Offer) Update(ctx context.Context, o lametric.Offer) {
	w.sendModel(ctx, []lametric.Frame{
		{Text: fmt.Sprintf("%.2f", o.Total), Icon: offerIcon, Duration: 5000},
		{Text: strconv.FormatFloat(o.PerNight, 'f', -1, 64), Icon: perNightIcon(o.PerNight), Duration: 10000},
	})
}
