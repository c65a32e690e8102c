package widget

import (
	"fmt"
	"strings"

	"display-hub/pkg/livescore"
)

// Effects is the outcome of applying one match event to a subscription.
type Effects struct {
	Sub    livescore.SubscriptionEvent
	Notify bool // push the event as a notification
	Cancel bool // cancel the upstream job
}

// Apply computes the subscription after ev. It reports false when the
// subscription is already finished and ev must be ignored.
func Apply(sub livescore.SubscriptionEvent, ev livescore.MatchEvent) (Effects, bool, error) {
	if sub.Status == livescore.StatusFullTime {
		return Effects{Sub: sub}, false, nil
	}
	action, err := livescore.ParseAction(ev.Action)
	if err != nil {
		return Effects{Sub: sub}, false, err
	}

	fx := Effects{Sub: sub}
	switch action {
	case livescore.FullTime:
		fx.Sub.Status = livescore.StatusFullTime
		fx.Sub.DisplayEventName = ""
		fx.Notify = true
		fx.Cancel = true
	case livescore.HalfTime:
		fx.Sub.Status = livescore.StatusHalfTime
	case livescore.Progress:
		if ev.EventName != "" {
			fx.Sub.DisplayEventName = strings.ReplaceAll(ev.EventName, "/", " / ")
		}
		switch livescore.NormalizeStatus(ev.Status) {
		case livescore.StatusHalfTime:
			fx.Sub.Status = livescore.StatusHalfTime
		case livescore.StatusFinal:
			fx.Sub.Status = livescore.StatusFinal
		default:
			fx.Sub.Status = fmt.Sprintf("%d'", ev.Time)
		}
	case livescore.Subscribed, livescore.Unsubscribed, livescore.CancelJob:
		// lifecycle actions only arrive as envelopes
	default:
		fx.Notify = true
	}

	if ev.Score != "" {
		fx.Sub.Score = ev.Score
	}
	// replays still move the state forward but never notify twice
	if ev.IsOldEvent {
		fx.Notify = false
	}
	return fx, true, nil
}
