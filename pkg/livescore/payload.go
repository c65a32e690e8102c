package livescore

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ErrMalformedPayload is returned when a livescore payload is neither a list nor an object.
var ErrMalformedPayload = errors.New("malformed livescore payload")

// Envelope is a single-object livescore payload. Only the fields used for
// routing are decoded up front; the full body stays in Raw.
type Envelope struct {
	Action     string          `json:"action"`
	ID         string          `json:"id"`
	JobID      string          `json:"job_id"`
	Raw        json.RawMessage `json:"-"`
	LeagueID   int             `json:"league_id"`
	HomeTeamID int             `json:"home_team_id"`
	AwayTeamID int             `json:"away_team_id"`
}

// Subscription decodes the envelope as a SubscriptionEvent.
func (e *Envelope) Subscription() (SubscriptionEvent, error) {
	var sub SubscriptionEvent
	if err := json.Unmarshal(e.Raw, &sub); err != nil {
		return SubscriptionEvent{}, fmt.Errorf("decode subscription: %w", err)
	}
	if err := sub.Validate(); err != nil {
		return SubscriptionEvent{}, err
	}
	return sub, nil
}

// CancelJob decodes the envelope as a CancelJobEvent.
func (e *Envelope) CancelJob() (CancelJobEvent, error) {
	var c CancelJobEvent
	if err := json.Unmarshal(e.Raw, &c); err != nil {
		return CancelJobEvent{}, fmt.Errorf("decode cancel job: %w", err)
	}
	if err := c.Validate(); err != nil {
		return CancelJobEvent{}, err
	}
	return c, nil
}

// Payload is a decoded LIVESCOREEVENT: either a batch of match events or one envelope.
type Payload struct {
	Object *Envelope
	Events []MatchEvent
}

// Empty reports whether nothing is left to route.
func (p Payload) Empty() bool {
	return p.Object == nil && len(p.Events) == 0
}

// DecodePayload decodes raw JSON into a Payload.
func DecodePayload(data []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Payload{}, ErrMalformedPayload
	}
	switch trimmed[0] {
	case '[':
		var events []MatchEvent
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return Payload{}, fmt.Errorf("decode match events: %w", err)
		}
		return Payload{Events: events}, nil
	case '{':
		env := &Envelope{}
		if err := json.Unmarshal(trimmed, env); err != nil {
			return Payload{}, fmt.Errorf("decode envelope: %w", err)
		}
		env.Raw = append(json.RawMessage(nil), trimmed...)
		return Payload{Object: env}, nil
	default:
		return Payload{}, ErrMalformedPayload
	}
}
