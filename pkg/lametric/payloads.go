package lametric

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// MusicStatus is the player state reported by the music backend.
type MusicStatus string

const (
	Playing  MusicStatus = "playing"
	Paused   MusicStatus = "paused"
	Stopped  MusicStatus = "stopped"
	Loading  MusicStatus = "loading"
	Exit     MusicStatus = "exit"
	Resumed  MusicStatus = "resumed"
	Next     MusicStatus = "next"
	Previous MusicStatus = "previous"
)

// ParseMusicStatus decodes a status string. Unknown values are reported as Stopped with ok=false.
func ParseMusicStatus(s string) (MusicStatus, bool) {
	switch st := MusicStatus(s); st {
	case Playing, Paused, Stopped, Loading, Exit, Resumed, Next, Previous:
		return st, true
	case "loadng":
		// older player builds misspell it
		return Loading, true
	default:
		return Stopped, false
	}
}

// NowPlayingPayload is the track announcement sent by the music player.
type NowPlayingPayload struct {
	Artist         string `json:"artist" validate:"required"`
	Title          string `json:"title" validate:"required"`
	Album          string `json:"album"`
	ArtURI         string `json:"art_uri,omitempty"`
	DisplayIconURI string `json:"display_icon_uri,omitempty"`
	DurationMS     int    `json:"duration_ms" validate:"gte=0"`
}

// Validate checks required fields.
func (p NowPlayingPayload) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("validate nowplaying: %w", err)
	}
	return nil
}

// StatusPayload is a player state change.
type StatusPayload struct {
	Status string `json:"status" validate:"required"`
}

// Validate checks required fields.
func (p StatusPayload) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("validate status: %w", err)
	}
	return nil
}

// Reading is a temperature/humidity sample from a sensor.
type Reading struct {
	Location string  `json:"location" validate:"required"`
	Temp     float64 `json:"temp"`
	Humid    float64 `json:"humid" validate:"gte=0,lte=100"`
}

// Validate checks required fields.
func (r Reading) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("validate reading: %w", err)
	}
	return nil
}

// Offer is a two-field price reading.
type Offer struct {
	Total    float64 `json:"total" validate:"gte=0"`
	PerNight float64 `json:"per_night" validate:"gte=0"`
}

// Validate checks field ranges.
func (o Offer) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("validate offer: %w", err)
	}
	return nil
}

// ButtonPress carries a device button trigger such as "action.livescores=clean".
type ButtonPress struct {
	Name string `json:"name" validate:"required"`
}

// Validate checks required fields.
func (b ButtonPress) Validate() error {
	if err := validate.Struct(b); err != nil {
		return fmt.Errorf("validate button: %w", err)
	}
	return nil
}
