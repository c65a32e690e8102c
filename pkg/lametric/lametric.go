// Package lametric contains the display-device model shared by the widgets and the device client.
package lametric

import (
	"fmt"
	"sort"
)

// ContentType tags an inbound payload so the router can find its widget.
type ContentType string

const (
	NowPlaying     ContentType = "nowplaying"
	YankoStatus    ContentType = "yanko_status"
	LivescoreEvent ContentType = "livescore_event"
	Termo          ContentType = "termo"
	BestOffer      ContentType = "best_offer"
	Button         ContentType = "button"
)

// AppName identifies one app slot on the device.
type AppName string

const (
	Clock      AppName = "clock"
	Weather    AppName = "weather"
	Yanko      AppName = "yanko"
	RM         AppName = "rm"
	Livescores AppName = "livescores"
	WorldCup   AppName = "worldcup"
	TermoApp   AppName = "termo"
	Sure       AppName = "sure"
)

// Priority of a push notification.
type Priority string

const (
	Info     Priority = "info"
	Warning  Priority = "warning"
	Critical Priority = "critical"
)

// Sound is a built-in notification sound id.
type Sound string

const (
	NoSound   Sound = ""
	Bicycle   Sound = "bicycle"
	Cash      Sound = "cash"
	Knock     Sound = "knock-knock"
	Lose1     Sound = "lose1"
	Lose2     Sound = "lose2"
	Negative1 Sound = "negative1"
	Negative2 Sound = "negative2"
	Negative3 Sound = "negative3"
	Notify    Sound = "notification"
	Positive1 Sound = "positive1"
	Positive2 Sound = "positive2"
	Positive5 Sound = "positive5"
	Win       Sound = "win"
	Win2      Sound = "win2"
)

// Icon is either a built-in icon reference ("i2369") or an image the device can fetch or decode.
type Icon string

// IconID returns the device reference for a built-in icon number.
func IconID(n int) Icon {
	return Icon(fmt.Sprintf("i%d", n))
}

// GoalData renders a frame as a progress bar.
type GoalData struct {
	Unit    string `json:"unit,omitempty"`
	Start   int    `json:"start"`
	Current int    `json:"current"`
	End     int    `json:"end"`
}

// Frame is one renderable unit of text and icon.
// Empty optional fields are dropped on the wire; the device rejects explicit nulls.
type Frame struct {
	GoalData *GoalData `json:"goalData,omitempty"`
	Text     string    `json:"text,omitempty"`
	Icon     Icon      `json:"icon,omitempty"`
	Index    int       `json:"index"`
	Duration int       `json:"duration,omitempty"` // milliseconds
}

// ContentSound attaches a sound to notification content.
type ContentSound struct {
	ID       Sound  `json:"id"`
	Category string `json:"category"`
}

// Content is a frame list, optionally with a sound.
type Content struct {
	Sound  *ContentSound `json:"sound,omitempty"`
	Frames []Frame       `json:"frames"`
}

// NewContent numbers the frames in order and attaches the sound if one is given.
func NewContent(frames []Frame, sound Sound) Content {
	numbered := make([]Frame, len(frames))
	for i, f := range frames {
		f.Index = i
		numbered[i] = f
	}
	c := Content{Frames: numbered}
	if sound != NoSound {
		c.Sound = &ContentSound{ID: sound, Category: "notifications"}
	}
	return c
}

// Notification is a transient push shown over the current app.
type Notification struct {
	Priority Priority `json:"priority"`
	IconType string   `json:"icon_type"`
	Model    Content  `json:"model"`
}

// NewNotification builds a notification with no icon-type decoration.
func NewNotification(content Content, priority Priority) Notification {
	return Notification{
		Priority: priority,
		IconType: "none",
		Model:    content,
	}
}

// Widget is one instance of an app installed on the device.
type Widget struct {
	Settings map[string]any `json:"settings,omitempty"`
	Package  string         `json:"package"`
	Index    int            `json:"index"`
}

// App describes an installed app and its widget instances.
type App struct {
	Widgets     map[string]Widget `json:"widgets,omitempty"`
	Package     string            `json:"package"`
	Title       string            `json:"title"`
	Vendor      string            `json:"vendor"`
	Version     string            `json:"version"`
	VersionCode string            `json:"version_code"`
}

// FirstWidgetID returns the lowest-sorted widget id of the app.
func (a App) FirstWidgetID() (string, bool) {
	if len(a.Widgets) == 0 {
		return "", false
	}
	ids := make([]string, 0, len(a.Widgets))
	for id := range a.Widgets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids[0], true
}
