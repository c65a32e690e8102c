package lametric

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DisplayRefreshInterval is how long a fetched DeviceDisplay is trusted.
const DisplayRefreshInterval = 5 * time.Minute

// TimeBased is the device's scheduled screensaver window.
type TimeBased struct {
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	LocalStartTime string `json:"local_start_time"`
	LocalEndTime   string `json:"local_end_time"`
	Enabled        bool   `json:"enabled"`
}

// Active reports whether now falls inside the local window. Windows that
// cross midnight (22:00 to 07:00) are handled.
func (t TimeBased) Active(now time.Time) bool {
	if !t.Enabled {
		return false
	}
	start, err := clockMinutes(t.LocalStartTime)
	if err != nil {
		return false
	}
	end, err := clockMinutes(t.LocalEndTime)
	if err != nil {
		return false
	}
	n := now.Hour()*60 + now.Minute()
	if start <= end {
		return start <= n && n < end
	}
	return n >= start || n < end
}

// clockMinutes parses "HH:MM" or "HH:MM:SS" into minutes past midnight.
func clockMinutes(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// ScreensaverModes holds the supported screensaver triggers.
type ScreensaverModes struct {
	TimeBased TimeBased `json:"time_based"`
}

// Screensaver is the device screensaver configuration.
type Screensaver struct {
	Mode    string           `json:"mode,omitempty"`
	Modes   ScreensaverModes `json:"modes"`
	Enabled bool             `json:"enabled"`
}

// DeviceDisplay is a snapshot of the device's display settings.
type DeviceDisplay struct {
	UpdatedAt   time.Time   `json:"-"`
	Screensaver Screensaver `json:"screensaver"`
	Brightness  int         `json:"brightness"`
}

// NeedsUpdate reports whether the snapshot is missing or stale.
func (d DeviceDisplay) NeedsUpdate(now time.Time) bool {
	return d.UpdatedAt.IsZero() || now.Sub(d.UpdatedAt) > DisplayRefreshInterval
}

// ScreensaverActive reports whether the screensaver rotation should be used at now.
// now must already be in the device's local timezone.
func (d DeviceDisplay) ScreensaverActive(now time.Time) bool {
	return d.Screensaver.Enabled && d.Screensaver.Modes.TimeBased.Active(now)
}
