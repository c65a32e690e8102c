package widget

import (
	"context"
	"log/slog"
	"sync"

	"display-hub/metrics"
	"display-hub/pkg/lametric"
)

var musicIcon = lametric.IconID(17668)

// Player is the music-player remote.
type Player interface {
	State(ctx context.Context) (lametric.MusicStatus, error)
	Toggle(ctx context.Context) error
	Next(ctx context.Context) error
}

// Music shows the current track and is hidden while the player is stopped.
type Music struct {
	Base
	player Player
	status lametric.MusicStatus
	mu     sync.RWMutex
}

// NewMusic creates the music widget, asking the player for its state.
// An unreachable player counts as stopped.
func NewMusic(ctx context.Context, ref Ref, out Outbound, player Player, logger *slog.Logger) *Music {
	m := &Music{
		Base:   NewBase(lametric.Yanko, ref, out, logger),
		player: player,
		status: lametric.Stopped,
	}
	status, err := player.State(ctx)
	if err != nil {
		m.logger.Warn("Music player unreachable, assuming stopped", "error", err)
		return m
	}
	m.status = status
	return m
}

// Status returns the last known player status.
func (m *Music) Status() lametric.MusicStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Hidden is true while nothing plays.
func (m *Music) Hidden() bool {
	switch m.Status() {
	case lametric.Stopped, lametric.Exit:
		return true
	default:
		return false
	}
}

// NowPlaying announces a track both as a notification and as the app's model.
func (m *Music) NowPlaying(ctx context.Context, p lametric.NowPlayingPayload) {
	icon := musicIcon
	if p.DisplayIconURI != "" {
		icon = lametric.Icon(p.DisplayIconURI)
	}
	frames := []lametric.Frame{{Text: p.Artist + " / " + p.Title, Icon: icon}}

	n := lametric.NewNotification(lametric.NewContent(frames, lametric.NoSound), lametric.Critical)
	if err := m.out.SendNotification(ctx, n); err != nil {
		m.logger.Warn("Failed to send now playing notification", "error", err)
	} else {
		metrics.Notifications.WithLabelValues(string(m.app)).Inc()
	}
	m.sendModel(ctx, frames)
}

// SetStatus records a player state change. Unknown states count as stopped.
func (m *Music) SetStatus(p lametric.StatusPayload) {
	status, ok := lametric.ParseMusicStatus(p.Status)
	if !ok {
		m.logger.Debug("Unknown player status", "status", p.Status)
	}
	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

// OnButton handles "play/pause" and "next".
func (m *Music) OnButton(ctx context.Context, cmd string) bool {
	var err error
	switch cmd {
	case "play/pause":
		err = m.player.Toggle(ctx)
	case "next":
		err = m.player.Next(ctx)
	default:
		return false
	}
	if err != nil {
		m.logger.Warn("Player command failed", "command", cmd, "error", err)
	}
	return true
}
