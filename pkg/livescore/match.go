package livescore

import (
	"fmt"
	"strings"

	"display-hub/pkg/lametric"
)

// MatchEvent is one update within a live game.
type MatchEvent struct {
	ID           string   `json:"id"`
	Action       string   `json:"action"`
	Team         string   `json:"team,omitempty"`
	Player       string   `json:"player,omitempty"`
	Score        string   `json:"score,omitempty"`
	EventName    string   `json:"event_name,omitempty"`
	Status       string   `json:"status,omitempty"`
	ExtraPlayers []string `json:"extraPlayers,omitempty"`
	Time         int      `json:"time"`
	Order        int      `json:"order"`
	HomeTeamID   int      `json:"home_team_id,omitempty"`
	AwayTeamID   int      `json:"away_team_id,omitempty"`
	TeamID       int      `json:"team_id,omitempty"`
	EventID      int      `json:"event_id,omitempty"`
	LeagueID     int      `json:"league_id,omitempty"`
	IsOldEvent   bool     `json:"is_old_event"`
}

// Minute formats the time marker, with stoppage time shown as 45+N' or 90+N'.
func (e MatchEvent) Minute() string {
	switch e.Status {
	case StatusFinal:
		return StatusFullTime
	case StatusHalfTime:
		return StatusHalfTime
	case StatusFirstHalf:
		if e.Time > 45 {
			return fmt.Sprintf("45+%d'", e.Time-45)
		}
	case StatusSecondHalf:
		if e.Time > 90 {
			return fmt.Sprintf("90+%d'", e.Time-90)
		}
	}
	return fmt.Sprintf("%d'", e.Time)
}

// PlayerText names the player, or "in, in -> out" for substitutions.
func (e MatchEvent) PlayerText() string {
	if len(e.ExtraPlayers) > 0 {
		return strings.Join(e.ExtraPlayers, ",") + " -> " + e.Player
	}
	return e.Player
}

// Frame renders the event as a notification frame. fallback is used when the action has no icon of its own.
func (e MatchEvent) Frame(fallback lametric.Icon) lametric.Frame {
	parts := []string{e.Minute(), e.Action}
	for _, p := range []string{e.PlayerText(), e.EventName, e.Score} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	icon := fallback
	if own, ok := Action(e.Action).Icon(); ok {
		icon = own
	}
	return lametric.Frame{
		Text: strings.Join(parts, " "),
		Icon: icon,
	}
}

// Winner returns the winning team id from the score, or 0 for a draw or unknown score.
// The event's own team ids are used when homeID or awayID is zero.
func (e MatchEvent) Winner(homeID, awayID int) int {
	if homeID == 0 {
		homeID = e.HomeTeamID
	}
	if awayID == 0 {
		awayID = e.AwayTeamID
	}
	home, away, ok := ParseScore(e.Score)
	switch {
	case !ok:
		return 0
	case home > away:
		return homeID
	case away > home:
		return awayID
	default:
		return 0
	}
}

// Sound is the neutral sound used by competition widgets.
func (e MatchEvent) Sound() lametric.Sound {
	switch Action(e.Action) {
	case Goal:
		return lametric.Positive5
	case FullTime:
		return lametric.Bicycle
	default:
		return lametric.NoSound
	}
}

// TeamSound is the partisan sound for a widget following teamID in a game between homeID and awayID.
func (e MatchEvent) TeamSound(teamID, homeID, awayID int) lametric.Sound {
	own := e.TeamID == teamID
	switch Action(e.Action) {
	case Goal:
		if own {
			return lametric.Positive1
		}
		return lametric.Negative1
	case YellowCard, RedCard:
		if own {
			return lametric.Negative2
		}
		return lametric.Positive2
	case FullTime:
		if e.Winner(homeID, awayID) == teamID {
			return lametric.Win
		}
		return lametric.Lose1
	default:
		return lametric.Bicycle
	}
}
