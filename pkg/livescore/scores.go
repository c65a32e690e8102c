package livescore

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// LivescoreEvent is one row of the sports backend's live score feed.
type LivescoreEvent struct {
	StartTime  time.Time `json:"startTime"`
	ID         string    `json:"id"`
	Sport      string    `json:"strSport"`
	League     string    `json:"strLeague"`
	HomeTeam   string    `json:"strHomeTeam"`
	AwayTeam   string    `json:"strAwayTeam"`
	Status     string    `json:"strStatus"`
	EventID    int       `json:"idEvent"`
	LeagueID   int       `json:"idLeague"`
	HomeTeamID int       `json:"idHomeTeam"`
	AwayTeamID int       `json:"idAwayTeam"`
	HomeScore  *int      `json:"intHomeScore,omitempty"`
	AwayScore  *int      `json:"intAwayScore,omitempty"`
}

// DisplayScore returns "home:away", or "" while either side is unknown.
func (l LivescoreEvent) DisplayScore() string {
	if l.HomeScore == nil || l.AwayScore == nil || *l.HomeScore < 0 || *l.AwayScore < 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", *l.HomeScore, *l.AwayScore)
}

// DisplayStatus normalizes the feed status into the form stored on a subscription.
// Running games become a minute marker.
func (l LivescoreEvent) DisplayStatus() string {
	status := NormalizeStatus(l.Status)
	if inProgress.MatchString(status) {
		return strings.TrimRight(status, `"'`) + "'"
	}
	return status
}

// Competitor is one side of a scheduled game.
type Competitor struct {
	Name         string `json:"name"`
	SymbolicName string `json:"symbolicName,omitempty"`
	ID           int    `json:"id"`
	Score        *int   `json:"score,omitempty"`
}

// Game is a scheduled game from a team or competition schedule.
type Game struct {
	StartTime              time.Time  `json:"startTime"`
	CompetitionDisplayName string     `json:"competitionDisplayName"`
	ShortStatusText        string     `json:"shortStatusText"`
	Icon                   string     `json:"icon,omitempty"`
	HomeCompetitor         Competitor `json:"homeCompetitor"`
	AwayCompetitor         Competitor `json:"awayCompetitor"`
	ID                     int        `json:"id"`
	CompetitionID          int        `json:"competitionId"`
}

// SubscriptionID derives the stable id the backend uses for a game's subscription.
func (g Game) SubscriptionID() string {
	sum := md5.Sum([]byte(strings.ToLower(g.HomeCompetitor.Name + "/" + g.AwayCompetitor.Name)))
	return hex.EncodeToString(sum[:])
}

// Postponed reports whether the game has been postponed.
func (g Game) Postponed() bool {
	return NormalizeStatus(g.ShortStatusText) == StatusPostponed
}

// StartsOn reports whether the game kicks off on the same calendar day as now in loc.
func (g Game) StartsOn(now time.Time, loc *time.Location) bool {
	y1, m1, d1 := g.StartTime.In(loc).Date()
	y2, m2, d2 := now.In(loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
