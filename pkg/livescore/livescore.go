// Package livescore contains the core domain types for tracked live games.
package livescore

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"display-hub/pkg/lametric"

	"github.com/go-playground/validator/v10"
)

// ErrUnknownAction is returned when an action string is not one of the known actions.
var ErrUnknownAction = errors.New("unknown action")

var (
	validate   = validator.New(validator.WithRequiredStructEnabled())
	inProgress = regexp.MustCompile(`^\d+`)
)

// Action is what happened in a match event or subscription envelope.
type Action string

const (
	Substitution   Action = "Substitution"
	Goal           Action = "Goal"
	YellowCard     Action = "Yellow Card"
	RedCard        Action = "Red Card"
	Woodwork       Action = "Woodwork"
	PenaltyMiss    Action = "Penalty Miss"
	GoalDisallowed Action = "Goal Disallowed"
	FullTime       Action = "Full Time"
	GameStart      Action = "Game Start"
	Subscribed     Action = "Subscribed"
	Unsubscribed   Action = "Unsubscribed"
	CancelJob      Action = "Cancel Job"
	HalfTime       Action = "Half Time"
	Progress       Action = "Progress"
)

// ParseAction decodes an action string.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case Substitution, Goal, YellowCard, RedCard, Woodwork, PenaltyMiss, GoalDisallowed,
		FullTime, GameStart, Subscribed, Unsubscribed, CancelJob, HalfTime, Progress:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// Icon returns the built-in icon for an action, if it has one.
func (a Action) Icon() (lametric.Icon, bool) {
	switch a {
	case Goal:
		return lametric.IconID(8627), true
	case Substitution:
		return lametric.IconID(31567), true
	case YellowCard:
		return lametric.IconID(43845), true
	case RedCard:
		return lametric.IconID(43844), true
	case GoalDisallowed:
		return lametric.IconID(10723), true
	case FullTime, GameStart:
		return lametric.IconID(2541), true
	default:
		return "", false
	}
}

// Game statuses as reported in match events and live scores.
const (
	StatusFirstHalf  = "1st"
	StatusSecondHalf = "2nd"
	StatusFinal      = "Final"
	StatusHalfTime   = "HT"
	StatusFullTime   = "FT"
	StatusNotStarted = "NS"
	StatusScheduled  = "Sched."
	StatusPostponed  = "PPD"
	StatusCanceled   = "CNL"
	StatusAfterExtra = "AET"
)

var statusAliases = map[string]string{
	"Post.":      StatusPostponed,
	"Ended":      StatusFullTime,
	"Canc.":      StatusCanceled,
	"Sched.":     StatusNotStarted,
	"Just Ended": StatusFullTime,
	"After ET":   StatusAfterExtra,
	"After Pen":  StatusAfterExtra,
}

// NormalizeStatus maps upstream long-form statuses to their short codes.
func NormalizeStatus(s string) string {
	if short, ok := statusAliases[s]; ok {
		return short
	}
	return s
}

// ParseScore splits a "home:away" score.
func ParseScore(score string) (home, away int, ok bool) {
	h, a, found := strings.Cut(score, ":")
	if !found {
		return 0, 0, false
	}
	home, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return 0, 0, false
	}
	away, err = strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, 0, false
	}
	return home, away, true
}

// JobPrefix returns the cancelable part of a possibly composite job id.
func JobPrefix(jobID string) string {
	prefix, _, _ := strings.Cut(jobID, ":")
	return prefix
}

// SubscriptionEvent is a tracked live game.
type SubscriptionEvent struct {
	StartTime        time.Time `json:"start_time" validate:"required"`
	ID               string    `json:"id" validate:"required"`
	Action           Action    `json:"action"`
	League           string    `json:"league"`
	HomeTeam         string    `json:"home_team"`
	AwayTeam         string    `json:"away_team"`
	EventName        string    `json:"event_name"`
	JobID            string    `json:"job_id"`
	Icon             string    `json:"icon"`
	Status           string    `json:"status"`
	Score            string    `json:"score,omitempty"`
	HomeTeamIcon     string    `json:"home_team_icon,omitempty"`
	AwayTeamIcon     string    `json:"away_team_icon,omitempty"`
	DisplayEventName string    `json:"display_event_name,omitempty"`
	LeagueID         int       `json:"league_id"`
	HomeTeamID       int       `json:"home_team_id"`
	AwayTeamID       int       `json:"away_team_id"`
	EventID          int       `json:"event_id"`
}

// Validate checks required fields.
func (s SubscriptionEvent) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("validate subscription: %w", err)
	}
	return nil
}

// JobPrefix returns the cancelable upstream job id.
func (s SubscriptionEvent) JobPrefix() string {
	return JobPrefix(s.JobID)
}

// DisplayIcon returns the best icon available: home team, then away team, then league.
func (s SubscriptionEvent) DisplayIcon() lametric.Icon {
	switch {
	case s.HomeTeamIcon != "":
		return lametric.Icon(s.HomeTeamIcon)
	case s.AwayTeamIcon != "":
		return lametric.Icon(s.AwayTeamIcon)
	default:
		return lametric.Icon(s.Icon)
	}
}

// DisplayName returns the override name if set.
func (s SubscriptionEvent) DisplayName() string {
	if s.DisplayEventName != "" {
		return s.DisplayEventName
	}
	return s.EventName
}

// InProgress reports whether the status is a running minute marker.
func (s SubscriptionEvent) InProgress() bool {
	return inProgress.MatchString(s.Status)
}

// IsExpired reports whether the game started more than window ago and is no longer running.
func (s SubscriptionEvent) IsExpired(now time.Time, window time.Duration) bool {
	if s.StartTime.After(now) {
		return false
	}
	return now.Sub(s.StartTime) > window && !s.InProgress()
}

// DisplayStatus is the short status shown on the device. Games that have not
// started show their local kick-off time.
func (s SubscriptionEvent) DisplayStatus(loc *time.Location) string {
	switch NormalizeStatus(s.Status) {
	case StatusHalfTime:
		return StatusHalfTime
	case StatusFullTime, StatusFinal:
		return StatusFullTime
	case StatusNotStarted, "":
		return s.StartTime.In(loc).Format("15:04")
	default:
		return s.Status
	}
}

// Frame renders the subscription as one display frame.
func (s SubscriptionEvent) Frame(loc *time.Location) lametric.Frame {
	text := s.DisplayStatus(loc) + " " + s.DisplayName()
	if s.Score != "" {
		text += " " + s.Score
	}
	return lametric.Frame{
		Text: text,
		Icon: s.DisplayIcon(),
	}
}

// CancelJobEvent asks for removal of the subscription holding a job id.
type CancelJobEvent struct {
	JobID  string `json:"job_id" validate:"required"`
	Action Action `json:"action"`
}

// Validate checks required fields.
func (c CancelJobEvent) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate cancel job: %w", err)
	}
	return nil
}

// Matches reports whether sub holds the job this event cancels.
func (c CancelJobEvent) Matches(sub SubscriptionEvent) bool {
	prefix := JobPrefix(c.JobID)
	return prefix != "" && sub.JobPrefix() == prefix
}
