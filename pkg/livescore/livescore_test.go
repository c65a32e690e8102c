package livescore

import (
	"errors"
	"testing"
	"time"

	"display-hub/pkg/lametric"
)

func TestParseAction(t *testing.T) {
	if got, err := ParseAction("Cancel Job"); err != nil || got != CancelJob {
		t.Errorf("ParseAction(Cancel Job) = %q, %v", got, err)
	}
	if _, err := ParseAction("Corner"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("ParseAction(Corner) error = %v, want ErrUnknownAction", err)
	}
}

func TestJobPrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"j1:extra", "j1"},
		{"j1", "j1"},
		{"", ""},
		{"a:b:c", "a"},
	}
	for _, tt := range tests {
		if got := JobPrefix(tt.in); got != tt.want {
			t.Errorf("JobPrefix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCancelJobMatches(t *testing.T) {
	c := CancelJobEvent{JobID: "j1:extra", Action: CancelJob}
	if !c.Matches(SubscriptionEvent{JobID: "j1"}) {
		t.Error("Matches() = false for plain job id j1")
	}
	if !c.Matches(SubscriptionEvent{JobID: "j1:other"}) {
		t.Error("Matches() = false for composite job id j1:other")
	}
	if c.Matches(SubscriptionEvent{JobID: "j10"}) {
		t.Error("Matches() = true for j10")
	}
	if (CancelJobEvent{}).Matches(SubscriptionEvent{}) {
		t.Error("empty job id must not match")
	}
}

func TestSubscriptionIsExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)
	window := 3 * time.Hour
	tests := []struct {
		name   string
		start  time.Time
		status string
		want   bool
	}{
		{name: "future game", start: now.Add(time.Hour), status: "", want: false},
		{name: "far future game", start: now.Add(48 * time.Hour), status: "NS", want: false},
		{name: "started inside window", start: now.Add(-2 * time.Hour), status: "FT", want: false},
		{name: "old and finished", start: now.Add(-4 * time.Hour), status: "FT", want: true},
		{name: "old but still running", start: now.Add(-4 * time.Hour), status: "118'", want: false},
		{name: "exactly at window", start: now.Add(-window), status: "FT", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := SubscriptionEvent{StartTime: tt.start, Status: tt.status}
			if got := sub.IsExpired(now, window); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSubscriptionDisplay(t *testing.T) {
	loc := time.FixedZone("EET", 2*60*60)
	start := time.Date(2024, 6, 1, 17, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		sub  SubscriptionEvent
		want string
	}{
		{
			name: "not started shows local kickoff",
			sub:  SubscriptionEvent{StartTime: start, EventName: "A/B", Status: "NS"},
			want: "19:30 A/B",
		},
		{
			name: "running with score",
			sub:  SubscriptionEvent{StartTime: start, EventName: "A/B", Status: "23'", Score: "1:0"},
			want: "23' A/B 1:0",
		},
		{
			name: "final maps to FT and uses override name",
			sub:  SubscriptionEvent{StartTime: start, EventName: "A/B", DisplayEventName: "A / B", Status: "Final", Score: "2:2"},
			want: "FT A / B 2:2",
		},
		{
			name: "long form ended status",
			sub:  SubscriptionEvent{StartTime: start, EventName: "A/B", Status: "Ended"},
			want: "FT A/B",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sub.Frame(loc).Text; got != tt.want {
				t.Errorf("Frame().Text = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDisplayIconPrecedence(t *testing.T) {
	sub := SubscriptionEvent{Icon: "league", AwayTeamIcon: "away", HomeTeamIcon: "home"}
	if got := sub.DisplayIcon(); got != "home" {
		t.Errorf("DisplayIcon() = %q, want home", got)
	}
	sub.HomeTeamIcon = ""
	if got := sub.DisplayIcon(); got != "away" {
		t.Errorf("DisplayIcon() = %q, want away", got)
	}
	sub.AwayTeamIcon = ""
	if got := sub.DisplayIcon(); got != "league" {
		t.Errorf("DisplayIcon() = %q, want league", got)
	}
}

func TestMatchEventMinute(t *testing.T) {
	tests := []struct {
		name  string
		event MatchEvent
		want  string
	}{
		{"regular", MatchEvent{Time: 23, Status: "1st"}, "23'"},
		{"first half stoppage", MatchEvent{Time: 47, Status: "1st"}, "45+2'"},
		{"second half stoppage", MatchEvent{Time: 93, Status: "2nd"}, "90+3'"},
		{"second half regular", MatchEvent{Time: 70, Status: "2nd"}, "70'"},
		{"half time", MatchEvent{Time: 45, Status: "HT"}, "HT"},
		{"final", MatchEvent{Time: 90, Status: "Final"}, "FT"},
		{"extra time is not stoppage", MatchEvent{Time: 105, Status: "ET"}, "105'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.Minute(); got != tt.want {
				t.Errorf("Minute() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMatchEventFrame(t *testing.T) {
	goal := MatchEvent{Time: 23, Action: "Goal", Player: "Vinicius", Score: "1:0"}
	f := goal.Frame("fallback")
	if f.Text != "23' Goal Vinicius 1:0" {
		t.Errorf("Frame().Text = %q", f.Text)
	}
	if f.Icon != lametric.IconID(8627) {
		t.Errorf("Frame().Icon = %q, want goal icon", f.Icon)
	}

	sub := MatchEvent{Time: 60, Action: "Substitution", Player: "Modric", ExtraPlayers: []string{"Kroos", "Valverde"}}
	if got := sub.Frame("x").Text; got != "60' Substitution Kroos,Valverde -> Modric" {
		t.Errorf("substitution Frame().Text = %q", got)
	}

	woodwork := MatchEvent{Time: 12, Action: "Woodwork", Player: "Bellingham"}
	if got := woodwork.Frame("crest").Icon; got != "crest" {
		t.Errorf("Frame().Icon = %q, want fallback crest", got)
	}
}

func TestTeamSound(t *testing.T) {
	const team, other = 10, 20
	tests := []struct {
		name  string
		event MatchEvent
		want  lametric.Sound
	}{
		{"own goal scored", MatchEvent{Action: "Goal", TeamID: team}, lametric.Positive1},
		{"conceded", MatchEvent{Action: "Goal", TeamID: other}, lametric.Negative1},
		{"own card", MatchEvent{Action: "Red Card", TeamID: team}, lametric.Negative2},
		{"opponent card", MatchEvent{Action: "Yellow Card", TeamID: other}, lametric.Positive2},
		{"won", MatchEvent{Action: "Full Time", Score: "2:1"}, lametric.Win},
		{"lost", MatchEvent{Action: "Full Time", Score: "0:1"}, lametric.Lose1},
		{"draw", MatchEvent{Action: "Full Time", Score: "1:1"}, lametric.Lose1},
		{"other", MatchEvent{Action: "Woodwork"}, lametric.Bicycle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.TeamSound(team, team, other); got != tt.want {
				t.Errorf("TeamSound() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLeagueSound(t *testing.T) {
	if got := (MatchEvent{Action: "Goal"}).Sound(); got != lametric.Positive5 {
		t.Errorf("Sound() = %q, want positive5", got)
	}
	if got := (MatchEvent{Action: "Full Time"}).Sound(); got != lametric.Bicycle {
		t.Errorf("Sound() = %q, want bicycle", got)
	}
	if got := (MatchEvent{Action: "Yellow Card"}).Sound(); got != lametric.NoSound {
		t.Errorf("Sound() = %q, want none", got)
	}
}

func TestLivescoreDisplay(t *testing.T) {
	one, two, unknown := 1, 2, -1
	ev := LivescoreEvent{Status: "67", HomeScore: &one, AwayScore: &two}
	if got := ev.DisplayScore(); got != "1:2" {
		t.Errorf("DisplayScore() = %q, want 1:2", got)
	}
	if got := ev.DisplayStatus(); got != "67'" {
		t.Errorf("DisplayStatus() = %q, want 67'", got)
	}
	ev = LivescoreEvent{Status: "Just Ended", HomeScore: &one, AwayScore: &unknown}
	if got := ev.DisplayScore(); got != "" {
		t.Errorf("DisplayScore() = %q, want empty", got)
	}
	if got := ev.DisplayStatus(); got != "FT" {
		t.Errorf("DisplayStatus() = %q, want FT", got)
	}
}

func TestDecodePayload(t *testing.T) {
	list, err := DecodePayload([]byte(` [{"id":"g1","action":"Goal","time":23,"team_id":10}]`))
	if err != nil {
		t.Fatalf("DecodePayload(list) error = %v", err)
	}
	if len(list.Events) != 1 || list.Events[0].TeamID != 10 || list.Object != nil {
		t.Errorf("DecodePayload(list) = %+v", list)
	}

	obj, err := DecodePayload([]byte(`{"action":"Subscribed","id":"g1","league_id":7,"start_time":"2024-06-01T18:00:00Z","event_name":"A/B"}`))
	if err != nil {
		t.Fatalf("DecodePayload(object) error = %v", err)
	}
	if obj.Object == nil || obj.Object.LeagueID != 7 || obj.Object.Action != "Subscribed" {
		t.Fatalf("DecodePayload(object) = %+v", obj.Object)
	}
	sub, err := obj.Object.Subscription()
	if err != nil {
		t.Fatalf("Subscription() error = %v", err)
	}
	if sub.ID != "g1" || sub.EventName != "A/B" {
		t.Errorf("Subscription() = %+v", sub)
	}

	if _, err := DecodePayload([]byte(`"nope"`)); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("DecodePayload(string) error = %v, want ErrMalformedPayload", err)
	}
	if !(Payload{}).Empty() {
		t.Error("zero Payload should be empty")
	}
}

func TestEnvelopeValidation(t *testing.T) {
	p, err := DecodePayload([]byte(`{"action":"Subscribed","league_id":7}`))
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if _, err := p.Object.Subscription(); err == nil {
		t.Error("Subscription() without id should fail validation")
	}
	p, err = DecodePayload([]byte(`{"action":"Cancel Job"}`))
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if _, err := p.Object.CancelJob(); err == nil {
		t.Error("CancelJob() without job id should fail validation")
	}
}

func TestGameStartsOn(t *testing.T) {
	loc := time.FixedZone("EET", 2*60*60)
	g := Game{StartTime: time.Date(2024, 6, 1, 22, 30, 0, 0, time.UTC)}
	if !g.StartsOn(time.Date(2024, 6, 2, 8, 0, 0, 0, loc), loc) {
		t.Error("22:30 UTC is 00:30 next day in EET; StartsOn() should be true")
	}
	if g.StartsOn(time.Date(2024, 6, 1, 8, 0, 0, 0, loc), loc) {
		t.Error("StartsOn() should be false for the previous local day")
	}
	if g.SubscriptionID() != (Game{}).SubscriptionID() {
		// both have empty names
		t.Error("SubscriptionID() should depend only on names")
	}
}
