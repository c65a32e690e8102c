package router

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"display-hub/bus"
	"display-hub/pkg/lametric"
	"display-hub/pkg/livescore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// leagueWidget claims match events of one league, or every event when league is 0.
type leagueWidget struct {
	name    lametric.AppName
	league  int
	got     []string
	calls   int
	objects int
	panics  bool
}

func (w *leagueWidget) Name() lametric.AppName { return w.name }

func (w *leagueWidget) OnEvent(_ context.Context, p livescore.Payload) livescore.Payload {
	w.calls++
	if w.panics {
		panic("boom")
	}
	if p.Object != nil {
		if w.league == 0 || p.Object.LeagueID == w.league {
			w.objects++
			return livescore.Payload{}
		}
		return p
	}
	var rest []livescore.MatchEvent
	for _, ev := range p.Events {
		if w.league == 0 || ev.LeagueID == w.league {
			w.got = append(w.got, ev.ID)
			continue
		}
		rest = append(rest, ev)
	}
	return livescore.Payload{Events: rest}
}

type fakeMusic struct {
	playing []string
	status  []string
}

func (m *fakeMusic) NowPlaying(_ context.Context, p lametric.NowPlayingPayload) {
	m.playing = append(m.playing, p.Artist)
}

func (m *fakeMusic) SetStatus(p lametric.StatusPayload) {
	m.status = append(m.status, p.Status)
}

type fakeTermo struct{ readings []lametric.Reading }

func (f *fakeTermo) Update(_ context.Context, r lametric.Reading) bool {
	f.readings = append(f.readings, r)
	return true
}

type fakeOffer struct{ offers []lametric.Offer }

func (f *fakeOffer) Update(_ context.Context, o lametric.Offer) {
	f.offers = append(f.offers, o)
}

type fakeButtons struct{ names []string }

func (f *fakeButtons) Press(_ context.Context, name string) bool {
	f.names = append(f.names, name)
	return true
}

func TestLivescoreChainPartitions(t *testing.T) {
	a := &leagueWidget{name: "league_a", league: 1}
	b := &leagueWidget{name: "league_b", league: 2}
	all := &leagueWidget{name: lametric.Livescores}
	r := New(Config{Chain: []Subscriber{a, b, all}}, testLogger())

	r.Dispatch(context.Background(), bus.Event{
		Type:    lametric.LivescoreEvent,
		Payload: []byte(`[{"id":"ga","action":"Goal","league_id":1},{"id":"gb","action":"Goal","league_id":2}]`),
	})

	if len(a.got) != 1 || a.got[0] != "ga" {
		t.Errorf("league A got %v, want [ga]", a.got)
	}
	if len(b.got) != 1 || b.got[0] != "gb" {
		t.Errorf("league B got %v, want [gb]", b.got)
	}
	if all.calls != 1 || len(all.got) != 0 {
		t.Errorf("catch-all calls = %d, got %v, want one call with empty remainder", all.calls, all.got)
	}
}

func TestLivescoreChainEnvelope(t *testing.T) {
	a := &leagueWidget{name: "league_a", league: 1}
	all := &leagueWidget{name: lametric.Livescores}
	r := New(Config{Chain: []Subscriber{a, all}}, testLogger())

	r.Dispatch(context.Background(), bus.Event{
		Type:    lametric.LivescoreEvent,
		Payload: []byte(`{"action":"Subscribed","id":"g9","league_id":7}`),
	})
	if a.objects != 0 || all.objects != 1 {
		t.Errorf("objects: league A = %d, catch-all = %d, want 0 and 1", a.objects, all.objects)
	}
}

func TestPanickingWidgetPassesPayloadOn(t *testing.T) {
	bad := &leagueWidget{name: "league_a", league: 1, panics: true}
	all := &leagueWidget{name: lametric.Livescores}
	r := New(Config{Chain: []Subscriber{bad, all}}, testLogger())

	r.Dispatch(context.Background(), bus.Event{
		Type:    lametric.LivescoreEvent,
		Payload: []byte(`[{"id":"ga","action":"Goal","league_id":1}]`),
	})
	if len(all.got) != 1 || all.got[0] != "ga" {
		t.Errorf("catch-all got %v, want the original payload [ga]", all.got)
	}
}

func TestDispatchByContentType(t *testing.T) {
	music := &fakeMusic{}
	termo := &fakeTermo{}
	offer := &fakeOffer{}
	btns := &fakeButtons{}
	r := New(Config{Music: music, Termo: termo, Offer: offer, Buttons: btns}, testLogger())
	ctx := context.Background()

	tests := []struct {
		name    string
		ev      bus.Event
		handled func() int
		want    int
	}{
		{
			name:    "now playing",
			ev:      bus.Event{Type: lametric.NowPlaying, Payload: []byte(`{"artist":"Nina","title":"Sinnerman","duration_ms":600000}`)},
			handled: func() int { return len(music.playing) },
			want:    1,
		},
		{
			name:    "now playing missing title",
			ev:      bus.Event{Type: lametric.NowPlaying, Payload: []byte(`{"artist":"Nina"}`)},
			handled: func() int { return len(music.playing) },
			want:    1,
		},
		{
			name:    "status",
			ev:      bus.Event{Type: lametric.YankoStatus, Payload: []byte(`{"status":"paused"}`)},
			handled: func() int { return len(music.status) },
			want:    1,
		},
		{
			name:    "sensor",
			ev:      bus.Event{Type: lametric.Termo, Payload: []byte(`{"temp":21.5,"humid":40,"location":"living"}`)},
			handled: func() int { return len(termo.readings) },
			want:    1,
		},
		{
			name:    "sensor humidity out of range",
			ev:      bus.Event{Type: lametric.Termo, Payload: []byte(`{"temp":21.5,"humid":140,"location":"living"}`)},
			handled: func() int { return len(termo.readings) },
			want:    1,
		},
		{
			name:    "offer",
			ev:      bus.Event{Type: lametric.BestOffer, Payload: []byte(`{"total":120.5,"per_night":65}`)},
			handled: func() int { return len(offer.offers) },
			want:    1,
		},
		{
			name:    "button",
			ev:      bus.Event{Type: lametric.Button, Payload: []byte(`{"name":"action.yanko=next"}`)},
			handled: func() int { return len(btns.names) },
			want:    1,
		},
		{
			name:    "malformed json",
			ev:      bus.Event{Type: lametric.Button, Payload: []byte(`{"name":`)},
			handled: func() int { return len(btns.names) },
			want:    1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r.Dispatch(ctx, tt.ev)
			if got := tt.handled(); got != tt.want {
				t.Errorf("handled = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestUnknownContentTypeIsIgnored(t *testing.T) {
	r := New(Config{}, testLogger())
	r.Dispatch(context.Background(), bus.Event{Type: "weather", Payload: []byte(`{}`)})
}
