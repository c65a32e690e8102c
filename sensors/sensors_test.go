package sensors

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"display-hub/pkg/lametric"

	"github.com/goccy/go-json"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingPublisher struct {
	types    []lametric.ContentType
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) Publish(t lametric.ContentType, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.types = append(p.types, t)
	p.payloads = append(p.payloads, payload)
	return nil
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{name: "valid reading", payload: `{"temp":21.4,"humid":48,"location":"living"}`},
		{name: "extra fields", payload: `{"temp":-3,"humid":90,"location":"balcony","battery":3.1}`},
		{name: "missing location", payload: `{"temp":21.4,"humid":48}`, wantErr: true},
		{name: "humidity above 100", payload: `{"temp":21.4,"humid":120,"location":"living"}`, wantErr: true},
		{name: "not json", payload: `21.4`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			l := New(Config{Broker: "tcp://localhost:1883", Topic: "home/sensors"}, pub, testLogger())
			err := l.Handle([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Handle() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if len(pub.types) != 0 {
					t.Errorf("published %d events for invalid reading", len(pub.types))
				}
				return
			}
			if len(pub.types) != 1 || pub.types[0] != lametric.Termo {
				t.Fatalf("published = %v, want one termo event", pub.types)
			}
			var r lametric.Reading
			if err := json.Unmarshal(pub.payloads[0], &r); err != nil {
				t.Fatalf("published payload does not decode: %v", err)
			}
			if r.Location == "" {
				t.Error("published reading lost its location")
			}
		})
	}
}

func TestHandlePublishFailure(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("bus closed")}
	l := New(Config{Topic: "home/sensors"}, pub, testLogger())
	if err := l.Handle([]byte(`{"temp":20,"humid":40,"location":"living"}`)); err == nil {
		t.Error("Handle() error = nil, want publish error")
	}
}
