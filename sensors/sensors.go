// Package sensors forwards MQTT temperature readings to the event bus.
package sensors

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"display-hub/pkg/lametric"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
)

const qosAtLeastOnce = 1

// Publisher enqueues events.
type Publisher interface {
	Publish(t lametric.ContentType, payload []byte) error
}

// Config holds the broker connection settings.
type Config struct {
	Broker   string
	Username string
	Password string
	Topic    string
	ClientID string
}

// Listener subscribes to the sensor topic and republishes readings as TERMO events.
type Listener struct {
	publisher Publisher
	logger    *slog.Logger
	cfg       Config
}

// New creates a listener.
func New(cfg Config, publisher Publisher, logger *slog.Logger) *Listener {
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("display-hub-%d", time.Now().Unix())
	}
	return &Listener{
		publisher: publisher,
		logger:    logger.With("broker", cfg.Broker, "topic", cfg.Topic),
		cfg:       cfg,
	}
}

// Handle validates one message and publishes it.
func (l *Listener) Handle(payload []byte) error {
	var r lametric.Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("decode reading: %w", err)
	}
	if err := r.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}
	if err := l.publisher.Publish(lametric.Termo, data); err != nil {
		return fmt.Errorf("publish reading: %w", err)
	}
	return nil
}

func (l *Listener) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if err := l.Handle(msg.Payload()); err != nil {
		l.logger.Warn("Dropping sensor message", "message_topic", msg.Topic(), "error", err)
		return
	}
	l.logger.Debug("Sensor reading forwarded", "message_topic", msg.Topic())
}

func (l *Listener) onConnect(c mqtt.Client) {
	l.logger.Info("Connected to MQTT broker")
	// subscriptions do not survive a clean-session reconnect
	token := c.Subscribe(l.cfg.Topic, qosAtLeastOnce, l.onMessage)
	if token.Wait() && token.Error() != nil {
		l.logger.Error("Failed to subscribe to sensor topic", "error", token.Error())
	}
}

func (l *Listener) onConnectionLost(_ mqtt.Client, err error) {
	l.logger.Warn("MQTT connection lost", "error", err)
}

// Serve connects and listens until ctx is done.
func (l *Listener) Serve(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(l.cfg.Broker)
	opts.SetClientID(l.cfg.ClientID)
	if l.cfg.Username != "" {
		opts.SetUsername(l.cfg.Username)
		opts.SetPassword(l.cfg.Password)
	}
	opts.SetOnConnectHandler(l.onConnect)
	opts.SetConnectionLostHandler(l.onConnectionLost)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", l.cfg.Broker, err)
	}

	<-ctx.Done()
	client.Disconnect(250)
	l.logger.Info("MQTT listener stopped")
	return ctx.Err()
}

func (l *Listener) String() string {
	return "mqtt-sensors"
}
