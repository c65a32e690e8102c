package display

import (
	"context"
	"log/slog"
	"time"

	"display-hub/pkg/lametric"
)

// MockClient logs device calls instead of performing them, for local development.
type MockClient struct {
	logger *slog.Logger
}

// NewMockClient creates a new mock device client.
func NewMockClient(logger *slog.Logger) *MockClient {
	return &MockClient{
		logger: logger,
	}
}

// Activate logs the activation.
func (m *MockClient) Activate(_ context.Context, pkg, widgetID string) error {
	m.logger.Info("MOCK ACTIVATE", "package", pkg, "widget_id", widgetID)
	return nil
}

// SendModel logs the frames.
func (m *MockClient) SendModel(_ context.Context, app lametric.AppName, content lametric.Content) error {
	texts := make([]string, len(content.Frames))
	for i, f := range content.Frames {
		texts[i] = f.Text
	}
	m.logger.Info("MOCK MODEL", "app", app, "frames", texts)
	return nil
}

// SendNotification logs the notification.
func (m *MockClient) SendNotification(_ context.Context, n lametric.Notification) error {
	var sound lametric.Sound
	if n.Model.Sound != nil {
		sound = n.Model.Sound.ID
	}
	texts := make([]string, len(n.Model.Frames))
	for i, f := range n.Model.Frames {
		texts[i] = f.Text
	}
	m.logger.Info("MOCK NOTIFICATION", "priority", n.Priority, "sound", sound, "frames", texts)
	return nil
}

// Display reports a display with the screensaver off.
func (m *MockClient) Display(context.Context) (lametric.DeviceDisplay, error) {
	return lametric.DeviceDisplay{UpdatedAt: time.Now()}, nil
}

// Apps returns no installed apps.
func (m *MockClient) Apps(context.Context) (map[string]lametric.App, error) {
	return map[string]lametric.App{}, nil
}
