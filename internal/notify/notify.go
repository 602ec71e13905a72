// Package notify delivers short operator messages about contract changes.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Veraticus/contract-sentinel/internal/service"
)

var (
	_ service.Notifier = (*LogNotifier)(nil)
	_ service.Notifier = (*MockNotifier)(nil)
	_ service.Notifier = (*TelegramNotifier)(nil)
)

// LogNotifier writes messages to a logger. It is used when no chat is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs at info level.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements service.Notifier.
func (n *LogNotifier) Notify(ctx context.Context, destination, text string) error {
	n.logger.InfoContext(ctx, "notification", "destination", destination, "text", text)
	return nil
}

// Message is a delivered notification.
type Message struct {
	Destination string
	Text        string
}

// MockNotifier records messages for tests.
type MockNotifier struct {
	Err      error
	Messages []Message
	mu       sync.Mutex
}

// Notify implements service.Notifier.
func (m *MockNotifier) Notify(_ context.Context, destination, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, Message{Destination: destination, Text: text})
	return m.Err
}

// Sent returns a copy of the recorded messages.
func (m *MockNotifier) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.Messages...)
}
