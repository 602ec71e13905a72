package sheets

import (
	"context"
	"sync"

	"github.com/Veraticus/contract-sentinel/internal/model"
	"github.com/Veraticus/contract-sentinel/internal/service"
)

var _ service.Publisher = (*MockPublisher)(nil)

// MockPublisher is a mock implementation of service.Publisher for testing.
type MockPublisher struct {
	PublishFunc func(ctx context.Context, rec *model.ContractRecord, change model.Change) (*service.PublishResult, error)
	Calls       []PublishCall
	mu          sync.Mutex
}

// PublishCall represents a single call to Publish.
type PublishCall struct {
	Error  error
	Record *model.ContractRecord
	Change model.Change
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{Calls: make([]PublishCall, 0)}
}

// Publish implements service.Publisher.
func (m *MockPublisher) Publish(ctx context.Context, rec *model.ContractRecord, change model.Change) (*service.PublishResult, error) {
	m.mu.Lock()
	fn := m.PublishFunc
	m.mu.Unlock()

	result := &service.PublishResult{URL: "mock://" + rec.ID, SheetID: "mock-" + rec.ID}
	var err error
	if fn != nil {
		result, err = fn(ctx, rec, change)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, PublishCall{Record: rec, Change: change, Error: err})
	return result, err
}

// SetPublishError configures the mock to fail every Publish call.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishFunc = func(context.Context, *model.ContractRecord, model.Change) (*service.PublishResult, error) {
		return nil, err
	}
}

// GetCalls returns a copy of all publish calls.
func (m *MockPublisher) GetCalls() []PublishCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]PublishCall, len(m.Calls))
	copy(calls, m.Calls)
	return calls
}

// AssertPublishCalled verifies the number of Publish calls.
func (m *MockPublisher) AssertPublishCalled(t interface{ Fatalf(string, ...any) }, expectedCalls int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) != expectedCalls {
		t.Fatalf("expected Publish to be called %d times, but was called %d times", expectedCalls, len(m.Calls))
	}
}
