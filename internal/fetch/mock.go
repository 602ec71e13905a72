package fetch

import (
	"context"
	"sync"

	"github.com/Veraticus/contract-sentinel/internal/common"
	"github.com/Veraticus/contract-sentinel/internal/model"
	"github.com/Veraticus/contract-sentinel/internal/service"
)

var _ service.Source = (*MockSource)(nil)

// MockSource is a mock implementation of service.Source for testing.
type MockSource struct {
	Records      map[string]*model.RawRecord
	Errors       map[string]error
	Previews     map[string]model.Preview
	FetchCalls   []string
	PreviewCalls [][]string
	mu           sync.Mutex
}

// NewMockSource creates an empty mock source. Unknown ids fail with a
// network FetchError.
func NewMockSource() *MockSource {
	return &MockSource{
		Records:  make(map[string]*model.RawRecord),
		Errors:   make(map[string]error),
		Previews: make(map[string]model.Preview),
	}
}

// Set stores the record returned for id.
func (m *MockSource) Set(id string, rec *model.RawRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records[id] = rec
	delete(m.Errors, id)
}

// Fail makes id fail with err.
func (m *MockSource) Fail(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[id] = err
}

// Fetch implements service.Source.
func (m *MockSource) Fetch(_ context.Context, id string) (*model.RawRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FetchCalls = append(m.FetchCalls, id)
	if err, ok := m.Errors[id]; ok {
		return nil, err
	}
	rec, ok := m.Records[id]
	if !ok {
		return nil, common.NewFetchError(id, common.FetchNetwork, 1, ErrDumpNotFound)
	}
	cp := *rec
	cp.Objects = append([]model.RawItem(nil), rec.Objects...)
	return &cp, nil
}

// FetchPreview implements service.Source.
func (m *MockSource) FetchPreview(_ context.Context, ids []string) ([]model.Preview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PreviewCalls = append(m.PreviewCalls, append([]string(nil), ids...))
	out := make([]model.Preview, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.Previews[id]; ok {
			out = append(out, p)
			continue
		}
		out = append(out, model.Preview{ID: id, Status: "not_found"})
	}
	return out, nil
}

// GetFetchCalls returns a copy of the fetched ids in call order.
func (m *MockSource) GetFetchCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.FetchCalls...)
}
