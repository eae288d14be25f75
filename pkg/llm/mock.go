package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockConverseClient is a scriptable ConverseClient for tests. Responses are
// consumed in order per model; a ScriptFn, when set, takes precedence and can
// inspect the request.
type MockConverseClient struct {
	mu        sync.Mutex
	responses []*ConverseResponse
	errs      []error
	calls     []*ConverseRequest

	// ScriptFn, when non-nil, handles every call.
	ScriptFn func(req *ConverseRequest) (*ConverseResponse, error)
}

// NewMockConverseClient returns an empty mock; Enqueue responses or set
// ScriptFn before use.
func NewMockConverseClient() *MockConverseClient {
	return &MockConverseClient{}
}

// Enqueue appends a scripted response (or error, when err is non-nil).
func (m *MockConverseClient) Enqueue(resp *ConverseResponse, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
	m.errs = append(m.errs, err)
}

// EnqueueContent is a shorthand for a successful response with token counts.
func (m *MockConverseClient) EnqueueContent(content string, inputTokens, outputTokens int64) {
	m.Enqueue(&ConverseResponse{
		Content:    content,
		Usage:      Usage{InputTokens: inputTokens, OutputTokens: outputTokens},
		LatencyMS:  5,
		StopReason: "end_turn",
	}, nil)
}

// Converse implements ConverseClient.
func (m *MockConverseClient) Converse(_ context.Context, req *ConverseRequest) (*ConverseResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)

	if m.ScriptFn != nil {
		return m.ScriptFn(req)
	}
	if len(m.responses) == 0 {
		return nil, fmt.Errorf("mock converse: no scripted response for model %s", req.ModelID)
	}
	resp, err := m.responses[0], m.errs[0]
	m.responses, m.errs = m.responses[1:], m.errs[1:]
	return resp, err
}

// Calls returns a copy of the requests observed so far.
func (m *MockConverseClient) Calls() []*ConverseRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ConverseRequest(nil), m.calls...)
}

// CallCount returns the number of Converse invocations.
func (m *MockConverseClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Close implements ConverseClient.
func (m *MockConverseClient) Close() error { return nil }
