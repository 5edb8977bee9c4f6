package generator

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Mock produces deterministic drafts and can be told to fail on chosen calls.
type Mock struct {
	mu    sync.Mutex
	calls int

	// FailOn lists 1-based call numbers that return an error.
	FailOn map[int]bool
}

func NewMock() *Mock {
	return &Mock{FailOn: map[int]bool{}}
}

func (m *Mock) Generate(ctx context.Context, h Hints, instructions string) (*Draft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.calls++
	n := m.calls
	fail := m.FailOn[n]
	m.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("mock generator failure on call %d", n)
	}

	tone := h.Tone
	if tone == "" {
		tone = "friendly"
	}
	caption := fmt.Sprintf("%s for %s %s", strings.ReplaceAll(string(h.PostType), "_", " "), h.Date.Weekday(), h.Date)
	if h.Label != "" {
		caption = h.Label + ": " + caption
	}
	if s := strings.TrimSpace(instructions); s != "" {
		caption += " (" + s + ")"
	}
	return &Draft{
		Caption:    caption,
		HashTags:   []string{string(h.PostType), strings.ToLower(h.Date.Weekday().String())},
		UsedTopics: []string{h.Label},
		Tone:       tone,
		Source:     "mock",
	}, nil
}

func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
