package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/policypal/palgraph/internal/logging"
	"github.com/policypal/palgraph/pkg/adapters/memory"
	"github.com/policypal/palgraph/pkg/domain"
	"github.com/policypal/palgraph/pkg/ports"
)

// fakeClassifier scripts classification per task. A handler returns the raw
// JSON payload the model would have produced.
type fakeClassifier struct {
	handlers map[string]func(msgs []ports.ChatMessage) (string, error)
	calls    map[string]int
	usage    ports.Usage
}

func newFakeClassifier() *fakeClassifier {
	return &fakeClassifier{
		handlers: make(map[string]func(msgs []ports.ChatMessage) (string, error)),
		calls:    make(map[string]int),
		usage:    ports.Usage{Tokens: 10, CostUSD: 0.001},
	}
}

func (f *fakeClassifier) on(task string, payload string) {
	f.handlers[task] = func([]ports.ChatMessage) (string, error) { return payload, nil }
}

func (f *fakeClassifier) onFunc(task string, fn func(msgs []ports.ChatMessage) (string, error)) {
	f.handlers[task] = fn
}

func (f *fakeClassifier) Classify(_ context.Context, task string, msgs []ports.ChatMessage, out any) (ports.Usage, error) {
	f.calls[task]++
	h, ok := f.handlers[task]
	if !ok {
		return ports.Usage{}, fmt.Errorf("unscripted task %q", task)
	}
	payload, err := h(msgs)
	if err != nil {
		return ports.Usage{}, err
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return ports.Usage{}, err
	}
	return f.usage, nil
}

// stubRetriever returns scripted chunks and records the query it was asked.
type stubRetriever struct {
	chunks    []ports.Chunk
	err       error
	lastQuery string
}

func (s *stubRetriever) SearchChunks(_ context.Context, _, query string, _ []string, _ int) ([]ports.Chunk, error) {
	s.lastQuery = query
	return s.chunks, s.err
}

// stubWebSearcher returns scripted results and records the query.
type stubWebSearcher struct {
	results   []ports.WebResult
	lastQuery string
	called    bool
}

func (s *stubWebSearcher) Search(_ context.Context, query string, _ int) ([]ports.WebResult, error) {
	s.called = true
	s.lastQuery = query
	return s.results, nil
}

func testDeps(t *testing.T) (Deps, *fakeClassifier, *memory.EntityStore, *stubRetriever, *stubWebSearcher) {
	t.Helper()
	classifier := newFakeClassifier()
	entities := memory.NewEntityStore()
	retriever := &stubRetriever{}
	web := &stubWebSearcher{}
	deps := Deps{
		Classifier: classifier,
		Entities:   entities,
		Retriever:  retriever,
		Web:        web,
		Logger:     logging.NewNop(),
	}
	return deps, classifier, entities, retriever, web
}

// userState builds a thread state with a single user message.
func userState(content string) *domain.State {
	state := domain.NewState("thread-1", "user-1")
	state.AppendMessage(domain.NewMessage(domain.RoleUser, content))
	return state
}

func resumeWith(state *domain.State, value string) {
	state.ResumeValue = &domain.Resume{Value: value}
}

// richTextDoc builds an editor document from mention and text parts.
// Mentions are pairs of (id, label).
func richTextDoc(parts ...map[string]any) json.RawMessage {
	doc := map[string]any{"type": "doc", "content": parts}
	raw, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return raw
}

func mustJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(raw)
}

func mentionNode(id, label string) map[string]any {
	return map[string]any{
		"type": "mention",
		"attrs": map[string]any{
			"category": "document",
			"id":       id,
			"label":    label,
		},
	}
}

func textNode(text string) map[string]any {
	return map[string]any{"type": "text", "text": text}
}
