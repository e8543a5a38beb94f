package middleware

import (
	"context"
	"regexp"

	"github.com/policypal/palgraph/pkg/domain"
	"github.com/policypal/palgraph/pkg/ports"
)

type piiMiddleware struct {
	next     ports.SnapshotStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks text matching the given
// patterns before a snapshot is written. Audit excerpts and pasted emails
// routinely carry addresses, account numbers and the like; masking happens
// on the persisted copy only.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Put(ctx context.Context, threadID string, state *domain.State) error {
	// Clone so the in-memory state used by the executor is untouched.
	masked := state.Clone()

	for i := range masked.Messages {
		masked.Messages[i].Content = m.mask(masked.Messages[i].Content)
		for k, v := range masked.Messages[i].Meta {
			if s, ok := v.(string); ok {
				masked.Messages[i].Meta[k] = m.mask(s)
			}
		}
	}
	masked.Response = m.mask(masked.Response)
	masked.CleanQuery = m.mask(masked.CleanQuery)
	masked.InferenceReasoning = m.mask(masked.InferenceReasoning)

	return m.next.Put(ctx, threadID, masked)
}

func (m *piiMiddleware) Get(ctx context.Context, threadID string) (*domain.State, error) {
	return m.next.Get(ctx, threadID)
}

func (m *piiMiddleware) Delete(ctx context.Context, threadID string) error {
	return m.next.Delete(ctx, threadID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) mask(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, "***")
	}
	return s
}
