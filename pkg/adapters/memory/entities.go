package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/policypal/palgraph/pkg/ports"
)

// EntityStore implements ports.EntityStore over a seeded in-memory document
// table. Used by tests and local development; production wires a database-
// backed implementation behind the same port.
type EntityStore struct {
	mu   sync.RWMutex
	docs map[string]ports.Document
	sets map[string][]string // set id → member document ids
}

// NewEntityStore creates an empty entity store.
func NewEntityStore() *EntityStore {
	return &EntityStore{
		docs: make(map[string]ports.Document),
		sets: make(map[string][]string),
	}
}

// AddDocument seeds a document.
func (s *EntityStore) AddDocument(doc ports.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
}

// AddSet seeds a document set.
func (s *EntityStore) AddSet(setID string, docIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[setID] = append(s.sets[setID], docIDs...)
}

// DocumentsByID returns the known documents among ids, in the order asked.
func (s *EntityStore) DocumentsByID(ctx context.Context, ids []string) ([]ports.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ports.Document
	for _, id := range ids {
		if doc, ok := s.docs[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// ReadyDocuments returns the owner's ready documents sorted by title.
func (s *EntityStore) ReadyDocuments(ctx context.Context, ownerID string) ([]ports.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ports.Document
	for _, doc := range s.docs {
		if doc.OwnerID == ownerID && doc.Status == ports.DocumentStatusReady {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// ExpandSet returns the ready documents of the set owned by ownerID.
func (s *EntityStore) ExpandSet(ctx context.Context, setID, ownerID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, id := range s.sets[setID] {
		doc, ok := s.docs[id]
		if ok && doc.OwnerID == ownerID && doc.Status == ports.DocumentStatusReady {
			out = append(out, id)
		}
	}
	return out, nil
}

// Retriever implements ports.Retriever by naive term-overlap scoring over
// seeded chunks. It exists so the pipeline and its tests can exercise the
// retrieval path without a vector index.
type Retriever struct {
	mu     sync.RWMutex
	chunks []ports.Chunk
	owners map[string][]int // owner id → indexes into chunks
}

// NewRetriever creates an empty retriever.
func NewRetriever() *Retriever {
	return &Retriever{owners: make(map[string][]int)}
}

// AddChunk seeds a chunk for the given owner.
func (r *Retriever) AddChunk(ownerID string, chunk ports.Chunk) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[ownerID] = append(r.owners[ownerID], len(r.chunks))
	r.chunks = append(r.chunks, chunk)
}

// SearchChunks scores the owner's chunks by query-term overlap and returns
// the top k, restricted to docIDs when non-empty.
func (r *Retriever) SearchChunks(ctx context.Context, ownerID, query string, docIDs []string, k int) ([]ports.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	allowed := map[string]bool{}
	for _, id := range docIDs {
		allowed[id] = true
	}

	terms := strings.Fields(strings.ToLower(query))
	var out []ports.Chunk
	for _, i := range r.owners[ownerID] {
		c := r.chunks[i]
		if len(allowed) > 0 && !allowed[c.DocID] {
			continue
		}
		c.Similarity = overlap(terms, strings.ToLower(c.Content))
		if c.Similarity > 0 {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func overlap(terms []string, content string) float64 {
	if len(terms) == 0 {
		return 0
	}
	hits := 0
	for _, term := range terms {
		if strings.Contains(content, term) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}
