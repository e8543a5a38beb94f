package ports

import "context"

// Chunk is one retrieved passage with its provenance and similarity score.
type Chunk struct {
	DocID      string
	DocTitle   string
	Content    string
	Page       int
	Similarity float64
}

// Retriever performs semantic passage retrieval over a user's documents.
// Ranking internals (embeddings, indexes) are the implementation's business;
// the pipeline only consumes scored chunks.
type Retriever interface {
	// SearchChunks returns up to k chunks relevant to query, restricted to
	// the given document ids (all of the owner's documents when docIDs is
	// empty), ordered by descending similarity.
	SearchChunks(ctx context.Context, ownerID, query string, docIDs []string, k int) ([]Chunk, error)
}

// WebResult is one normalized web search hit.
type WebResult struct {
	Title   string
	URL     string
	Content string
	Score   float64
}

// WebSearcher performs a web search for time-sensitive questions.
// Implementations degrade to an empty result on failure or missing
// credentials; a failed search never aborts a turn.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]WebResult, error)
}
