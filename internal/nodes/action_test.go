package nodes

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policypal/palgraph/pkg/domain"
	"github.com/policypal/palgraph/pkg/ports"
)

func answerPayload(response string, citations ...map[string]any) string {
	return mustJSON(map[string]any{"response": response, "citations": citations})
}

func rewritePayload(query string) string {
	return mustJSON(map[string]any{"optimized_query": query})
}

func TestActionExecutor_GroundedAnswer(t *testing.T) {
	deps, classifier, _, retriever, _ := testDeps(t)
	retriever.chunks = []ports.Chunk{
		{DocID: docA, DocTitle: "Basel III Accord", Content: "The minimum ratio is 8%.", Page: 12, Similarity: 0.82},
	}
	classifier.on(ports.TaskQueryRewrite, rewritePayload("basel iii minimum capital ratio requirements"))

	var gotSystem string
	classifier.onFunc(ports.TaskInquire, func(msgs []ports.ChatMessage) (string, error) {
		gotSystem = msgs[0].Content
		return answerPayload("The minimum ratio is 8% [1].", map[string]any{
			"id": 1, "source_type": "document", "doc_id": docA,
			"title": "Basel III Accord", "page": 12, "quote": "The minimum ratio is 8%.",
		}), nil
	})
	node := NewInquire(deps)

	state := userState("what is the minimum capital ratio in @Basel III Accord")
	state.CleanQuery = "what is the minimum capital ratio in"
	state.ResolvedDocIDs = []string{docA}
	state.ResolvedDocTitles = map[string]string{docA: "Basel III Accord"}

	out, err := node.Run(context.Background(), state)
	require.NoError(t, err)
	assert.False(t, out.Suspended())

	assert.Equal(t, "basel iii minimum capital ratio requirements", retriever.lastQuery)
	assert.Contains(t, gotSystem, "[1] Source: Basel III Accord | Page: 12 | DocID: "+docA)

	assert.Equal(t, "The minimum ratio is 8% [1].", state.Response)
	require.Len(t, state.Citations, 1)
	assert.Equal(t, docA, state.Citations[0].DocID)
	assert.Equal(t, domain.ConfidenceHigh, state.RetrievalConfidence)
	assert.Equal(t, 10, state.TokensUsed)
	assert.InDelta(t, 0.001, state.CostUSD, 1e-9)

	last, ok := state.LastAssistantMessage()
	require.True(t, ok)
	assert.Equal(t, state.Response, last.Content)
}

func TestActionExecutor_GeneralKnowledgeWithoutDocuments(t *testing.T) {
	deps, classifier, _, retriever, _ := testDeps(t)
	var gotSystem string
	classifier.onFunc(ports.TaskInquire, func(msgs []ports.ChatMessage) (string, error) {
		gotSystem = msgs[0].Content
		return answerPayload("Based on general knowledge, most regimes require periodic review."), nil
	})
	node := NewInquire(deps)

	state := userState("how often must policies be reviewed")
	state.CleanQuery = "how often must policies be reviewed"

	out, err := node.Run(context.Background(), state)
	require.NoError(t, err)
	assert.False(t, out.Suspended())
	assert.Contains(t, gotSystem, "No documents are attached")
	assert.Equal(t, domain.ConfidenceLow, state.RetrievalConfidence)
	// No document context, so no rewrite call either.
	assert.Zero(t, classifier.calls[ports.TaskQueryRewrite])
	assert.Equal(t, "how often must policies be reviewed", retriever.lastQuery)
}

func TestActionExecutor_NothingRetrievedReportsNotFound(t *testing.T) {
	deps, classifier, _, _, _ := testDeps(t)
	classifier.on(ports.TaskQueryRewrite, rewritePayload("penalty clauses"))
	var gotSystem string
	classifier.onFunc(ports.TaskInquire, func(msgs []ports.ChatMessage) (string, error) {
		gotSystem = msgs[0].Content
		return answerPayload("I couldn't find that in Basel III Accord."), nil
	})
	node := NewInquire(deps)

	state := userState("what are the penalty clauses")
	state.CleanQuery = "what are the penalty clauses"
	state.ResolvedDocIDs = []string{docA}
	state.ResolvedDocTitles = map[string]string{docA: "Basel III Accord"}

	_, err := node.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Contains(t, gotSystem, "DOCUMENTS SEARCHED: Basel III Accord")
	assert.Contains(t, gotSystem, "no relevant passages")
	assert.Equal(t, domain.ConfidenceLow, state.RetrievalConfidence)
}

func TestActionExecutor_WebSearch(t *testing.T) {
	deps, classifier, _, _, web := testDeps(t)
	web.results = []ports.WebResult{
		{Title: "Regulator Update", URL: "https://example.org/update", Content: "New thresholds apply from 2026.", Score: 0.9},
	}
	classifier.on(ports.TaskQueryRewrite, rewritePayload(strings.Repeat("capital requirements update ", 10)))
	var gotSystem string
	classifier.onFunc(ports.TaskInquire, func(msgs []ports.ChatMessage) (string, error) {
		gotSystem = msgs[0].Content
		return answerPayload("New thresholds apply from 2026 [1]."), nil
	})
	node := NewInquire(deps)

	state := userState("what are the latest capital requirements for @Basel III Accord")
	state.CleanQuery = "what are the latest capital requirements"
	state.EnableWebSearch = true
	state.ResolvedDocIDs = []string{docA}
	state.ResolvedDocTitles = map[string]string{docA: "Basel III Accord"}

	_, err := node.Run(context.Background(), state)
	require.NoError(t, err)

	assert.True(t, web.called)
	assert.LessOrEqual(t, len(web.lastQuery), webQueryMaxLen)
	assert.Equal(t, web.lastQuery, state.WebSearchQuery)
	assert.Contains(t, gotSystem, "Source: Regulator Update (web) | URL: https://example.org/update")
}

func TestActionExecutor_RewriteFailureFallsBackToQuery(t *testing.T) {
	deps, classifier, _, retriever, _ := testDeps(t)
	classifier.onFunc(ports.TaskQueryRewrite, func([]ports.ChatMessage) (string, error) {
		return "", errors.New("model unavailable")
	})
	classifier.on(ports.TaskSummarize, answerPayload("A summary."))
	node := NewSummarize(deps)

	state := userState("summarize @Basel III Accord key points")
	state.CleanQuery = "summarize key points"
	state.ResolvedDocIDs = []string{docA}
	state.ResolvedDocTitles = map[string]string{docA: "Basel III Accord"}

	_, err := node.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, "summarize key points", retriever.lastQuery)
}

func TestActionExecutor_ChunkFilteringAndTiers(t *testing.T) {
	deps, classifier, _, retriever, _ := testDeps(t)
	for i := 0; i < 7; i++ {
		retriever.chunks = append(retriever.chunks, ports.Chunk{
			DocID: docA, DocTitle: "Basel III Accord", Content: "passage", Similarity: 0.9,
		})
	}
	retriever.chunks = append(retriever.chunks, ports.Chunk{
		DocID: docB, DocTitle: "Solvency II Directive", Content: "weak match", Similarity: 0.3,
	})
	classifier.on(ports.TaskQueryRewrite, rewritePayload("q"))
	var gotSystem string
	classifier.onFunc(ports.TaskCompare, func(msgs []ports.ChatMessage) (string, error) {
		gotSystem = msgs[0].Content
		return answerPayload("A comparison."), nil
	})
	node := NewCompare(deps)

	state := userState("compare them")
	state.CleanQuery = "compare them"
	state.ResolvedDocIDs = []string{docA, docB}
	state.ResolvedDocTitles = map[string]string{docA: "Basel III Accord", docB: "Solvency II Directive"}

	_, err := node.Run(context.Background(), state)
	require.NoError(t, err)

	// One document may contribute at most five passages; sub-threshold
	// passages never enter the context.
	assert.Equal(t, 5, strings.Count(gotSystem, "] Source: Basel III Accord"))
	assert.NotContains(t, gotSystem, "weak match")
	assert.Equal(t, domain.ConfidenceHigh, state.RetrievalConfidence)
}

func TestActionExecutor_GenerationErrorSurfaces(t *testing.T) {
	deps, classifier, _, _, _ := testDeps(t)
	classifier.onFunc(ports.TaskAudit, func([]ports.ChatMessage) (string, error) {
		return "", errors.New("model unavailable")
	})
	node := NewAudit(deps)

	state := userState("audit this long enough excerpt about data retention and deletion timelines for customer records")
	_, err := node.Run(context.Background(), state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit generation")
	assert.Empty(t, state.Response)
}
