package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policypal/palgraph/pkg/domain"
	"github.com/policypal/palgraph/pkg/ports"
)

func TestFormatResponse_RegistryAndMetadata(t *testing.T) {
	deps, _, entities, _, _ := testDeps(t)
	entities.AddDocument(ports.Document{ID: docA, Title: "Basel III Accord", Status: ports.DocumentStatusReady, OwnerID: "user-1"})
	node := NewFormatResponse(deps)

	state := userState("what is the minimum ratio")
	state.Action = domain.ActionInquire
	state.ResolvedDocIDs = []string{docA}
	state.Response = "The minimum ratio is 8% [1]."
	state.Citations = []domain.Citation{{ID: 1, SourceType: "document", DocID: docA, Title: "Basel III Accord", Quote: "8%"}}
	state.RetrievalConfidence = domain.ConfidenceHigh
	state.TokensUsed = 420
	state.CostUSD = 0.0042
	state.AppendMessage(domain.NewMessage(domain.RoleAssistant, state.Response))

	out, err := node.Run(context.Background(), state)
	require.NoError(t, err)
	assert.False(t, out.Suspended())

	assert.Equal(t, docA, state.ConversationDocs["Basel III Accord"])

	last, ok := state.LastAssistantMessage()
	require.True(t, ok)
	assert.Equal(t, "high", last.Meta["retrieval_confidence"])
	assert.Equal(t, 420, last.Meta["tokens_used"])
	assert.Equal(t, 0.0042, last.Meta["cost_usd"])
	assert.Equal(t, "inquire", last.Meta["action"])
	assert.Equal(t, state.Citations, last.Meta["citations"])
}

func TestFormatResponse_DefaultsForCancelledTurn(t *testing.T) {
	deps, _, _, _, _ := testDeps(t)
	node := NewFormatResponse(deps)

	state := userState("hmm")
	state.Response = "I wasn't sure what you'd like to do."
	state.AppendMessage(domain.NewMessage(domain.RoleAssistant, state.Response))

	_, err := node.Run(context.Background(), state)
	require.NoError(t, err)

	last, ok := state.LastAssistantMessage()
	require.True(t, ok)
	assert.Equal(t, "low", last.Meta["retrieval_confidence"])
	assert.Equal(t, "inquire", last.Meta["action"])
}

func TestFormatResponse_UnknownIDFallsBackToTurnTitle(t *testing.T) {
	deps, _, _, _, _ := testDeps(t)
	node := NewFormatResponse(deps)

	state := userState("summarize it")
	state.ResolvedDocIDs = []string{docB}
	state.ResolvedDocTitles = map[string]string{docB: "Solvency II Directive"}
	state.AppendMessage(domain.NewMessage(domain.RoleAssistant, "A summary."))

	_, err := node.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, docB, state.ConversationDocs["Solvency II Directive"])
}

func TestFormatResponse_NoAssistantMessage(t *testing.T) {
	deps, _, _, _, _ := testDeps(t)
	node := NewFormatResponse(deps)

	state := userState("hello")
	out, err := node.Run(context.Background(), state)
	require.NoError(t, err)
	assert.False(t, out.Suspended())
}

func TestFormatResponse_RegistryMergePreservesEarlierEntries(t *testing.T) {
	deps, _, entities, _, _ := testDeps(t)
	entities.AddDocument(ports.Document{ID: docB, Title: "Solvency II Directive", Status: ports.DocumentStatusReady, OwnerID: "user-1"})
	node := NewFormatResponse(deps)

	state := userState("now the directive")
	state.ConversationDocs = map[string]string{"Basel III Accord": docA}
	state.ResolvedDocIDs = []string{docB}
	state.AppendMessage(domain.NewMessage(domain.RoleAssistant, "Done."))

	_, err := node.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, docA, state.ConversationDocs["Basel III Accord"])
	assert.Equal(t, docB, state.ConversationDocs["Solvency II Directive"])
}
