package nodes

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policypal/palgraph/pkg/domain"
	"github.com/policypal/palgraph/pkg/ports"
)

func TestValidateInputs_ExpandsDocumentSet(t *testing.T) {
	deps, _, entities, _, _ := testDeps(t)
	entities.AddDocument(ports.Document{ID: docA, Title: "Basel III Accord", Status: ports.DocumentStatusReady, OwnerID: "user-1"})
	entities.AddDocument(ports.Document{ID: docB, Title: "Solvency II Directive", Status: ports.DocumentStatusReady, OwnerID: "user-1"})
	entities.AddSet("prudential", docA, docB)
	node := NewValidateInputs(deps)

	state := userState("compare the prudential set")
	state.Action = domain.ActionCompare
	state.SetID = "prudential"

	out, err := node.Run(context.Background(), state)
	require.NoError(t, err)
	assert.False(t, out.Suspended())
	assert.ElementsMatch(t, []string{docA, docB}, state.ResolvedDocIDs)
}

func TestValidateInputs_CompareClearsWebFlag(t *testing.T) {
	deps, _, _, _, _ := testDeps(t)
	node := NewValidateInputs(deps)

	state := userState("compare them")
	state.Action = domain.ActionCompare
	state.EnableWebSearch = true
	state.ResolvedDocIDs = []string{docA, docB}

	_, err := node.Run(context.Background(), state)
	require.NoError(t, err)
	assert.False(t, state.EnableWebSearch)
}

func TestValidateInputs_DocumentFloor(t *testing.T) {
	cases := []struct {
		action domain.Action
		docs   []string
		prompt string
	}{
		{domain.ActionCompare, []string{docA}, "Compare requires at least 2 documents. Please @tag the additional document."},
		{domain.ActionSummarize, nil, "Please @tag the document you'd like to summarize."},
		{domain.ActionAudit, nil, "Please @tag the regulation document you'd like to audit against."},
	}
	for _, tc := range cases {
		t.Run(string(tc.action), func(t *testing.T) {
			deps, _, _, _, _ := testDeps(t)
			node := NewValidateInputs(deps)

			state := userState("go")
			state.Action = tc.action
			state.ResolvedDocIDs = tc.docs

			out, err := node.Run(context.Background(), state)
			require.NoError(t, err)
			require.True(t, out.Suspended())
			assert.Equal(t, domain.SuspendTextInput, out.Suspension().Kind)
			assert.Equal(t, tc.prompt, out.Suspension().Message)
		})
	}
}

func TestValidateInputs_InquireNeedsNoDocuments(t *testing.T) {
	deps, _, _, _, _ := testDeps(t)
	node := NewValidateInputs(deps)

	state := userState("what is operational resilience")
	state.Action = domain.ActionInquire

	out, err := node.Run(context.Background(), state)
	require.NoError(t, err)
	assert.False(t, out.Suspended())
}

func TestValidateInputs_MissingDocResume(t *testing.T) {
	t.Run("valid id merges", func(t *testing.T) {
		deps, _, _, _, _ := testDeps(t)
		node := NewValidateInputs(deps)

		state := userState("compare them")
		state.Action = domain.ActionCompare
		state.ResolvedDocIDs = []string{docA}
		resumeWith(state, docB)

		out, err := node.Run(context.Background(), state)
		require.NoError(t, err)
		assert.False(t, out.Suspended())
		assert.Equal(t, []string{docA, docB}, state.ResolvedDocIDs)
	})

	t.Run("malformed id is ignored", func(t *testing.T) {
		deps, _, _, _, _ := testDeps(t)
		node := NewValidateInputs(deps)

		state := userState("compare them")
		state.Action = domain.ActionCompare
		state.ResolvedDocIDs = []string{docA}
		resumeWith(state, "the other one")

		out, err := node.Run(context.Background(), state)
		require.NoError(t, err)
		assert.False(t, out.Suspended())
		assert.Equal(t, []string{docA}, state.ResolvedDocIDs)
	})

	t.Run("cancel", func(t *testing.T) {
		deps, _, _, _, _ := testDeps(t)
		node := NewValidateInputs(deps)

		state := userState("compare them")
		state.Action = domain.ActionCompare
		state.ResolvedDocIDs = []string{docA}
		resumeWith(state, domain.CancelSentinel)

		out, err := node.Run(context.Background(), state)
		require.NoError(t, err)
		assert.False(t, out.Suspended())
		assert.Equal(t, "Compare requires at least 2 documents. Please @tag them and try again.", state.Response)

		last, ok := state.LastAssistantMessage()
		require.True(t, ok)
		assert.Equal(t, state.Response, last.Content)
	})
}

func TestValidateInputs_AuditNeedsExcerpt(t *testing.T) {
	deps, _, _, _, _ := testDeps(t)
	node := NewValidateInputs(deps)

	state := userState("audit this against @Regulation")
	state.Action = domain.ActionAudit
	state.ResolvedDocIDs = []string{docA}

	out, err := node.Run(context.Background(), state)
	require.NoError(t, err)
	require.True(t, out.Suspended())
	assert.Equal(t, domain.SuspendTextInput, out.Suspension().Kind)
	assert.Equal(t, "Please enter the text you'd like to audit (e.g. an email or policy excerpt).", out.Suspension().Message)
}

func TestValidateInputs_AuditLongExcerptPasses(t *testing.T) {
	deps, _, _, _, _ := testDeps(t)
	node := NewValidateInputs(deps)

	excerpt := strings.Repeat("our retention period for customer records is seven years ", 2)
	state := userState("audit this: " + excerpt)
	state.Action = domain.ActionAudit
	state.ResolvedDocIDs = []string{docA}

	out, err := node.Run(context.Background(), state)
	require.NoError(t, err)
	assert.False(t, out.Suspended())
}

func TestValidateInputs_AuditExcerptResume(t *testing.T) {
	t.Run("text appends a user message", func(t *testing.T) {
		deps, _, _, _, _ := testDeps(t)
		node := NewValidateInputs(deps)

		state := userState("audit this against @Regulation")
		state.Action = domain.ActionAudit
		state.ResolvedDocIDs = []string{docA}
		excerpt := "All customer records are deleted after thirty days unless a legal hold applies to the account."
		resumeWith(state, excerpt)

		out, err := node.Run(context.Background(), state)
		require.NoError(t, err)
		assert.False(t, out.Suspended())

		last, ok := state.LastUserMessage()
		require.True(t, ok)
		assert.Equal(t, excerpt, last.Content)
	})

	t.Run("cancel", func(t *testing.T) {
		deps, _, _, _, _ := testDeps(t)
		node := NewValidateInputs(deps)

		state := userState("audit this against @Regulation")
		state.Action = domain.ActionAudit
		state.ResolvedDocIDs = []string{docA}
		resumeWith(state, domain.CancelSentinel)

		out, err := node.Run(context.Background(), state)
		require.NoError(t, err)
		assert.False(t, out.Suspended())
		assert.Contains(t, state.Response, "I need the text you'd like to audit")
	})
}
