package domain_test

import (
	"testing"

	"github.com/policypal/palgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_RecentContext(t *testing.T) {
	s := domain.NewState("t1", "u1")
	s.AppendMessage(domain.Message{ID: "1", Role: domain.RoleUser, Content: "first"})
	s.AppendMessage(domain.Message{ID: "2", Role: domain.RoleAssistant, Content: "reply"})
	s.AppendMessage(domain.Message{ID: "3", Role: domain.RoleSystem, Content: "sys"})
	s.AppendMessage(domain.Message{ID: "4", Role: domain.RoleUser, Content: "second"})
	s.AppendMessage(domain.Message{ID: "5", Role: domain.RoleUser, Content: "latest"})

	ctx := s.RecentContext(5, false)
	require.Len(t, ctx, 3)
	assert.Equal(t, "first", ctx[0].Content)
	assert.Equal(t, "reply", ctx[1].Content)
	assert.Equal(t, "second", ctx[2].Content)

	withLatest := s.RecentContext(2, true)
	require.Len(t, withLatest, 2)
	assert.Equal(t, "second", withLatest[0].Content)
	assert.Equal(t, "latest", withLatest[1].Content)
}

func TestState_KnownIDs(t *testing.T) {
	s := domain.NewState("t1", "u1")
	s.ConversationDocs = map[string]string{"Policy A": "id1"}
	s.ExplicitDocIDs = []string{"id2"}

	known := s.KnownIDs()
	assert.True(t, known["id1"])
	assert.True(t, known["id2"])
	assert.False(t, known["id3"])
}

func TestState_ReplaceMessage(t *testing.T) {
	s := domain.NewState("t1", "u1")
	s.AppendMessage(domain.Message{ID: "a", Role: domain.RoleAssistant, Content: "draft"})

	ok := s.ReplaceMessage(domain.Message{ID: "a", Role: domain.RoleAssistant, Content: "stamped"})
	require.True(t, ok)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, "stamped", s.Messages[0].Content)

	assert.False(t, s.ReplaceMessage(domain.Message{ID: "missing"}))
}

func TestState_ResetTurnKeepsRegistryAndMessages(t *testing.T) {
	s := domain.NewState("t1", "u1")
	s.AppendMessage(domain.NewMessage(domain.RoleUser, "hello"))
	s.ConversationDocs["Policy A"] = "id1"
	s.ResolvedDocIDs = []string{"id1"}
	s.Response = "answer"
	s.TokensUsed = 42
	s.Pending = &domain.SuspensionRequest{Kind: domain.SuspendTextInput, Message: "m"}

	s.ResetTurn()

	assert.Len(t, s.Messages, 1)
	assert.Equal(t, "id1", s.ConversationDocs["Policy A"])
	assert.Empty(t, s.ResolvedDocIDs)
	assert.Empty(t, s.Response)
	assert.Zero(t, s.TokensUsed)
	assert.Nil(t, s.Pending)
}

func TestState_CloneIsDeep(t *testing.T) {
	s := domain.NewState("t1", "u1")
	s.AppendMessage(domain.Message{ID: "m", Role: domain.RoleUser, Content: "hi", Meta: map[string]any{"k": "v"}})
	s.ConversationDocs["Policy A"] = "id1"
	s.ResolvedDocIDs = []string{"id1"}
	s.Pending = &domain.SuspensionRequest{Kind: domain.SuspendDocChoice, Options: []domain.Option{{ID: "id1"}}}

	clone := s.Clone()
	clone.Messages[0].Content = "changed"
	clone.Messages[0].Meta["k"] = "changed"
	clone.ConversationDocs["Policy A"] = "other"
	clone.ResolvedDocIDs[0] = "other"
	clone.Pending.Options[0].ID = "other"

	assert.Equal(t, "hi", s.Messages[0].Content)
	assert.Equal(t, "v", s.Messages[0].Meta["k"])
	assert.Equal(t, "id1", s.ConversationDocs["Policy A"])
	assert.Equal(t, "id1", s.ResolvedDocIDs[0])
	assert.Equal(t, "id1", s.Pending.Options[0].ID)
}

func TestResume_Cancel(t *testing.T) {
	assert.True(t, domain.Cancel().Canceled())
	assert.False(t, domain.Resume{Value: ""}.Canceled())
	assert.False(t, domain.Resume{Value: "id1"}.Canceled())
}
