package ports

import (
	"context"
	"testing"
	"time"

	"github.com/policypal/palgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract verifies that a SnapshotStore implementation
// adheres to the interface contract. Adapter test files call this with a
// freshly constructed store.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	threadID := "contract-thread-" + time.Now().Format("20060102150405.000")

	t.Run("PutAndGet", func(t *testing.T) {
		state := domain.NewState(threadID, "user-1")
		state.AppendMessage(domain.Message{ID: "m1", Role: domain.RoleUser, Content: "hello"})
		state.ConversationDocs["Policy A"] = "id1"
		state.ResolvedDocIDs = []string{"id1"}
		state.Pending = &domain.SuspensionRequest{
			Kind:    domain.SuspendDocChoice,
			Message: "Which document?",
			Options: []domain.Option{{ID: "id1", Label: "Policy A"}, domain.AllOption()},
		}

		require.NoError(t, store.Put(ctx, threadID, state))

		loaded, err := store.Get(ctx, threadID)
		require.NoError(t, err)
		assert.Equal(t, state.ThreadID, loaded.ThreadID)
		assert.Equal(t, state.Messages, loaded.Messages)
		assert.Equal(t, state.ConversationDocs, loaded.ConversationDocs)
		assert.Equal(t, state.ResolvedDocIDs, loaded.ResolvedDocIDs)
		require.NotNil(t, loaded.Pending)
		assert.Equal(t, state.Pending.Kind, loaded.Pending.Kind)
		assert.Equal(t, state.Pending.Options, loaded.Pending.Options)
	})

	t.Run("GetIsolatedFromStore", func(t *testing.T) {
		loaded, err := store.Get(ctx, threadID)
		require.NoError(t, err)
		loaded.ConversationDocs["Policy A"] = "mutated"
		loaded.Messages[0].Content = "mutated"

		again, err := store.Get(ctx, threadID)
		require.NoError(t, err)
		assert.Equal(t, "id1", again.ConversationDocs["Policy A"])
		assert.Equal(t, "hello", again.Messages[0].Content)
	})

	t.Run("Overwrite", func(t *testing.T) {
		state := domain.NewState(threadID, "user-1")
		state.Response = "final"
		require.NoError(t, store.Put(ctx, threadID, state))

		loaded, err := store.Get(ctx, threadID)
		require.NoError(t, err)
		assert.Equal(t, "final", loaded.Response)
		assert.Nil(t, loaded.Pending)
	})

	t.Run("GetNonExistent", func(t *testing.T) {
		_, err := store.Get(ctx, "missing-"+threadID)
		assert.ErrorIs(t, err, domain.ErrThreadNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, threadID, domain.NewState(threadID, "user-1")))
		require.NoError(t, store.Delete(ctx, threadID))

		_, err := store.Get(ctx, threadID)
		assert.ErrorIs(t, err, domain.ErrThreadNotFound)
	})

	t.Run("List", func(t *testing.T) {
		id1, id2 := threadID+"-1", threadID+"-2"
		require.NoError(t, store.Put(ctx, id1, domain.NewState(id1, "user-1")))
		require.NoError(t, store.Put(ctx, id2, domain.NewState(id2, "user-1")))

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
