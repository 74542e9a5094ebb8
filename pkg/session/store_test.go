package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harun/jiya/pkg/conversation"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStores(t *testing.T) map[string]Store {
	t.Helper()

	fileStore, err := NewFileStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	stores := map[string]Store{
		"memory": NewMemoryStore(zerolog.Nop()),
		"file":   fileStore,
	}
	t.Cleanup(func() {
		for _, store := range stores {
			store.Close()
		}
	})
	return stores
}

func TestGetOrCreate(t *testing.T) {
	for name, store := range setupStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("generates id when none supplied", func(t *testing.T) {
				conv, err := store.GetOrCreate(ctx, "")
				require.NoError(t, err)
				assert.NotEmpty(t, conv.SessionID)
				assert.True(t, conv.Empty())
				assert.Equal(t, conversation.PhaseAwaitingIdentity, conv.Phase)
			})

			t.Run("unknown id starts fresh, not an error", func(t *testing.T) {
				conv, err := store.GetOrCreate(ctx, "never-seen-before")
				require.NoError(t, err)
				assert.Equal(t, "never-seen-before", conv.SessionID)
				assert.True(t, conv.Empty())
			})

			t.Run("round trip preserves turns and phase", func(t *testing.T) {
				conv, err := store.GetOrCreate(ctx, "round-trip")
				require.NoError(t, err)

				conv.CustomerID = "C1001"
				conv.AppendSeed("Start an outbound collection call for customer id C1001.")
				conv.AppendAgentReply("Am I speaking with Asha Rao?")
				conv.AppendHuman("yes")
				require.Equal(t, conversation.PhaseAwaitingLoanAck, conv.Phase)

				require.NoError(t, store.Save(ctx, conv))

				loaded, err := store.GetOrCreate(ctx, "round-trip")
				require.NoError(t, err)
				assert.Equal(t, "C1001", loaded.CustomerID)
				assert.Equal(t, conversation.PhaseAwaitingLoanAck, loaded.Phase)
				require.Len(t, loaded.Turns, 3)
				assert.True(t, loaded.Turns[0].Seed)
				assert.Equal(t, conversation.RoleAgent, loaded.Turns[1].Role)
			})

			t.Run("unsaved conversations are not stored", func(t *testing.T) {
				_, err := store.GetOrCreate(ctx, "peeked")
				require.NoError(t, err)

				ids, err := store.List(ctx)
				require.NoError(t, err)
				assert.NotContains(t, ids, "peeked")
			})

			t.Run("delete removes session", func(t *testing.T) {
				conv, err := store.GetOrCreate(ctx, "to-delete")
				require.NoError(t, err)
				conv.AppendSeed("seed")
				require.NoError(t, store.Save(ctx, conv))

				require.NoError(t, store.Delete(ctx, "to-delete"))

				ids, err := store.List(ctx)
				require.NoError(t, err)
				assert.NotContains(t, ids, "to-delete")
			})
		})
	}
}

func TestStoreIsolation(t *testing.T) {
	t.Run("memory store hands out copies", func(t *testing.T) {
		store := NewMemoryStore(zerolog.Nop())
		ctx := context.Background()

		conv, err := store.GetOrCreate(ctx, "iso")
		require.NoError(t, err)
		conv.AppendSeed("seed")
		require.NoError(t, store.Save(ctx, conv))

		first, err := store.GetOrCreate(ctx, "iso")
		require.NoError(t, err)
		first.AppendHuman("mutation after load")

		second, err := store.GetOrCreate(ctx, "iso")
		require.NoError(t, err)
		assert.Len(t, second.Turns, 1)
	})
}

func TestFileStoreValidation(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	for _, bad := range []string{"../escape", "a/b", `a\b`, "nul\x00byte"} {
		_, err := store.GetOrCreate(ctx, bad)
		assert.Error(t, err, "id %q should be rejected", bad)
	}

	conv := conversation.New("../escape")
	assert.Error(t, store.Save(ctx, conv))
}

func TestSweepIdle(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store := NewMemoryStore(zerolog.Nop())

		fresh, err := store.GetOrCreate(ctx, "fresh")
		require.NoError(t, err)
		fresh.AppendSeed("seed")
		require.NoError(t, store.Save(ctx, fresh))

		stale, err := store.GetOrCreate(ctx, "stale")
		require.NoError(t, err)
		stale.AppendSeed("seed")
		stale.UpdatedAt = time.Now().Add(-48 * time.Hour)
		require.NoError(t, store.Save(ctx, stale))

		removed, err := store.SweepIdle(ctx, 24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"fresh"}, ids)
	})

	t.Run("file", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewFileStore(dir, zerolog.Nop())
		require.NoError(t, err)
		defer store.Close()

		stale, err := store.GetOrCreate(ctx, "stale")
		require.NoError(t, err)
		stale.AppendSeed("seed")
		require.NoError(t, store.Save(ctx, stale))

		// Age the file on disk.
		old := time.Now().Add(-48 * time.Hour)
		require.NoError(t, os.Chtimes(filepath.Join(dir, "stale.json"), old, old))

		removed, err := store.SweepIdle(ctx, 24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestGenerateSessionID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateSessionID()
		assert.NotEmpty(t, id)
		assert.False(t, seen[id], "ids must be unique")
		seen[id] = true
	}
}
