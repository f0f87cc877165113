//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veribridge/internal/verification/models"
	id "veribridge/pkg/domain"
	"veribridge/pkg/platform/sentinel"
	"veribridge/pkg/testutil/containers"
)

func newIntegrationStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()
	store := New(pc.DB)
	require.NoError(t, store.EnsureSchema(ctx))
	return store, ctx
}

func newSession(t *testing.T, key string) *models.VerificationSession {
	t.Helper()
	session, err := models.NewSession(id.CorrelationKey(key), "prov-1", "+15551234567", "Ana", time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, err)
	return session
}

func TestPostgresStore_PutGetExecute(t *testing.T) {
	store, ctx := newIntegrationStore(t)

	t.Run("round trips a session", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, newSession(t, "key-a")))

		found, err := store.Get(ctx, "key-a")
		require.NoError(t, err)
		assert.Equal(t, id.RequesterID("+15551234567"), found.RequesterID)
		assert.Equal(t, models.StatusCreated, found.Status)
		assert.Nil(t, found.NotifiedAt)
	})

	t.Run("put is an upsert", func(t *testing.T) {
		first := newSession(t, "key-b")
		require.NoError(t, store.Put(ctx, first))

		second := newSession(t, "key-b")
		second.DisplayName = "Restarted"
		require.NoError(t, store.Put(ctx, second))

		found, err := store.Get(ctx, "key-b")
		require.NoError(t, err)
		assert.Equal(t, "Restarted", found.DisplayName)
	})

	t.Run("missing key yields ErrNotFound", func(t *testing.T) {
		_, err := store.Get(ctx, "nope")
		require.ErrorIs(t, err, sentinel.ErrNotFound)

		_, err = store.Execute(ctx, "nope",
			func(*models.VerificationSession) error { return nil },
			func(*models.VerificationSession) {},
		)
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("execute persists decision and notified time", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, newSession(t, "key-c")))

		now := time.Now().UTC().Truncate(time.Microsecond)
		updated, err := store.Execute(ctx, "key-c",
			func(*models.VerificationSession) error { return nil },
			func(sess *models.VerificationSession) {
				sess.ApplyDecision(models.OutcomeApproved, "", "", now)
				sess.MarkNotified(now)
			},
		)
		require.NoError(t, err)
		assert.Equal(t, models.StatusApproved, updated.Status)

		found, err := store.Get(ctx, "key-c")
		require.NoError(t, err)
		assert.Equal(t, models.StatusApproved, found.Status)
		require.NotNil(t, found.NotifiedAt)
		assert.WithinDuration(t, now, *found.NotifiedAt, time.Millisecond)
	})

	t.Run("validate failure rolls back", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, newSession(t, "key-d")))

		_, err := store.Execute(ctx, "key-d",
			func(*models.VerificationSession) error { return sentinel.ErrInvalidState },
			func(sess *models.VerificationSession) { sess.Status = models.StatusApproved },
		)
		require.ErrorIs(t, err, sentinel.ErrInvalidState)

		found, err := store.Get(ctx, "key-d")
		require.NoError(t, err)
		assert.Equal(t, models.StatusCreated, found.Status)
	})
}

// TestPostgresStore_ExecuteContention serializes concurrent updates on the
// row lock; no increment may be lost.
func TestPostgresStore_ExecuteContention(t *testing.T) {
	store, ctx := newIntegrationStore(t)
	require.NoError(t, store.Put(ctx, newSession(t, "key-e")))

	const workers = 8
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := store.Execute(ctx, "key-e",
				func(*models.VerificationSession) error { return nil },
				func(sess *models.VerificationSession) { sess.Reason += "x" },
			)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	found, err := store.Get(ctx, "key-e")
	require.NoError(t, err)
	assert.Len(t, found.Reason, workers)
}
