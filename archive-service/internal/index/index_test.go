package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redhat-et/script-archive/archive-service/internal/script"
	"github.com/redhat-et/script-archive/pkg/logger"
	"github.com/redhat-et/script-archive/pkg/storage"
)

func newIndex(t *testing.T) (*Index, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	return New(store, logger.Discard(logger.ComponentIndex)), store
}

func TestLoad_Empty(t *testing.T) {
	x, _ := newIndex(t)
	ids, err := x.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestLoad_Malformed(t *testing.T) {
	ctx := context.Background()
	for _, payload := range []string{"{not json", `{"a":1}`, `[1,2,3]`, `null`} {
		t.Run(payload, func(t *testing.T) {
			x, store := newIndex(t)
			require.NoError(t, store.Put(ctx, script.IndexKey, []byte(payload)))

			ids, err := x.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, ids)
		})
	}
}

func TestLoad_ReadFailure(t *testing.T) {
	x, store := newIndex(t)
	store.FailReads(errors.New("connection reset"))

	_, err := x.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrReadFailed)
}

func TestAppend(t *testing.T) {
	ctx := context.Background()
	x, store := newIndex(t)

	ids, err := x.Append(ctx, "1-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"1-a"}, ids)

	ids, err = x.Append(ctx, "2-b")
	require.NoError(t, err)
	assert.Equal(t, []string{"1-a", "2-b"}, ids)

	raw, err := store.Get(ctx, script.IndexKey)
	require.NoError(t, err)
	assert.JSONEq(t, `["1-a","2-b"]`, string(raw))

	writes := store.Writes()
	ids, err = x.Append(ctx, "1-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"1-a", "2-b"}, ids)
	assert.Equal(t, writes, store.Writes(), "appending a present id must not write")

	ok, err := x.Contains(ctx, "2-b")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = x.Contains(ctx, "3-c")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAppend_WriteFailure(t *testing.T) {
	ctx := context.Background()
	x, store := newIndex(t)
	store.FailWrites(errors.New("gas exhausted"))

	_, err := x.Append(ctx, "1-a")
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrWriteFailed)
}

// Two appenders that both read before either writes lose one id. This is
// the accepted behaviour of the index without verification.
func TestAppend_LostUpdate(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	a := New(store, logger.Discard(logger.ComponentIndex))
	b := New(store, logger.Discard(logger.ComponentIndex))

	seenByA, err := a.Load(ctx)
	require.NoError(t, err)
	_, err = b.Append(ctx, "2-b")
	require.NoError(t, err)
	require.NoError(t, a.Save(ctx, append(seenByA, "1-a")))

	ids, err := a.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1-a"}, ids)
}

func TestSave_Nil(t *testing.T) {
	ctx := context.Background()
	x, store := newIndex(t)
	require.NoError(t, x.Save(ctx, nil))

	raw, err := store.Get(ctx, script.IndexKey)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}
