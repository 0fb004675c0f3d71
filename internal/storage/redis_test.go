package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStore_PutGet(t *testing.T) {
	store, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "user-1", []byte(`{"schemaVersion":2}`)))

	raw, err := mr.Get("dialin:doc:user-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"schemaVersion":2}`, raw)

	got, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"schemaVersion":2}`, string(got))
}

func TestRedisStore_Missing(t *testing.T) {
	store, _ := newTestRedis(t)

	_, err := store.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_RequireAuth(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("secret")

	_, err := NewRedisStore(context.Background(), RedisOptions{Addr: mr.Addr()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestRedisStore_ServerGone(t *testing.T) {
	store, mr := newTestRedis(t)
	mr.Close()

	_, err := store.Get(context.Background(), "user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
	assert.NotErrorIs(t, err, ErrPermissionDenied)
}

type fakeRedisError string

func (e fakeRedisError) Error() string { return string(e) }
func (fakeRedisError) RedisError()     {}

func TestClassifyRedisError(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{redis.Nil, ErrNotFound},
		{fakeRedisError("NOAUTH Authentication required."), ErrPermissionDenied},
		{fakeRedisError("NOPERM this user has no permissions to run the 'get' command"), ErrPermissionDenied},
		{fakeRedisError("WRONGPASS invalid username-password pair"), ErrPermissionDenied},
		{fakeRedisError("LOADING Redis is loading the dataset in memory"), ErrTransient},
		{errors.New("dial tcp: connection refused"), ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.ErrorIs(t, classifyRedisError(tt.err), tt.want)
		})
	}
}
