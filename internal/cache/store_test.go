package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/marketflow/internal/config"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	value := []byte("hello")
	require.NoError(t, store.Set(ctx, "greeting", value, 0))
	value[0] = 'j'

	got, err := store.Get(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	require.NoError(t, store.Delete(ctx, "greeting"))
	_, err = store.Get(ctx, "greeting")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "session", []byte("1"), time.Minute))

	now = now.Add(59 * time.Second)
	_, err := store.Get(ctx, "session")
	assert.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = store.Get(ctx, "session")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCreate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Create(ctx, "account", []byte("first"), time.Minute))
	assert.ErrorIs(t, store.Create(ctx, "account", []byte("second"), time.Minute), ErrExists)

	got, err := store.Get(ctx, "account")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)

	// an expired record no longer blocks creation
	now = now.Add(2 * time.Minute)
	require.NoError(t, store.Create(ctx, "account", []byte("third"), 0))
	got, err = store.Get(ctx, "account")
	require.NoError(t, err)
	assert.Equal(t, []byte("third"), got)
}

func TestMemoryStoreCreateConcurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	var created atomic.Int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := CreateJSON(ctx, store, "key", i, 0); err == nil {
				created.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrExists)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	type record struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, SetJSON(ctx, store, "rec", record{Name: "a", Count: 2}, 0))

	var out record
	require.NoError(t, GetJSON(ctx, store, "rec", &out))
	assert.Equal(t, record{Name: "a", Count: 2}, out)

	require.NoError(t, store.Set(ctx, "broken", []byte("{"), 0))
	err := GetJSON(ctx, store, "broken", &out)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestNewWithoutRedis(t *testing.T) {
	store, closeFn, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
	assert.NoError(t, closeFn())
}
