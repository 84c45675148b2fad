package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"auto-order/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(0)

	_, err := m.Get(ctx, 1)
	assert.True(t, apperr.NotFound.Has(err))

	require.NoError(t, m.Put(ctx, &Session{UserID: 1, Qty: 2}))
	got, err := m.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Qty)

	got.Qty = 9
	again, _ := m.Get(ctx, 1)
	assert.Equal(t, 2, again.Qty, "stored session is a copy")

	require.NoError(t, m.Delete(ctx, 1))
	_, err = m.Get(ctx, 1)
	assert.True(t, apperr.NotFound.Has(err))
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(time.Minute)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Put(ctx, &Session{UserID: 1}))
	now = now.Add(2 * time.Minute)

	_, err := m.Get(ctx, 1)
	assert.True(t, apperr.NotFound.Has(err))
}

func TestMemoryStore_LockSerializesUser(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(0)
	require.NoError(t, m.Put(ctx, &Session{UserID: 1, Qty: 0}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(ctx, 1)
			if err != nil {
				return
			}
			defer unlock()
			s, _ := m.Get(ctx, 1)
			s.Qty++
			_ = m.Put(ctx, s)
		}()
	}
	wg.Wait()

	s, err := m.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 50, s.Qty)
}

func TestMemoryStore_LockHonoursContext(t *testing.T) {
	m := NewMemoryStore(0)
	unlock, err := m.Lock(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock2, err := m.Lock(context.Background(), 1)
	require.NoError(t, err)
	unlock2()
}
