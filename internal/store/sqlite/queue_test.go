package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/tgrelay/internal/store"
)

func newTestQueue(t *testing.T, opts ...Option) *Queue {
	t.Helper()
	q, err := Open(filepath.Join(t.TempDir(), "queue.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

// frozenClock returns the same instant for every call so ordering falls back to ids.
func frozenClock() func() time.Time {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func TestEnqueueRejectsEmptyContent(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, store.DirectionOutbound, "")
	var verr *store.ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	require.Equal(t, "content", verr.Field)

	_, err = q.Enqueue(ctx, store.Direction("sideways"), "x")
	require.True(t, errors.As(err, &verr))

	n, err := q.UnprocessedCount(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestDequeueOrderAcrossDirections(t *testing.T) {
	q := newTestQueue(t, WithClock(frozenClock()))
	ctx := context.Background()

	inputs := []struct {
		dir     store.Direction
		content string
	}{
		{store.DirectionOutbound, "o1"},
		{store.DirectionInbound, "i1"},
		{store.DirectionInbound, "i2"},
		{store.DirectionOutbound, "o2"},
	}
	var ids []int64
	for _, in := range inputs {
		id, err := q.Enqueue(ctx, in.dir, in.content)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		require.Greater(t, ids[i], ids[i-1])
	}

	for i, in := range inputs {
		m, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, m)
		require.Equal(t, ids[i], m.ID)
		require.Equal(t, in.dir, m.Direction)
		require.Equal(t, in.content, m.Content)
		require.True(t, m.Processed)
	}

	m, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Nil(t, m)
}

func TestDequeueOrdersByTimestampBeforeID(t *testing.T) {
	var (
		mu  sync.Mutex
		now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	q := newTestQueue(t, WithClock(clock))
	ctx := context.Background()

	_, err := q.Enqueue(ctx, store.DirectionOutbound, "later")
	require.NoError(t, err)

	// A clock step backwards gives the second row an older timestamp.
	mu.Lock()
	now = now.Add(-time.Second)
	mu.Unlock()
	_, err = q.Enqueue(ctx, store.DirectionOutbound, "earlier")
	require.NoError(t, err)

	m, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, "earlier", m.Content)
}

func TestPeekDoesNotMutate(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	m, err := q.Peek(ctx)
	require.NoError(t, err)
	require.Nil(t, m)

	id, err := q.Enqueue(ctx, store.DirectionInbound, "hello")
	require.NoError(t, err)

	first, err := q.Peek(ctx)
	require.NoError(t, err)
	second, err := q.Peek(ctx)
	require.NoError(t, err)
	require.Equal(t, id, first.ID)
	require.Equal(t, *first, *second)
	require.False(t, first.Processed)

	n, err := q.UnprocessedCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestDequeueIfLeavesOtherDirection(t *testing.T) {
	q := newTestQueue(t, WithClock(frozenClock()))
	ctx := context.Background()

	_, err := q.Enqueue(ctx, store.DirectionInbound, "from user")
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, store.DirectionOutbound, "to user")
	require.NoError(t, err)

	m, err := q.DequeueIf(ctx, store.DirectionOutbound)
	require.NoError(t, err)
	require.Nil(t, m, "outbound must not jump an inbound head")

	n, err := q.UnprocessedCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	m, err = q.DequeueIf(ctx, store.DirectionInbound)
	require.NoError(t, err)
	require.Equal(t, "from user", m.Content)

	m, err = q.DequeueIf(ctx, store.DirectionOutbound)
	require.NoError(t, err)
	require.Equal(t, "to user", m.Content)
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtrip.db")
	ctx := context.Background()

	q1, err := Open(path, WithClock(frozenClock()))
	require.NoError(t, err)
	want := []string{"one", "two", "three", "four"}
	for i, c := range want {
		dir := store.DirectionOutbound
		if i%2 == 1 {
			dir = store.DirectionInbound
		}
		_, err := q1.Enqueue(ctx, dir, c)
		require.NoError(t, err)
	}
	require.NoError(t, q1.Close())

	q2, err := Open(path)
	require.NoError(t, err)
	defer q2.Close()

	n, err := q2.UnprocessedCount(ctx)
	require.NoError(t, err)
	require.Equal(t, len(want), n)

	for _, c := range want {
		m, err := q2.Dequeue(ctx)
		require.NoError(t, err)
		require.Equal(t, c, m.Content)
	}
}

func TestConcurrentDequeueClaimsEachMessageOnce(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	const total = 50
	for i := 0; i < total; i++ {
		_, err := q.Enqueue(ctx, store.DirectionOutbound, "m")
		require.NoError(t, err)
	}

	var (
		mu   sync.Mutex
		seen = make(map[int64]int)
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				m, err := q.Dequeue(ctx)
				if err != nil {
					t.Errorf("dequeue: %v", err)
					return
				}
				if m == nil {
					return
				}
				mu.Lock()
				seen[m.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, total)
	for id, n := range seen {
		require.Equal(t, 1, n, "message %d claimed %d times", id, n)
	}
}

func TestStats(t *testing.T) {
	q := newTestQueue(t, WithClock(frozenClock()))
	ctx := context.Background()

	for _, dir := range []store.Direction{store.DirectionOutbound, store.DirectionInbound, store.DirectionInbound} {
		_, err := q.Enqueue(ctx, dir, "x")
		require.NoError(t, err)
	}
	_, err := q.Dequeue(ctx)
	require.NoError(t, err)

	s, err := q.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, store.Stats{PendingInbound: 2, PendingOutbound: 0, Processed: 1}, s)
}

func TestClosedQueueReturnsStorageError(t *testing.T) {
	q, err := Open(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, q.Close())

	_, err = q.Enqueue(context.Background(), store.DirectionOutbound, "x")
	var serr *store.StorageError
	require.True(t, errors.As(err, &serr), "expected StorageError, got %v", err)
	require.Equal(t, "enqueue", serr.Op)
}

func TestMixedDirectionClaimsKeepOrder(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	const total = 60
	for i := 0; i < total; i++ {
		dir := store.DirectionInbound
		if i%3 == 0 {
			dir = store.DirectionOutbound
		}
		_, err := q.Enqueue(ctx, dir, "m")
		require.NoError(t, err)
	}

	var (
		mu      sync.Mutex
		claimed = make(map[int64]int)
		wg      sync.WaitGroup
	)
	// One claimant per direction, so each slice is in claim order.
	order := map[store.Direction][]int64{}
	worker := func(dir store.Direction) {
		defer wg.Done()
		for {
			n, err := q.UnprocessedCount(ctx)
			if err != nil {
				t.Errorf("count: %v", err)
				return
			}
			if n == 0 {
				return
			}
			m, err := q.DequeueIf(ctx, dir)
			if err != nil {
				t.Errorf("dequeue %s: %v", dir, err)
				return
			}
			if m == nil {
				continue
			}
			mu.Lock()
			claimed[m.ID]++
			order[dir] = append(order[dir], m.ID)
			mu.Unlock()
		}
	}
	wg.Add(2)
	go worker(store.DirectionOutbound)
	go worker(store.DirectionInbound)
	wg.Wait()

	require.Len(t, claimed, total)
	for id, c := range claimed {
		require.Equal(t, 1, c, "message %d claimed twice", id)
	}
	for dir, ids := range order {
		for i := 1; i < len(ids); i++ {
			require.Greater(t, ids[i], ids[i-1], "%s claims out of order", dir)
		}
	}
}
