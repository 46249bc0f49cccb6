package query

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	mu     sync.Mutex
	hits   map[string]int
	misses map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{hits: map[string]int{}, misses: map[string]int{}}
}

func (o *countingObserver) CacheHit(key Key) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hits[key.Entity()]++
}

func (o *countingObserver) CacheMiss(key Key) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.misses[key.Entity()]++
}

func counter(calls *int32, val ...string) func(context.Context) ([]string, error) {
	return func(context.Context) ([]string, error) {
		atomic.AddInt32(calls, 1)
		return val, nil
	}
}

func TestKey(t *testing.T) {
	k := K("attendance", "c1", "2024-03-01")
	assert.Equal(t, K("attendance", "c1", "2024-03-01").String(), k.String())
	assert.NotEqual(t, K("attendance", "c1").String(), k.String())
	assert.True(t, k.HasPrefix(K("attendance")))
	assert.True(t, k.HasPrefix(K("attendance", "c1")))
	assert.False(t, k.HasPrefix(K("attendance", "c2")))
	assert.False(t, K("attendance").HasPrefix(k))
	assert.True(t, K("roster", 7).HasPrefix(K("roster", "7")))
	assert.Equal(t, "attendance", k.Entity())
}

func TestFetch_freshAndStale(t *testing.T) {
	obs := newCountingObserver()
	cache := NewCache(5*time.Second, obs)
	now := time.Now()
	cache.now = func() time.Time { return now }
	cl := cache.Scope("u1")
	ctx := context.Background()

	var calls int32
	fn := counter(&calls, "Algebra101")

	data, err := Fetch(ctx, cl, K("courses"), fn)
	require.NoError(t, err)
	assert.Equal(t, []string{"Algebra101"}, data)

	_, err = Fetch(ctx, cl, K("courses"), fn)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "fresh data is served from cache")
	assert.Equal(t, 1, obs.hits["courses"])
	assert.Equal(t, 1, obs.misses["courses"])

	now = now.Add(6 * time.Second)
	_, err = Fetch(ctx, cl, K("courses"), fn)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls), "stale data is refetched")

	_, err = Fetch(ctx, cl, K("courses"), fn, StaleTime(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFetch_coalesces(t *testing.T) {
	cl := NewCache(time.Minute).Scope("u1")
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	fn := func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := Fetch(ctx, cl, K("roster", "c1"), fn)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	<-started
	time.Sleep(20 * time.Millisecond) // let the other callers join the flight
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestInvalidate(t *testing.T) {
	cache := NewCache(time.Hour)
	cl := cache.Scope("u1")
	other := cache.Scope("u2")
	ctx := context.Background()

	var attendance, roster, otherCalls int32
	_, _ = Fetch(ctx, cl, K("attendance", "c1", "2024-03-01"), counter(&attendance))
	_, _ = Fetch(ctx, cl, K("attendance", "c1", "2024-03-02"), counter(&attendance))
	_, _ = Fetch(ctx, cl, K("roster", "c1"), counter(&roster))
	_, _ = Fetch(ctx, other, K("attendance", "c1", "2024-03-01"), counter(&otherCalls))
	require.EqualValues(t, 2, attendance)

	cl.Invalidate(K("attendance", "c1", "2024-03-01"))
	_, _ = Fetch(ctx, cl, K("attendance", "c1", "2024-03-01"), counter(&attendance))
	_, _ = Fetch(ctx, cl, K("attendance", "c1", "2024-03-02"), counter(&attendance))
	assert.EqualValues(t, 3, attendance, "only the listed key is refetched")

	cl.Invalidate(K("attendance"))
	_, _ = Fetch(ctx, cl, K("attendance", "c1", "2024-03-01"), counter(&attendance))
	_, _ = Fetch(ctx, cl, K("attendance", "c1", "2024-03-02"), counter(&attendance))
	_, _ = Fetch(ctx, cl, K("roster", "c1"), counter(&roster))
	_, _ = Fetch(ctx, other, K("attendance", "c1", "2024-03-01"), counter(&otherCalls))
	assert.EqualValues(t, 5, attendance, "prefix invalidation")
	assert.EqualValues(t, 1, roster, "unrelated keys untouched")
	assert.EqualValues(t, 1, otherCalls, "other scopes untouched")
}

func TestInvalidate_inFlight(t *testing.T) {
	cl := NewCache(time.Hour).Scope("u1")
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		<-started
		cl.Invalidate(K("my-enrollments"))
		close(release)
	}()

	_, err := Fetch(ctx, cl, K("my-enrollments"), func(context.Context) (string, error) {
		close(started)
		<-release
		return "old", nil
	})
	require.NoError(t, err)

	var calls int32
	v, err := Fetch(ctx, cl, K("my-enrollments"), func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "new", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "new", v, "a fetch that began before the invalidation is not fresh")
	assert.EqualValues(t, 1, calls)
}

func TestInvalidate_detachesFlight(t *testing.T) {
	cl := NewCache(time.Hour).Scope("u1")
	ctx := context.Background()
	key := K("messages", "u2")

	release := make(chan struct{})
	started := make(chan struct{})
	oldDone := make(chan string, 1)
	go func() {
		v, err := Fetch(ctx, cl, key, func(context.Context) (string, error) {
			close(started)
			<-release
			return "version 0", nil
		})
		assert.NoError(t, err)
		oldDone <- v
	}()
	<-started

	// the server changed while the first flight is still on the wire
	cl.Invalidate(K("messages"))
	v, err := Fetch(ctx, cl, key, func(context.Context) (string, error) {
		return "version 1", nil
	}, Refetch())
	require.NoError(t, err)
	assert.Equal(t, "version 1", v, "a fetch issued after the invalidation does not join the old flight")

	close(release)
	assert.Equal(t, "version 0", <-oldDone, "the old flight still answers its own callers")

	var calls int32
	v, err = Fetch(ctx, cl, key, func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "version 2", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "version 1", v, "the detached result never replaces the newer entry")
	assert.EqualValues(t, 0, calls)
}

func TestCache_sweep(t *testing.T) {
	cache := NewCache(5 * time.Second)
	now := time.Now()
	cache.now = func() time.Time { return now }
	cl := cache.Scope("u1")
	ctx := context.Background()

	var calls int32
	for _, q := range []string{"ja", "jan", "jane"} {
		_, err := Fetch(ctx, cl, K("user-search", q), counter(&calls))
		require.NoError(t, err)
	}
	require.Equal(t, 3, cache.Len())

	now = now.Add(GCTime - time.Second)
	_, err := Fetch(ctx, cl, K("user-search", "jane"), counter(&calls), StaleTime(time.Hour))
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = Fetch(ctx, cl, K("courses"), counter(&calls))
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len(), "entries unused for GCTime are dropped")
	_, ok := Peek[[]string](cl, K("user-search", "jane"))
	assert.True(t, ok, "recently used entries survive")
	_, ok = Peek[[]string](cl, K("user-search", "ja"))
	assert.False(t, ok)
}

func TestFetch_errorsNotCached(t *testing.T) {
	cl := NewCache(time.Hour).Scope("u1")
	ctx := context.Background()
	boom := errors.New("boom")

	var calls int32
	fn := func(context.Context) (int, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return 0, boom
		}
		return 1, nil
	}

	_, err := Fetch(ctx, cl, K("payments"), fn)
	assert.Equal(t, boom, err)
	v, err := Fetch(ctx, cl, K("payments"), fn)
	assert.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.EqualValues(t, 2, calls)
}

func TestFetch_disabled(t *testing.T) {
	cl := NewCache(time.Hour).Scope("u1")
	var calls int32

	_, err := Fetch(context.Background(), cl, K("users", "j"), counter(&calls), Enabled(len("j") >= 2))
	assert.Equal(t, ErrDisabled, err)
	assert.EqualValues(t, 0, calls)
}

func TestClient_Reset(t *testing.T) {
	cache := NewCache(time.Hour)
	cl := cache.Scope("u1")
	ctx := context.Background()
	var calls int32
	_, _ = Fetch(ctx, cl, K("courses"), counter(&calls))
	_, _ = Fetch(ctx, cache.Scope("u2"), K("courses"), counter(&calls))
	require.Equal(t, 2, cache.Len())

	cl.Reset()
	assert.Equal(t, 1, cache.Len())
	_, ok := Peek[[]string](cl, K("courses"))
	assert.False(t, ok)
}

func TestPoll(t *testing.T) {
	cl := NewCache(time.Hour).Scope("u1")
	var calls int32
	got := make(chan int, 10)

	p := Poll(context.Background(), cl, K("message-count"), 10*time.Millisecond,
		func(context.Context) (int, error) {
			return int(atomic.AddInt32(&calls, 1)), nil
		},
		func(v int, err error) {
			assert.NoError(t, err)
			got <- v
		},
	)

	for want := 1; want <= 3; want++ {
		select {
		case v := <-got:
			assert.Equal(t, want, v)
		case <-time.After(time.Second):
			t.Fatalf("poll result %d never arrived", want)
		}
	}
	p.Stop()

	select {
	case <-p.Done():
	default:
		t.Fatal("poller still running after Stop")
	}
	n := atomic.LoadInt32(&calls)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, atomic.LoadInt32(&calls), "no fetch after Stop")
}
