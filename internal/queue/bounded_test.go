package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundedQueue_FIFO(t *testing.T) {
	q := New[int](10)
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Put(i, false, 0))
	}
	assert.Equal(t, 10, q.Size())

	for i := 0; i < 10; i++ {
		v, err := q.Get(false, 0)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.True(t, q.IsEmpty())
}

func TestBoundedQueue_NonBlockingFullAndEmpty(t *testing.T) {
	q := New[string](2)

	_, err := q.Get(false, 0)
	assert.ErrorIs(t, err, ErrEmpty)

	require.NoError(t, q.Put("a", false, 0))
	require.NoError(t, q.Put("b", false, 0))
	assert.ErrorIs(t, q.Put("c", false, 0), ErrFull)
	assert.Equal(t, 2, q.Size())
}

func TestBoundedQueue_Timeouts(t *testing.T) {
	q := New[int](1)

	start := time.Now()
	_, err := q.Get(true, 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrEmpty)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	require.NoError(t, q.Put(1, false, 0))
	start = time.Now()
	assert.ErrorIs(t, q.Put(2, true, 30*time.Millisecond), ErrFull)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestBoundedQueue_BlockingGetWakesOnPut(t *testing.T) {
	q := New[int](1)
	got := make(chan int, 1)

	go func() {
		v, err := q.Get(true, time.Second)
		if err == nil {
			got <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Put(42, false, 0))

	select {
	case v := <-got:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("blocked Get was not woken by Put")
	}
}

func TestBoundedQueue_BlockingPutWakesOnGet(t *testing.T) {
	q := New[int](1)
	require.NoError(t, q.Put(1, false, 0))

	done := make(chan error, 1)
	go func() { done <- q.Put(2, true, time.Second) }()

	time.Sleep(10 * time.Millisecond)
	v, err := q.Get(false, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, <-done)
	v, err = q.Get(false, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestBoundedQueue_Unbounded(t *testing.T) {
	q := New[int](0)
	for i := 0; i < 5000; i++ {
		require.NoError(t, q.Put(i, false, 0))
	}
	assert.Equal(t, 5000, q.Size())
	assert.Equal(t, 0, q.Capacity())
	for i := 0; i < 5000; i++ {
		v, err := q.Get(false, 0)
		require.NoError(t, err)
		require.Equal(t, i, v)
	}
}

func TestBoundedQueue_ConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	const producers, perProducer = 4, 2000
	q := New[[2]int](64)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.Put([2]int{p, i}, true, 0)
			}
		}(p)
	}

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	for n := 0; n < producers*perProducer; n++ {
		item, err := q.Get(true, time.Second)
		require.NoError(t, err)
		require.Greater(t, item[1], last[item[0]], "producer %d out of order", item[0])
		last[item[0]] = item[1]
	}
	wg.Wait()
	assert.True(t, q.IsEmpty())
}
