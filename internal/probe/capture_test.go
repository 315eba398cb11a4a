package probe

import (
	"NetSentinel/internal/model"
	"NetSentinel/internal/queue"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// sliceSource emits its frames and then, unless finite, waits for cancellation.
type sliceSource struct {
	frames []model.RawFrame
	finite bool
	err    error
}

func (s *sliceSource) Name() string { return "slice" }

func (s *sliceSource) Run(ctx context.Context, emit func(model.RawFrame)) error {
	for _, f := range s.frames {
		if ctx.Err() != nil {
			return nil
		}
		emit(f)
	}
	if s.err != nil {
		return s.err
	}
	if !s.finite {
		<-ctx.Done()
	}
	return nil
}

func frames(n int) []model.RawFrame {
	out := make([]model.RawFrame, n)
	for i := range out {
		out[i] = model.RawFrame{Timestamp: time.Unix(int64(i), 0), Data: []byte{byte(i)}}
	}
	return out
}

func TestCapture_DropsWhenQueueFull(t *testing.T) {
	q := queue.New[model.RawFrame](2)
	c := NewCapture(&sliceSource{frames: frames(5)}, q, zaptest.NewLogger(t))

	c.Start()
	require.Eventually(t, func() bool { return c.Captured() == 5 }, time.Second, time.Millisecond)
	assert.True(t, c.IsAlive())
	c.Stop()

	assert.False(t, c.IsAlive())
	assert.Equal(t, uint64(3), c.Dropped())
	assert.Equal(t, 2, q.Size())

	first, err := q.Get(false, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(0), first.Data[0])
}

func TestCapture_BlockWhenFullKeepsEveryFrame(t *testing.T) {
	q := queue.New[model.RawFrame](2)
	c := NewCapture(&sliceSource{frames: frames(50), finite: true}, q, zaptest.NewLogger(t), WithBlockWhenFull())

	c.Start()
	var got []byte
	for len(got) < 50 {
		f, err := q.Get(true, time.Second)
		require.NoError(t, err)
		got = append(got, f.Data[0])
	}
	<-c.Done()

	assert.False(t, c.IsAlive())
	assert.Zero(t, c.Dropped())
	for i, b := range got {
		assert.Equal(t, byte(i), b)
	}
	c.Stop()
}

func TestCapture_SourceErrorEndsRun(t *testing.T) {
	q := queue.New[model.RawFrame](10)
	c := NewCapture(&sliceSource{err: errors.New("no such device")}, q, zaptest.NewLogger(t))

	c.Start()
	<-c.Done()
	assert.False(t, c.IsAlive())
	assert.EqualError(t, c.Err(), "no such device")
	c.Stop()
}

func TestCapture_LifecycleMisuse(t *testing.T) {
	q := queue.New[model.RawFrame](10)
	c := NewCapture(&sliceSource{}, q, zaptest.NewLogger(t))

	assert.Nil(t, c.Done())
	c.Stop()
	assert.False(t, c.IsAlive())

	c.Start()
	c.Start()
	assert.True(t, c.IsAlive())
	c.Stop()
	c.Stop()
	assert.False(t, c.IsAlive())
}
