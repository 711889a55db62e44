package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   []string
	results []error
}

func (f *fakeRunner) Run(ctx context.Context, script string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, script)
	if len(f.results) == 0 {
		return nil, nil
	}
	err := f.results[0]
	f.results = f.results[1:]
	return []byte("output"), err
}

func newQueue(t *testing.T) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return NewQueue(rc, "test:jobs")
}

func TestEnqueueCoalescesSameKind(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, NewJob(KindRebuild, "first", time.Minute, 3)))
	assert.ErrorIs(t, q.Enqueue(ctx, NewJob(KindRebuild, "second", time.Minute, 3)), ErrDuplicate)
	require.NoError(t, q.Enqueue(ctx, NewJob(KindCacheClear, "other", time.Minute, 3)))

	job, err := q.Dequeue(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "first", job.Reason)

	// Picked up, so a new rebuild may be queued again.
	require.NoError(t, q.Enqueue(ctx, NewJob(KindRebuild, "third", time.Minute, 3)))
}

func TestDequeueTimeout(t *testing.T) {
	q := newQueue(t)
	job, err := q.Dequeue(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestWorkerRetriesThenSucceeds(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	runner := &fakeRunner{results: []error{errors.New("exit 1"), nil}}

	var done []error
	w := NewWorker(q, runner, WorkerOptions{
		Scripts: map[Kind]string{KindRebuild: "rebuild.sh"},
		OnDone:  func(_ context.Context, _ Job, err error) { done = append(done, err) },
	}, nil)

	require.NoError(t, q.Enqueue(ctx, NewJob(KindRebuild, "publish", time.Second, 3)))

	handled, err := w.ProcessOne(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Empty(t, done, "first failure is retried, not reported")

	counts, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts["delayed"])

	handled, err = w.ProcessOne(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, handled)
	require.Len(t, done, 1)
	assert.NoError(t, done[0])
	assert.Equal(t, []string{"rebuild.sh", "rebuild.sh"}, runner.calls)
}

func TestWorkerGivesUpAfterMaxAttempts(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	runner := &fakeRunner{results: []error{errors.New("a"), errors.New("b")}}

	var final error
	w := NewWorker(q, runner, WorkerOptions{
		Scripts: map[Kind]string{KindCacheClear: "clear.sh"},
		OnDone:  func(_ context.Context, _ Job, err error) { final = err },
	}, nil)
	require.NoError(t, q.Enqueue(ctx, NewJob(KindCacheClear, "edit", time.Second, 2)))

	for i := 0; i < 2; i++ {
		_, err := w.ProcessOne(ctx, 10*time.Millisecond)
		require.NoError(t, err)
	}

	require.Error(t, final)
	failed, err := q.Failed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].Attempts)
	assert.Contains(t, failed[0].LastError, "b")
}

func TestWorkerTimeoutCancelsRun(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	slow := runnerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	var final error
	w := NewWorker(q, slow, WorkerOptions{
		Scripts: map[Kind]string{KindRebuild: "rebuild.sh"},
		OnDone:  func(_ context.Context, _ Job, err error) { final = err },
	}, nil)
	require.NoError(t, q.Enqueue(ctx, NewJob(KindRebuild, "publish", 20*time.Millisecond, 1)))

	_, err := w.ProcessOne(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.ErrorIs(t, final, context.DeadlineExceeded)
}

type runnerFunc func(ctx context.Context) error

func (f runnerFunc) Run(ctx context.Context, _ string, _ ...string) ([]byte, error) {
	return nil, f(ctx)
}

func TestWorkerRequeuesJobInterruptedByShutdown(t *testing.T) {
	q := newQueue(t)
	started := make(chan struct{})
	blocking := runnerFunc(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	doneCalled := false
	w := NewWorker(q, blocking, WorkerOptions{
		Scripts: map[Kind]string{KindRebuild: "rebuild.sh"},
		OnDone:  func(_ context.Context, _ Job, _ error) { doneCalled = true },
	}, nil)
	require.NoError(t, q.Enqueue(context.Background(), NewJob(KindRebuild, "publish", time.Minute, 3)))

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := w.ProcessOne(ctx, time.Second)
		result <- err
	}()
	<-started
	cancel()
	require.NoError(t, <-result)

	bg := context.Background()
	counts, err := q.Counts(bg)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts["pending"])
	assert.EqualValues(t, 0, counts["delayed"])
	assert.EqualValues(t, 0, counts["failed"])
	assert.False(t, doneCalled, "an interrupted run is neither a success nor a final failure")

	// The marker is back, so a new save still coalesces into the pending job.
	assert.ErrorIs(t, q.Enqueue(bg, NewJob(KindRebuild, "again", time.Minute, 3)), ErrDuplicate)

	job, err := q.Dequeue(bg, 10*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "publish", job.Reason)
	assert.Equal(t, 0, job.Attempts)
}

func TestRequeueDefersToNewerJob(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, NewJob(KindRebuild, "newer", time.Minute, 3)))

	assert.ErrorIs(t, q.Requeue(ctx, NewJob(KindRebuild, "older", time.Minute, 3)), ErrDuplicate)
	counts, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts["pending"])
}

func TestWorkerRunReturnsOnCancel(t *testing.T) {
	q := newQueue(t)
	w := NewWorker(q, &fakeRunner{}, WorkerOptions{PollEvery: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(stopped)
	}()
	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
