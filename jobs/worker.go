package jobs

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Runner executes one script.
type Runner interface {
	Run(ctx context.Context, script string, args ...string) ([]byte, error)
}

// ExecRunner runs scripts as child processes in Dir.
type ExecRunner struct {
	Dir string
}

// Run executes script and returns its combined output. The process is killed when ctx ends.
func (r ExecRunner) Run(ctx context.Context, script string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, script, args...)
	cmd.Dir = r.Dir
	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return out, fmt.Errorf("%s: %w", script, ctx.Err())
	}
	return out, err
}

const bookkeepingTimeout = 5 * time.Second

// Hook observes job outcomes.
type Hook func(ctx context.Context, job Job, err error)

// WorkerOptions configures a Worker.
type WorkerOptions struct {
	Scripts   map[Kind]string
	Backoff   time.Duration
	PollEvery time.Duration
	// OnDone fires after a successful run or once retries are exhausted.
	OnDone Hook
}

// Worker pulls jobs from a Queue and runs them with a Runner.
type Worker struct {
	q      *Queue
	runner Runner
	opts   WorkerOptions
	log    *zap.Logger
}

// NewWorker returns a worker. Backoff grows linearly with the attempt number.
func NewWorker(q *Queue, runner Runner, opts WorkerOptions, log *zap.Logger) *Worker {
	if opts.PollEvery <= 0 {
		opts.PollEvery = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{q: q, runner: runner, opts: opts, log: log}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("pwa job worker started")
	for {
		if ctx.Err() != nil {
			w.log.Info("pwa job worker stopped")
			return
		}
		if _, err := w.ProcessOne(ctx, w.opts.PollEvery); err != nil && !errors.Is(err, context.Canceled) {
			w.log.Warn("pwa job worker poll failed", zap.Error(err))
			// Redis is probably down; avoid spinning.
			select {
			case <-ctx.Done():
			case <-time.After(w.opts.PollEvery):
			}
		}
	}
}

// ProcessOne promotes due retries, then waits up to wait for a job and runs it.
// It reports whether a job was handled.
func (w *Worker) ProcessOne(ctx context.Context, wait time.Duration) (bool, error) {
	if _, err := w.q.PromoteDue(ctx); err != nil {
		return false, err
	}
	job, err := w.q.Dequeue(ctx, wait)
	if err != nil || job == nil {
		return false, err
	}
	w.handle(ctx, *job)
	return true, nil
}

func (w *Worker) handle(ctx context.Context, job Job) {
	// Bookkeeping must land even when shutdown cancelled ctx mid-run.
	bg, cancelBg := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancelBg()

	script, ok := w.opts.Scripts[job.Kind]
	if !ok || script == "" {
		job.LastError = "no script configured for " + string(job.Kind)
		w.finish(bg, job, errors.New(job.LastError))
		return
	}

	job.Attempts++
	runCtx := ctx
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	started := time.Now()
	out, err := w.runner.Run(runCtx, script)
	fields := []zap.Field{
		zap.String("job_id", job.ID),
		zap.String("kind", string(job.Kind)),
		zap.Int("attempt", job.Attempts),
		zap.Duration("took", time.Since(started)),
	}
	if err == nil {
		w.log.Info("pwa job finished", fields...)
		w.finish(bg, job, nil)
		return
	}

	if ctx.Err() != nil {
		// Interrupted by shutdown, not by the job: hand it back uncounted.
		job.Attempts--
		rerr := w.q.Requeue(bg, job)
		switch {
		case rerr == nil:
			w.log.Info("pwa job interrupted, requeued", fields...)
		case errors.Is(rerr, ErrDuplicate):
			w.log.Info("pwa job interrupted, newer job of the same kind pending", fields...)
		default:
			w.log.Error("pwa job interrupted and not requeued", append(fields, zap.Error(rerr))...)
		}
		return
	}

	job.LastError = strings.TrimSpace(err.Error() + " " + tail(out, 512))
	w.log.Warn("pwa job failed", append(fields, zap.Error(err))...)
	if job.Attempts < job.MaxAttempts {
		delay := w.opts.Backoff * time.Duration(job.Attempts)
		rerr := w.q.Retry(bg, job, delay)
		if rerr == nil {
			return
		}
		w.log.Error("pwa job retry scheduling failed", zap.String("job_id", job.ID), zap.Error(rerr))
	}
	if ferr := w.q.Fail(bg, job); ferr != nil {
		w.log.Error("pwa job failure not recorded", zap.String("job_id", job.ID), zap.Error(ferr))
	}
	w.finish(bg, job, err)
}

func (w *Worker) finish(ctx context.Context, job Job, err error) {
	if w.opts.OnDone != nil {
		w.opts.OnDone(ctx, job, err)
	}
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
