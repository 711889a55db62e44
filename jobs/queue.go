// Package jobs runs the PWA rebuild and cache-clear scripts out of the
// request path, through a Redis-backed queue with bounded retries.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Kind selects the script a job runs.
type Kind string

const (
	KindRebuild    Kind = "rebuild"
	KindCacheClear Kind = "cache_clear"
)

const (
	defaultQueueKey = "dinor:jobs:pwa"
	maxFailedKept   = 100
)

// Job is one queued script invocation.
type Job struct {
	ID          string        `json:"id"`
	Kind        Kind          `json:"kind"`
	Reason      string        `json:"reason"`
	Version     int64         `json:"version,omitempty"`
	Attempts    int           `json:"attempts"`
	MaxAttempts int           `json:"max_attempts"`
	Timeout     time.Duration `json:"timeout"`
	LastError   string        `json:"last_error,omitempty"`
	EnqueuedAt  time.Time     `json:"enqueued_at"`
}

// NewJob builds a job with a fresh id.
func NewJob(kind Kind, reason string, timeout time.Duration, maxAttempts int) Job {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return Job{
		ID:          uuid.NewString(),
		Kind:        kind,
		Reason:      reason,
		MaxAttempts: maxAttempts,
		Timeout:     timeout,
		EnqueuedAt:  time.Now(),
	}
}

// Queue stores pending, delayed and failed jobs in Redis.
type Queue struct {
	rc      *redis.Client
	pending string
	delayed string
	failed  string
	marker  string
}

// NewQueue returns a queue rooted at key, or the default key when empty.
func NewQueue(rc *redis.Client, key string) *Queue {
	if key == "" {
		key = defaultQueueKey
	}
	return &Queue{
		rc:      rc,
		pending: key,
		delayed: key + ":delayed",
		failed:  key + ":failed",
		marker:  key + ":queued:",
	}
}

// ErrDuplicate is returned when a job of the same kind is already waiting.
var ErrDuplicate = errors.New("job of this kind already queued")

// Enqueue pushes job unless another job of the same kind is still waiting,
// so a burst of saves collapses into a single rebuild.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	ok, err := q.rc.SetNX(ctx, q.marker+string(job.Kind), job.ID, markerTTL(job)).Result()
	if err != nil {
		return fmt.Errorf("mark job: %w", err)
	}
	if !ok {
		return ErrDuplicate
	}
	return q.push(ctx, job)
}

func markerTTL(job Job) time.Duration {
	ttl := job.Timeout * time.Duration(job.MaxAttempts+1)
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return ttl
}

func (q *Queue) push(ctx context.Context, job Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.rc.LPush(ctx, q.pending, b).Err()
}

// Dequeue blocks up to wait for the next job. It returns (nil, nil) on timeout.
func (q *Queue) Dequeue(ctx context.Context, wait time.Duration) (*Job, error) {
	res, err := q.rc.BRPop(ctx, wait, q.pending).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	// Once picked up, later saves may queue a fresh run.
	q.rc.Del(ctx, q.marker+string(job.Kind))
	return &job, nil
}

// Requeue puts an interrupted job back at the head of the pending list and
// restores its coalescing marker. It returns ErrDuplicate when a newer job of
// the same kind already waits, which covers the same work.
func (q *Queue) Requeue(ctx context.Context, job Job) error {
	ok, err := q.rc.SetNX(ctx, q.marker+string(job.Kind), job.ID, markerTTL(job)).Result()
	if err != nil {
		return fmt.Errorf("mark job: %w", err)
	}
	if !ok {
		return ErrDuplicate
	}
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	// BRPOP reads from the right, so RPUSH makes it next.
	return q.rc.RPush(ctx, q.pending, b).Err()
}

// Retry schedules job to run again after delay.
func (q *Queue) Retry(ctx context.Context, job Job, delay time.Duration) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	due := float64(time.Now().Add(delay).UnixMilli())
	return q.rc.ZAdd(ctx, q.delayed, redis.Z{Score: due, Member: b}).Err()
}

// PromoteDue moves delayed jobs whose time has come back onto the pending list.
func (q *Queue) PromoteDue(ctx context.Context) (int, error) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	members, err := q.rc.ZRangeByScore(ctx, q.delayed, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, m := range members {
		// ZREM decides which worker owns the job when several promote at once.
		n, err := q.rc.ZRem(ctx, q.delayed, m).Result()
		if err != nil {
			return moved, err
		}
		if n == 0 {
			continue
		}
		if err := q.rc.LPush(ctx, q.pending, m).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// Fail records job as permanently failed, keeping the most recent entries only.
func (q *Queue) Fail(ctx context.Context, job Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	pipe := q.rc.TxPipeline()
	pipe.LPush(ctx, q.failed, b)
	pipe.LTrim(ctx, q.failed, 0, maxFailedKept-1)
	_, err = pipe.Exec(ctx)
	return err
}

// Failed lists recorded failures, newest first.
func (q *Queue) Failed(ctx context.Context) ([]Job, error) {
	raw, err := q.rc.LRange(ctx, q.failed, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Job, 0, len(raw))
	for _, r := range raw {
		var j Job
		if err := json.Unmarshal([]byte(r), &j); err == nil {
			out = append(out, j)
		}
	}
	return out, nil
}

// Counts reports pending, delayed and failed sizes.
func (q *Queue) Counts(ctx context.Context) (map[string]int64, error) {
	pipe := q.rc.Pipeline()
	p := pipe.LLen(ctx, q.pending)
	d := pipe.ZCard(ctx, q.delayed)
	f := pipe.LLen(ctx, q.failed)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return map[string]int64{"pending": p.Val(), "delayed": d.Val(), "failed": f.Val()}, nil
}
