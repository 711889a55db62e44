package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dinor/dinor-api/cache"
	"github.com/dinor/dinor-api/config"
	"github.com/dinor/dinor-api/events"
	"github.com/dinor/dinor-api/jobs"
	"github.com/dinor/dinor-api/models"
)

// Cache tags and marker keys shared with PWA clients.
const (
	TagPWA                = "pwa"
	CacheInvalidationKey  = "pwa_cache_invalidation"
	kindInvalidationKey   = "pwa_invalidation_"
	kindMarkerTTL         = 5 * time.Minute
	invalidationMarkerTTL = time.Hour
)

// namedCacheKeys are untagged entries a full rebuild drops as well.
var namedCacheKeys = []string{
	"pwa_config",
	"pwa_manifest",
	"pwa_home",
	"pwa_menu",
	"pwa_dashboard",
	"dashboard_stats",
}

// watchedFields changing on update invalidates the kind's caches.
var watchedFields = []string{
	"title", "name", "label", "description", "url", "content", "is_published", "is_featured", "order",
}

// criticalFields changing on update also forces a full rebuild.
var criticalFields = []string{"is_published", "is_featured", "title", "name"}

// ShouldInvalidate decides whether a content change invalidates PWA caches.
func ShouldInvalidate(ev events.ContentEvent) bool {
	if !ev.Subject.Kind.Valid() {
		return false
	}
	if ev.HasPublishFlag() && ev.Changed("is_published") {
		return true
	}
	if ev.HasPublishFlag() && !ev.Published() && ev.Action != events.Deleted {
		return false
	}
	switch ev.Action {
	case events.Created, events.Deleted, events.Restored:
		return true
	case events.Updated:
		return ev.ChangedAny(watchedFields...)
	}
	return false
}

// ShouldFullRebuild decides whether the change also needs a new PWA build.
// Callers only consult it once ShouldInvalidate holds.
func ShouldFullRebuild(ev events.ContentEvent) bool {
	switch ev.Action {
	case events.Created, events.Deleted:
		return true
	case events.Updated:
		return ev.ChangedAny(criticalFields...)
	}
	return false
}

// Enqueuer accepts background jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, job jobs.Job) error
}

// RebuildOutcome reports what a full rebuild did.
type RebuildOutcome struct {
	Version int64     `json:"version"`
	Mode    string    `json:"mode"`
	Job     *jobs.Job `json:"job,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// PWAService flushes caches, bumps the PWA version and schedules rebuild scripts.
type PWAService struct {
	cache    *cache.Store
	versions *VersionStore
	queue    Enqueuer
	notifier *Notifier
	cfg      config.PWAConfig
	mode     string
	log      *zap.Logger
}

// NewPWAService wires the pipeline. queue may be nil, in which case no script runs.
func NewPWAService(c *cache.Store, versions *VersionStore, queue Enqueuer, notifier *Notifier, cfg config.AppConfig, log *zap.Logger) *PWAService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PWAService{
		cache:    c,
		versions: versions,
		queue:    queue,
		notifier: notifier,
		cfg:      cfg.PWA,
		mode:     cfg.AppEnv,
		log:      log,
	}
}

// Versions exposes the version store.
func (s *PWAService) Versions() *VersionStore { return s.versions }

// Invalidate drops the caches of one kind and leaves a marker for polling clients.
// Errors are logged only.
func (s *PWAService) Invalidate(ctx context.Context, kind models.ContentKind, action string) {
	n, err := s.cache.FlushTags(ctx, string(kind))
	if err != nil {
		s.log.Warn("pwa cache flush failed", zap.String("type", string(kind)), zap.Error(err))
	}
	marker := map[string]any{
		"type":      string(kind),
		"timestamp": time.Now().Unix(),
		"action":    action,
	}
	if err := s.cache.SetJSON(ctx, kindInvalidationKey+string(kind), marker, kindMarkerTTL); err != nil {
		s.log.Warn("pwa invalidation marker not written", zap.String("type", string(kind)), zap.Error(err))
	}
	s.log.Info("pwa cache invalidated", zap.String("type", string(kind)), zap.String("action", action), zap.Int64("keys", n))
}

// FullRebuild bumps the version, flushes every PWA cache and schedules the
// mode-specific script. It never fails the caller: errors end up in the log
// and in a danger notification.
func (s *PWAService) FullRebuild(ctx context.Context, reason string) RebuildOutcome {
	out := RebuildOutcome{Mode: s.mode}
	err := s.rebuild(ctx, reason, &out)
	if err != nil {
		out.Error = err.Error()
		s.log.Error("pwa rebuild failed", zap.String("reason", reason), zap.Error(err))
		s.notifier.Notify(ctx, models.NotificationDanger, "PWA rebuild failed", fmt.Sprintf("%s: %v", reason, err))
		return out
	}
	body := fmt.Sprintf("Version %d after %s.", out.Version, reason)
	if out.Job != nil {
		body += fmt.Sprintf(" %s job %s queued.", out.Job.Kind, out.Job.ID)
	}
	s.notifier.Notify(ctx, models.NotificationSuccess, "PWA updated", body)
	return out
}

func (s *PWAService) rebuild(ctx context.Context, reason string, out *RebuildOutcome) error {
	version, err := s.versions.Bump(ctx, BuildMeta{Mode: s.mode, Reason: reason})
	out.Version = version
	if err != nil {
		return err
	}

	tags := make([]string, 0, len(models.AllKinds)+1)
	tags = append(tags, TagPWA)
	for _, k := range models.AllKinds {
		tags = append(tags, string(k))
	}
	if _, err := s.cache.FlushTags(ctx, tags...); err != nil {
		return fmt.Errorf("flush tagged caches: %w", err)
	}
	if err := s.cache.Forget(ctx, namedCacheKeys...); err != nil {
		return fmt.Errorf("forget named caches: %w", err)
	}

	marker := map[string]any{
		"version":   version,
		"timestamp": time.Now().Unix(),
		"reason":    reason,
	}
	if err := s.cache.SetJSON(ctx, CacheInvalidationKey, marker, invalidationMarkerTTL); err != nil {
		return fmt.Errorf("write invalidation marker: %w", err)
	}

	var job jobs.Job
	switch s.mode {
	case config.ModeProduction:
		job = jobs.NewJob(jobs.KindRebuild, reason, s.cfg.RebuildTimeout, s.cfg.JobMaxAttempts)
	case config.ModeDevelopment:
		job = jobs.NewJob(jobs.KindCacheClear, reason, s.cfg.CacheClearTimeout, s.cfg.JobMaxAttempts)
	default:
		return nil
	}
	job.Version = version
	if s.queue == nil {
		return errors.New("no job queue configured")
	}
	err = s.queue.Enqueue(ctx, job)
	if errors.Is(err, jobs.ErrDuplicate) {
		s.log.Info("pwa job already queued", zap.String("kind", string(job.Kind)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", job.Kind, err)
	}
	out.Job = &job
	return nil
}

// JobFinished reports the final outcome of a background job to the admin UI.
func (s *PWAService) JobFinished(ctx context.Context, job jobs.Job, err error) {
	if err != nil {
		s.notifier.Notify(ctx, models.NotificationDanger, "PWA "+string(job.Kind)+" failed",
			fmt.Sprintf("Job %s gave up after %d attempt(s): %s", job.ID, job.Attempts, job.LastError))
		return
	}
	s.notifier.Notify(ctx, models.NotificationInfo, "PWA "+string(job.Kind)+" finished",
		fmt.Sprintf("Job %s for version %d completed.", job.ID, job.Version))
}
