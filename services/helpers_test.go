package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dinor/dinor-api/cache"
	"github.com/dinor/dinor-api/config"
	"github.com/dinor/dinor-api/events"
	"github.com/dinor/dinor-api/jobs"
	"github.com/dinor/dinor-api/models"
	"github.com/dinor/dinor-api/testutil"
)

type recordingQueue struct {
	mu   sync.Mutex
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(ctx context.Context, job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) queued() []jobs.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]jobs.Job(nil), q.jobs...)
}

type harness struct {
	db        *gorm.DB
	cache     *cache.Store
	bus       *events.Bus
	versions  *VersionStore
	queue     *recordingQueue
	notifier  *Notifier
	pwa       *PWAService
	content   *ContentService
	favorites *FavoriteService
	comments  *CommentService
}

func newHarness(t *testing.T, mode string) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	rc, _ := testutil.NewRedis(t)
	store := cache.New(rc, "test")
	dir := t.TempDir()

	cfg := config.AppConfig{AppEnv: mode, AdminEmails: []string{"chef@dinor.test"}}
	cfg.PWA.RebuildTimeout = time.Minute
	cfg.PWA.CacheClearTimeout = time.Minute
	cfg.PWA.JobMaxAttempts = 3

	h := &harness{
		db:       db,
		cache:    store,
		bus:      events.NewBus(nil),
		versions: NewVersionStore(filepath.Join(dir, "version.json"), filepath.Join(dir, "meta.json"), store),
		queue:    &recordingQueue{},
		notifier: NewNotifier(db),
	}
	h.pwa = NewPWAService(store, h.versions, h.queue, h.notifier, cfg, nil)
	NewObserver(h.pwa, nil).Register(h.bus)
	h.content = NewContentService(db, store, h.bus)
	h.favorites = NewFavoriteService(db)
	h.comments = NewCommentService(db, cfg)
	return h
}

func (h *harness) notifications(t *testing.T) []models.AdminNotification {
	t.Helper()
	var out []models.AdminNotification
	require.NoError(t, h.db.Order("id ASC").Find(&out).Error)
	return out
}

func seedRecipe(t *testing.T, db *gorm.DB, published bool) models.Subject {
	t.Helper()
	r := &models.Recipe{Title: "Attiéké"}
	r.IsPublished = published
	testutil.Seed(t, db, r)
	return models.Subject{Kind: models.KindRecipe, ID: r.ID}
}

var userSeq atomic.Int64

func seedUser(t *testing.T, db *gorm.DB, role string) models.User {
	t.Helper()
	n := userSeq.Add(1)
	u := &models.User{Name: "Awa", Email: fmt.Sprintf("%s-%d@example.com", role, n), Role: role}
	testutil.Seed(t, db, u)
	return *u
}
