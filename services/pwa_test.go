package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinor/dinor-api/cache"
	"github.com/dinor/dinor-api/config"
	"github.com/dinor/dinor-api/events"
	"github.com/dinor/dinor-api/jobs"
	"github.com/dinor/dinor-api/models"
)

func recipe(title string, published bool) *models.Recipe {
	r := &models.Recipe{Title: title, Description: "desc"}
	r.ID = 7
	r.IsPublished = published
	return r
}

func updated(before, after *models.Recipe) events.ContentEvent {
	return events.NewContentEvent(events.Updated, after, before.Snapshot())
}

func TestDecisionRules(t *testing.T) {
	withIngredients := recipe("Alloco", true)
	withIngredients.Ingredients = "plantain"
	described := recipe("Alloco", true)
	described.Description = "crispy"
	featured := recipe("Alloco", true)
	featured.IsFeatured = true

	cases := []struct {
		name       string
		ev         events.ContentEvent
		invalidate bool
		rebuild    bool
	}{
		{"draft created", events.NewContentEvent(events.Created, recipe("Alloco", false), nil), false, true},
		{"published created", events.NewContentEvent(events.Created, recipe("Alloco", true), nil), true, true},
		{"draft edited", updated(recipe("Alloco", false), recipe("Alloco frit", false)), false, true},
		{"draft published", updated(recipe("Alloco", false), recipe("Alloco", true)), true, true},
		{"unpublished", updated(recipe("Alloco", true), recipe("Alloco", false)), true, true},
		{"unwatched field", updated(recipe("Alloco", true), withIngredients), false, false},
		{"description only", updated(recipe("Alloco", true), described), true, false},
		{"featured", updated(recipe("Alloco", true), featured), true, true},
		{"title", updated(recipe("Alloco", true), recipe("Alloco frit", true)), true, true},
		{"draft deleted", events.NewContentEvent(events.Deleted, recipe("Alloco", false), nil), true, true},
		{"published restored", events.NewContentEvent(events.Restored, recipe("Alloco", true), nil), true, false},
		{"draft restored", events.NewContentEvent(events.Restored, recipe("Alloco", false), nil), false, false},
		{"unknown kind", events.ContentEvent{Subject: models.Subject{Kind: "poster", ID: 1}, Action: events.Created}, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.invalidate, ShouldInvalidate(tc.ev))
			assert.Equal(t, tc.rebuild, ShouldFullRebuild(tc.ev))
		})
	}
}

func TestMenuItemOrderChangeInvalidates(t *testing.T) {
	before := &models.MenuItem{Label: "Recettes", Order: 1}
	before.IsPublished = true
	after := &models.MenuItem{Label: "Recettes", Order: 2}
	after.IsPublished = true

	ev := events.NewContentEvent(events.Updated, after, before.Snapshot())
	assert.True(t, ShouldInvalidate(ev))
	assert.False(t, ShouldFullRebuild(ev))
}

func TestPublishScenario(t *testing.T) {
	h := newHarness(t, config.ModeProduction)
	ctx := context.Background()

	created, err := h.content.Create(ctx, models.KindRecipe, []byte(`{"title":"Garba","is_published":false}`))
	require.NoError(t, err)
	id := created.Base().ID

	assert.Zero(t, h.versions.Current(ctx), "a draft must not bump the version")
	assert.Empty(t, h.queue.queued())
	assert.Empty(t, h.notifications(t))
	_, err = h.cache.Get(ctx, CacheInvalidationKey)
	assert.ErrorIs(t, err, cache.ErrMiss)

	_, err = h.content.SetPublished(ctx, models.KindRecipe, id, true)
	require.NoError(t, err)
	first := h.versions.Current(ctx)
	assert.Positive(t, first)

	queued := h.queue.queued()
	require.Len(t, queued, 1)
	assert.Equal(t, jobs.KindRebuild, queued[0].Kind)
	assert.Equal(t, first, queued[0].Version)

	var marker map[string]any
	require.NoError(t, h.cache.GetJSON(ctx, CacheInvalidationKey, &marker))
	assert.EqualValues(t, first, marker["version"])
	_, err = h.cache.Get(ctx, "pwa_invalidation_recipe")
	assert.NoError(t, err)

	notes := h.notifications(t)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationSuccess, notes[0].Level)

	_, err = h.content.Update(ctx, models.KindRecipe, id, []byte(`{"title":"Garba au thon"}`))
	require.NoError(t, err)
	assert.Greater(t, h.versions.Current(ctx), first)
}

func TestPublishedListIsInvalidatedOnPublish(t *testing.T) {
	h := newHarness(t, config.ModeLocal)
	ctx := context.Background()
	q := ListQuery{Page: 1, PerPage: 15}

	page, err := h.content.List(ctx, models.KindRecipe, q)
	require.NoError(t, err)
	assert.EqualValues(t, 0, page.Meta.Total)

	created, err := h.content.Create(ctx, models.KindRecipe, []byte(`{"title":"Kedjenou"}`))
	require.NoError(t, err)
	page, err = h.content.List(ctx, models.KindRecipe, q)
	require.NoError(t, err)
	assert.EqualValues(t, 0, page.Meta.Total, "drafts stay hidden")

	_, err = h.content.SetPublished(ctx, models.KindRecipe, created.Base().ID, true)
	require.NoError(t, err)
	page, err = h.content.List(ctx, models.KindRecipe, q)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Meta.Total)

	assert.Empty(t, h.queue.queued(), "local mode runs no script")
}

func TestFullRebuildModes(t *testing.T) {
	cases := map[string]jobs.Kind{
		config.ModeProduction:  jobs.KindRebuild,
		config.ModeDevelopment: jobs.KindCacheClear,
		config.ModeLocal:       "",
	}
	for mode, kind := range cases {
		t.Run(mode, func(t *testing.T) {
			h := newHarness(t, mode)
			out := h.pwa.FullRebuild(context.Background(), "manual")
			assert.Empty(t, out.Error)
			assert.Equal(t, mode, out.Mode)
			if kind == "" {
				assert.Nil(t, out.Job)
				assert.Empty(t, h.queue.queued())
				return
			}
			require.NotNil(t, out.Job)
			assert.Equal(t, kind, out.Job.Kind)
		})
	}
}

func TestFullRebuildFlushesTaggedAndNamedCaches(t *testing.T) {
	h := newHarness(t, config.ModeLocal)
	ctx := context.Background()

	require.NoError(t, h.cache.Set(ctx, "api:tips:list", []byte("x"), time.Minute, string(models.KindTip)))
	require.NoError(t, h.cache.Set(ctx, "pwa_home", []byte("x"), time.Minute))
	require.NoError(t, h.cache.Set(ctx, "unrelated", []byte("x"), time.Minute))

	out := h.pwa.FullRebuild(ctx, "manual")
	require.Empty(t, out.Error)

	for _, key := range []string{"api:tips:list", "pwa_home"} {
		_, err := h.cache.Get(ctx, key)
		assert.ErrorIs(t, err, cache.ErrMiss, key)
	}
	_, err := h.cache.Get(ctx, "unrelated")
	assert.NoError(t, err)
	assert.Equal(t, out.Version, h.versions.Current(ctx))
}

func TestFullRebuildDuplicateJobIsNotAnError(t *testing.T) {
	h := newHarness(t, config.ModeProduction)
	h.queue.err = jobs.ErrDuplicate

	out := h.pwa.FullRebuild(context.Background(), "manual")
	assert.Empty(t, out.Error)
	assert.Nil(t, out.Job)
}

func TestFullRebuildFailureNotifies(t *testing.T) {
	h := newHarness(t, config.ModeProduction)
	h.queue.err = errors.New("redis down")

	out := h.pwa.FullRebuild(context.Background(), "manual")
	assert.Contains(t, out.Error, "redis down")
	assert.Positive(t, out.Version)

	notes := h.notifications(t)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationDanger, notes[0].Level)
}

func TestJobFinishedNotifies(t *testing.T) {
	h := newHarness(t, config.ModeProduction)
	ctx := context.Background()
	job := jobs.NewJob(jobs.KindRebuild, "manual", time.Minute, 3)

	h.pwa.JobFinished(ctx, job, nil)
	h.pwa.JobFinished(ctx, job, errors.New("exit status 1"))

	notes := h.notifications(t)
	require.Len(t, notes, 2)
	assert.Equal(t, models.NotificationInfo, notes[0].Level)
	assert.Equal(t, models.NotificationDanger, notes[1].Level)
}

func TestVersionBumpIsMonotonic(t *testing.T) {
	dir := t.TempDir()
	store := NewVersionStore(filepath.Join(dir, "pwa", "version.json"), filepath.Join(dir, "pwa", "meta.json"), cache.New(nil, ""))
	frozen := time.UnixMilli(1_700_000_000_000)
	store.now = func() time.Time { return frozen }
	ctx := context.Background()

	var prev int64
	for i := 0; i < 3; i++ {
		v, err := store.Bump(ctx, BuildMeta{Mode: config.ModeLocal, Reason: fmt.Sprint("bump ", i)})
		require.NoError(t, err)
		assert.Greater(t, v, prev)
		prev = v
	}
	assert.Equal(t, frozen.UnixMilli()+2, prev)
	assert.Equal(t, prev, store.Current(ctx), "falls back to the file without a cache")

	raw, err := os.ReadFile(filepath.Join(dir, "pwa", "version.json"))
	require.NoError(t, err)
	var info VersionInfo
	require.NoError(t, json.Unmarshal(raw, &info))
	assert.Equal(t, prev, info.Version)

	meta, err := store.Meta()
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, prev, meta.Version)
	assert.Equal(t, "bump 2", meta.Reason)
}

func TestVersionStoreWithoutFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewVersionStore(filepath.Join(dir, "v.json"), filepath.Join(dir, "m.json"), cache.New(nil, ""))
	assert.Zero(t, store.Current(context.Background()))
	meta, err := store.Meta()
	assert.NoError(t, err)
	assert.Nil(t, meta)
}
