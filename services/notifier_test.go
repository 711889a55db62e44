package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinor/dinor-api/config"
	"github.com/dinor/dinor-api/models"
	"github.com/dinor/dinor-api/utils"
)

func TestNotifierReadFlow(t *testing.T) {
	h := newHarness(t, config.ModeLocal)
	ctx := context.Background()

	h.notifier.Notify(ctx, models.NotificationSuccess, "PWA updated", "v1")
	h.notifier.Notify(ctx, models.NotificationDanger, "PWA rebuild failed", "boom")

	items, total, err := h.notifier.List(ctx, true, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, items, 2)

	require.NoError(t, h.notifier.MarkRead(ctx, items[0].ID))
	require.NoError(t, h.notifier.MarkRead(ctx, items[0].ID), "marking twice is fine")
	assert.ErrorIs(t, h.notifier.MarkRead(ctx, 999), utils.ErrModelNotFound)

	_, total, err = h.notifier.List(ctx, true, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	n, err := h.notifier.MarkAllRead(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, total, err = h.notifier.List(ctx, false, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestPruneNotificationsKeepsUnread(t *testing.T) {
	h := newHarness(t, config.ModeLocal)
	old := time.Now().Add(-48 * time.Hour)
	read := &models.AdminNotification{Level: models.NotificationInfo, Title: "read", ReadAt: &old, CreatedAt: old}
	unread := &models.AdminNotification{Level: models.NotificationInfo, Title: "unread", CreatedAt: old}
	require.NoError(t, h.db.Create(read).Error)
	require.NoError(t, h.db.Create(unread).Error)

	n, err := utils.PruneNotifications(h.db, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var left []models.AdminNotification
	require.NoError(t, h.db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, "unread", left[0].Title)
}

func TestRecordView(t *testing.T) {
	h := newHarness(t, config.ModeLocal)
	views := NewViewService(h.db)
	ctx := context.Background()
	subject := seedRecipe(t, h.db, true)

	require.NoError(t, views.RecordView(ctx, subject))
	require.NoError(t, views.RecordView(ctx, subject))
	require.NoError(t, views.RecordView(ctx, models.Subject{Kind: models.KindPage, ID: 1}))

	var r models.Recipe
	require.NoError(t, h.db.First(&r, subject.ID).Error)
	assert.EqualValues(t, 2, r.ViewsCount)

	var rows int64
	require.NoError(t, h.db.Model(&models.ContentView{}).Count(&rows).Error)
	assert.EqualValues(t, 2, rows, "one aggregate row per subject and day")

	total, err := views.ViewsOn(ctx, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
}
