package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dinor/dinor-api/models"
	"github.com/dinor/dinor-api/utils"
)

// Notifier persists messages for the admin UI.
type Notifier struct {
	db *gorm.DB
}

// NewNotifier returns a Notifier backed by db.
func NewNotifier(db *gorm.DB) *Notifier {
	return &Notifier{db: db}
}

// Notify stores a notification. Failures are logged, never returned: a
// notification must not break the operation it reports on.
func (n *Notifier) Notify(ctx context.Context, level, title, body string) {
	note := models.AdminNotification{Level: level, Title: title, Body: body}
	if err := n.db.WithContext(ctx).Create(&note).Error; err != nil {
		utils.Sugar.Warnw("admin notification not stored", "title", title, "err", err)
	}
}

// List returns notifications newest first.
func (n *Notifier) List(ctx context.Context, unreadOnly bool, page, perPage int) ([]models.AdminNotification, int64, error) {
	q := n.db.WithContext(ctx).Model(&models.AdminNotification{})
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []models.AdminNotification
	err := q.Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&items).Error
	return items, total, err
}

// MarkRead flags one notification as read.
func (n *Notifier) MarkRead(ctx context.Context, id uint) error {
	res := n.db.WithContext(ctx).Model(&models.AdminNotification{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		n.db.WithContext(ctx).Model(&models.AdminNotification{}).Where("id = ?", id).Count(&count)
		if count == 0 {
			return utils.ErrModelNotFound
		}
	}
	return nil
}

// MarkAllRead flags every unread notification as read.
func (n *Notifier) MarkAllRead(ctx context.Context) (int64, error) {
	res := n.db.WithContext(ctx).Model(&models.AdminNotification{}).
		Where("read_at IS NULL").
		Update("read_at", time.Now())
	return res.RowsAffected, res.Error
}
