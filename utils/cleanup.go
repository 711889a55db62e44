package utils

import (
	"time"

	"gorm.io/gorm"

	"github.com/dinor/dinor-api/models"
)

// PruneNotifications deletes read admin notifications older than maxAge and
// returns how many rows went away. Unread ones are kept whatever their age.
func PruneNotifications(db *gorm.DB, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	res := db.Where("read_at IS NOT NULL AND created_at <= ?", cutoff).Delete(&models.AdminNotification{})
	return res.RowsAffected, res.Error
}
