package models

import "time"

// Notification levels.
const (
	NotificationSuccess = "success"
	NotificationDanger  = "danger"
	NotificationInfo    = "info"
)

// AdminNotification is a persistent message shown in the admin UI, e.g. the
// outcome of a PWA rebuild.
type AdminNotification struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Level     string     `gorm:"size:16;not null" json:"level"`
	Title     string     `gorm:"size:255;not null" json:"title"`
	Body      string     `gorm:"type:text" json:"body"`
	ReadAt    *time.Time `gorm:"index" json:"read_at"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
}
