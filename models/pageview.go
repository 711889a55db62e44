package models

import "time"

// ContentView stores aggregated detail views per day and subject.
type ContentView struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Date        time.Time   `gorm:"uniqueIndex:idx_view_date_subject,priority:1;type:date;not null" json:"date"`
	SubjectType ContentKind `gorm:"size:32;uniqueIndex:idx_view_date_subject,priority:2;not null" json:"type"`
	SubjectID   uint        `gorm:"uniqueIndex:idx_view_date_subject,priority:3;not null" json:"id"`
	Count       int64       `gorm:"not null;default:0" json:"count"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// AllModels lists every model for auto-migration.
func AllModels() []interface{} {
	return append(ContentModels(),
		&User{},
		&Like{},
		&Favorite{},
		&Comment{},
		&AdminNotification{},
		&ContentView{},
	)
}
