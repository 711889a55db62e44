package models

import "time"

// Like is one identity's like on a subject. Identity is "user:<id>" for
// authenticated requests and "ip:<addr>" otherwise; the unique index makes
// duplicate likes impossible even under concurrent toggles.
type Like struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	SubjectType ContentKind `gorm:"size:32;not null;uniqueIndex:idx_like_subject_identity,priority:1;index:idx_like_subject,priority:1" json:"likeable_type"`
	SubjectID   uint        `gorm:"not null;uniqueIndex:idx_like_subject_identity,priority:2;index:idx_like_subject,priority:2" json:"likeable_id"`
	Identity    string      `gorm:"size:96;not null;uniqueIndex:idx_like_subject_identity,priority:3" json:"-"`
	UserID      *uint       `gorm:"index" json:"user_id"`
	IPAddress   string      `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent   string      `gorm:"size:512" json:"-"`
	CreatedAt   time.Time   `json:"created_at"`
}
