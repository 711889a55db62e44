package models

import "time"

// Favorite is a user's bookmark of a subject. Favorites always belong to an
// authenticated user.
type Favorite struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	UserID      uint        `gorm:"not null;uniqueIndex:idx_fav_user_subject,priority:1" json:"user_id"`
	SubjectType ContentKind `gorm:"size:32;not null;uniqueIndex:idx_fav_user_subject,priority:2;index:idx_fav_subject,priority:1" json:"favoritable_type"`
	SubjectID   uint        `gorm:"not null;uniqueIndex:idx_fav_user_subject,priority:3;index:idx_fav_subject,priority:2" json:"favoritable_id"`
	FavoritedAt time.Time   `gorm:"not null" json:"favorited_at"`
}
