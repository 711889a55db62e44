package models

import (
	"time"

	"gorm.io/gorm"
)

// Comment is a moderated remark on a subject. Replies point to a top-level
// comment through ParentID; replies to replies are not stored.
type Comment struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	SubjectType ContentKind    `gorm:"size:32;not null;index:idx_comment_subject,priority:1" json:"commentable_type"`
	SubjectID   uint           `gorm:"not null;index:idx_comment_subject,priority:2" json:"commentable_id"`
	UserID      uint           `gorm:"index;not null" json:"user_id"`
	ParentID    *uint          `gorm:"index" json:"parent_id"`
	Content     string         `gorm:"type:text;not null" json:"content"`
	IsApproved  bool           `gorm:"index;default:false" json:"is_approved"`
	IPAddress   string         `gorm:"size:45" json:"-"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	User        User           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Replies     []Comment      `gorm:"foreignKey:ParentID" json:"replies,omitempty"`
}

// Subject returns the commented content.
func (c Comment) Subject() Subject { return Subject{Kind: c.SubjectType, ID: c.SubjectID} }
