package models

import "time"

// Event is a dated happening (workshop, festival, tasting).
type Event struct {
	ContentBase
	Engagement
	Title       string     `gorm:"size:255;not null" json:"title" validate:"required,max=255"`
	Slug        string     `gorm:"size:255;index" json:"slug"`
	Description string     `gorm:"type:text" json:"description"`
	Content     string     `gorm:"type:text" json:"content"`
	Location    string     `gorm:"size:255" json:"location"`
	URL         string     `gorm:"size:1024" json:"url"`
	Image       string     `gorm:"size:1024" json:"image"`
	Status      string     `gorm:"size:32;default:'active'" json:"status"`
	StartDate   *time.Time `gorm:"index" json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	CategoryID  *uint      `gorm:"index" json:"category_id"`
	Category    *Category  `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

func (*Event) Kind() ContentKind { return KindEvent }

func (e *Event) Snapshot() map[string]any {
	return e.ContentBase.snapshot(map[string]any{
		"title":       e.Title,
		"description": e.Description,
		"content":     e.Content,
		"url":         e.URL,
	})
}
