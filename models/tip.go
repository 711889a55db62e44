package models

// Tip is a short cooking tip.
type Tip struct {
	ContentBase
	Engagement
	Title         string    `gorm:"size:255;not null" json:"title" validate:"required,max=255"`
	Slug          string    `gorm:"size:255;index" json:"slug"`
	Content       string    `gorm:"type:text" json:"content"`
	Difficulty    string    `gorm:"size:32" json:"difficulty_level"`
	EstimatedTime int       `json:"estimated_time"`
	Image         string    `gorm:"size:1024" json:"image"`
	VideoURL      string    `gorm:"size:1024" json:"video_url"`
	CategoryID    *uint     `gorm:"index" json:"category_id"`
	Category      *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

func (*Tip) Kind() ContentKind { return KindTip }

func (t *Tip) Snapshot() map[string]any {
	return t.ContentBase.snapshot(map[string]any{
		"title":   t.Title,
		"content": t.Content,
	})
}
