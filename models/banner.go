package models

// Banner is a promotional block shown on a PWA section.
type Banner struct {
	ContentBase
	Title       string `gorm:"size:255" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	ImageURL    string `gorm:"size:1024" json:"image_url"`
	URL         string `gorm:"size:1024" json:"button_url"`
	Section     string `gorm:"size:32;index;default:'home'" json:"type"`
	Order       int    `gorm:"column:order;default:0" json:"order"`
}

func (*Banner) Kind() ContentKind { return KindBanner }

func (*Banner) Counters() *Engagement { return nil }

func (b *Banner) Snapshot() map[string]any {
	return b.ContentBase.snapshot(map[string]any{
		"title":       b.Title,
		"description": b.Description,
		"url":         b.URL,
		"order":       b.Order,
	})
}
