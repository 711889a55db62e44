package models

// Page is a static page rendered by the PWA.
type Page struct {
	ContentBase
	Title   string `gorm:"size:255;not null" json:"title" validate:"required,max=255"`
	Slug    string `gorm:"size:255;index" json:"slug"`
	Content string `gorm:"type:text" json:"content"`
	URL     string `gorm:"size:1024" json:"url"`
	Order   int    `gorm:"column:order;default:0" json:"order"`
}

func (*Page) Kind() ContentKind { return KindPage }

func (*Page) Counters() *Engagement { return nil }

func (p *Page) Snapshot() map[string]any {
	return p.ContentBase.snapshot(map[string]any{
		"title":   p.Title,
		"content": p.Content,
		"url":     p.URL,
		"order":   p.Order,
	})
}
