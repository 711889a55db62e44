package models

// MenuItem is an entry of the PWA navigation.
type MenuItem struct {
	ContentBase
	Label string `gorm:"size:128;not null" json:"label" validate:"required,max=128"`
	Icon  string `gorm:"size:64" json:"icon"`
	URL   string `gorm:"size:1024" json:"url"`
	Order int    `gorm:"column:order;default:0" json:"order"`
}

func (*MenuItem) Kind() ContentKind { return KindMenuItem }

func (*MenuItem) Counters() *Engagement { return nil }

func (m *MenuItem) Snapshot() map[string]any {
	return m.ContentBase.snapshot(map[string]any{
		"label": m.Label,
		"url":   m.URL,
		"order": m.Order,
	})
}
