package models

// Category groups recipes, tips and events.
type Category struct {
	ContentBase
	Name        string `gorm:"size:128;not null" json:"name" validate:"required,max=128"`
	Slug        string `gorm:"size:128;index" json:"slug"`
	Description string `gorm:"type:text" json:"description"`
	Color       string `gorm:"size:16" json:"color"`
	Icon        string `gorm:"size:64" json:"icon"`
}

func (*Category) Kind() ContentKind { return KindCategory }

func (*Category) Counters() *Engagement { return nil }

func (c *Category) Snapshot() map[string]any {
	return c.ContentBase.snapshot(map[string]any{
		"name":        c.Name,
		"description": c.Description,
	})
}
