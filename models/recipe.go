package models

// Recipe is a cooking recipe.
type Recipe struct {
	ContentBase
	Engagement
	Title           string    `gorm:"size:255;not null" json:"title" validate:"required,max=255"`
	Slug            string    `gorm:"size:255;index" json:"slug"`
	Description     string    `gorm:"type:text" json:"description"`
	Content         string    `gorm:"type:text" json:"content"`
	Ingredients     string    `gorm:"type:text" json:"ingredients"`
	Instructions    string    `gorm:"type:text" json:"instructions"`
	PreparationTime int       `json:"preparation_time"`
	CookingTime     int       `json:"cooking_time"`
	Servings        int       `json:"servings"`
	Difficulty      string    `gorm:"size:32" json:"difficulty"`
	FeaturedImage   string    `gorm:"size:1024" json:"featured_image"`
	VideoURL        string    `gorm:"size:1024" json:"video_url"`
	CategoryID      *uint     `gorm:"index" json:"category_id"`
	Category        *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

func (*Recipe) Kind() ContentKind { return KindRecipe }

func (r *Recipe) Snapshot() map[string]any {
	return r.ContentBase.snapshot(map[string]any{
		"title":       r.Title,
		"description": r.Description,
		"content":     r.Content,
	})
}
