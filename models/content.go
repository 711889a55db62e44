package models

import (
	"time"

	"gorm.io/gorm"
)

// Content is implemented by every observed content model.
type Content interface {
	Kind() ContentKind
	Base() *ContentBase
	// Counters returns nil for kinds without interactions.
	Counters() *Engagement
	// Snapshot returns the watched fields keyed by column name.
	Snapshot() map[string]any
}

// ContentBase carries the columns shared by all content tables.
type ContentBase struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	IsPublished bool           `gorm:"index;default:false" json:"is_published"`
	IsFeatured  bool           `gorm:"index;default:false" json:"is_featured"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Base returns the shared columns.
func (b *ContentBase) Base() *ContentBase { return b }

func (b *ContentBase) snapshot(fields map[string]any) map[string]any {
	fields["is_published"] = b.IsPublished
	fields["is_featured"] = b.IsFeatured
	return fields
}

// Engagement holds denormalised interaction counters.
type Engagement struct {
	LikesCount     int64 `gorm:"not null;default:0" json:"likes_count"`
	FavoritesCount int64 `gorm:"not null;default:0" json:"favorites_count"`
	CommentsCount  int64 `gorm:"not null;default:0" json:"comments_count"`
	ViewsCount     int64 `gorm:"not null;default:0" json:"views_count"`
}

// Counters returns the engagement counters.
func (e *Engagement) Counters() *Engagement { return e }

// NewContent returns an empty model of the given kind.
func NewContent(kind ContentKind) Content {
	switch kind {
	case KindRecipe:
		return &Recipe{}
	case KindTip:
		return &Tip{}
	case KindEvent:
		return &Event{}
	case KindVideo:
		return &Video{}
	case KindPage:
		return &Page{}
	case KindMenuItem:
		return &MenuItem{}
	case KindBanner:
		return &Banner{}
	case KindCategory:
		return &Category{}
	}
	return nil
}

// NewContentSlice returns a pointer to an empty slice of the kind's model, for Find.
func NewContentSlice(kind ContentKind) any {
	switch kind {
	case KindRecipe:
		return &[]Recipe{}
	case KindTip:
		return &[]Tip{}
	case KindEvent:
		return &[]Event{}
	case KindVideo:
		return &[]Video{}
	case KindPage:
		return &[]Page{}
	case KindMenuItem:
		return &[]MenuItem{}
	case KindBanner:
		return &[]Banner{}
	case KindCategory:
		return &[]Category{}
	}
	return nil
}

// ContentModels lists model prototypes for migrations.
func ContentModels() []interface{} {
	out := make([]interface{}, 0, len(AllKinds))
	for _, k := range AllKinds {
		out = append(out, NewContent(k))
	}
	return out
}
