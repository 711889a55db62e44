package models

import (
	"fmt"
	"strings"
)

// ContentKind enumerates the content types the API serves and observes.
type ContentKind string

const (
	KindRecipe   ContentKind = "recipe"
	KindTip      ContentKind = "tip"
	KindEvent    ContentKind = "event"
	KindVideo    ContentKind = "dinor_tv"
	KindPage     ContentKind = "page"
	KindMenuItem ContentKind = "menu_item"
	KindBanner   ContentKind = "banner"
	KindCategory ContentKind = "category"
)

// AllKinds lists every kind in a stable order.
var AllKinds = []ContentKind{
	KindRecipe, KindTip, KindEvent, KindVideo, KindPage, KindMenuItem, KindBanner, KindCategory,
}

var kindSlugs = map[ContentKind]string{
	KindRecipe:   "recipes",
	KindTip:      "tips",
	KindEvent:    "events",
	KindVideo:    "dinor-tv",
	KindPage:     "pages",
	KindMenuItem: "menu-items",
	KindBanner:   "banners",
	KindCategory: "categories",
}

var kindTables = map[ContentKind]string{
	KindRecipe:   "recipes",
	KindTip:      "tips",
	KindEvent:    "events",
	KindVideo:    "dinor_tv",
	KindPage:     "pages",
	KindMenuItem: "menu_items",
	KindBanner:   "banners",
	KindCategory: "categories",
}

// Valid reports whether k is one of the known kinds.
func (k ContentKind) Valid() bool {
	_, ok := kindTables[k]
	return ok
}

// Slug is the URL segment used by the public API, e.g. "dinor-tv".
func (k ContentKind) Slug() string { return kindSlugs[k] }

// Table is the database table holding rows of this kind.
func (k ContentKind) Table() string { return kindTables[k] }

// Interactive reports whether the kind accepts likes, favorites and comments.
func (k ContentKind) Interactive() bool {
	switch k {
	case KindRecipe, KindTip, KindEvent, KindVideo:
		return true
	}
	return false
}

// ParseKind accepts a kind name, its URL slug or its table name.
// Legacy class-style names such as "App\Models\Recipe" are accepted too.
func ParseKind(s string) (ContentKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.LastIndex(s, `\`); i >= 0 {
		s = s[i+1:]
	}
	s = strings.ReplaceAll(s, "-", "_")
	switch s {
	case "video", "videos", "dinortv", "dinor_tv":
		return KindVideo, nil
	case "menuitem":
		return KindMenuItem, nil
	}
	for _, k := range AllKinds {
		if s == string(k) || s == strings.ReplaceAll(k.Slug(), "-", "_") || s == k.Table() {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown content type %q", s)
}

// Subject identifies one content row of a given kind. It replaces untyped
// (type, id) column pairs for likes, favorites and comments.
type Subject struct {
	Kind ContentKind `json:"type"`
	ID   uint        `json:"id"`
}

// NewSubject validates kind and id.
func NewSubject(kind string, id uint) (Subject, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return Subject{}, err
	}
	if id == 0 {
		return Subject{}, fmt.Errorf("missing %s id", k)
	}
	return Subject{Kind: k, ID: id}, nil
}

func (s Subject) String() string { return fmt.Sprintf("%s#%d", s.Kind, s.ID) }
