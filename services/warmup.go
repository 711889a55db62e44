package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/dinor/dinor-api/models"
)

// warmKinds are the listings the PWA loads on its home screen.
var warmKinds = []models.ContentKind{
	models.KindRecipe,
	models.KindTip,
	models.KindEvent,
	models.KindVideo,
	models.KindBanner,
	models.KindCategory,
	models.KindMenuItem,
}

// Warmer fills the listing caches ahead of client requests.
type Warmer struct {
	content *ContentService
	perPage int
	log     *zap.Logger
}

// NewWarmer returns a Warmer caching the first page of each listing.
func NewWarmer(content *ContentService, perPage int, log *zap.Logger) *Warmer {
	if perPage <= 0 {
		perPage = 15
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Warmer{content: content, perPage: perPage, log: log}
}

// WarmupResult lists what was cached and what failed.
type WarmupResult struct {
	Warmed []string          `json:"warmed"`
	Failed map[string]string `json:"failed,omitempty"`
}

// Warm loads the first page of every listing through the cache.
func (w *Warmer) Warm(ctx context.Context) WarmupResult {
	res := WarmupResult{Warmed: []string{}}
	for _, kind := range warmKinds {
		_, err := w.content.List(ctx, kind, ListQuery{Page: 1, PerPage: w.perPage})
		if err != nil {
			if res.Failed == nil {
				res.Failed = map[string]string{}
			}
			res.Failed[kind.Slug()] = err.Error()
			w.log.Warn("cache warmup failed", zap.String("type", string(kind)), zap.Error(err))
			continue
		}
		res.Warmed = append(res.Warmed, kind.Slug())
	}
	return res
}
