package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dinor/dinor-api/cache"
	"github.com/dinor/dinor-api/events"
	"github.com/dinor/dinor-api/models"
	"github.com/dinor/dinor-api/utils"
)

const listCacheTTL = 5 * time.Minute

// ListQuery filters a content listing.
type ListQuery struct {
	Page       int
	PerPage    int
	Search     string
	Featured   *bool
	CategoryID uint
	// Admin listings include drafts.
	IncludeUnpublished bool
}

func (q ListQuery) cacheKey(kind models.ContentKind) string {
	featured := "any"
	if q.Featured != nil {
		featured = fmt.Sprint(*q.Featured)
	}
	return fmt.Sprintf("api:%s:list:p%d:n%d:s=%s:f=%s:c=%d",
		kind, q.Page, q.PerPage, strings.ToLower(q.Search), featured, q.CategoryID)
}

// ContentPage is a page of content rows.
type ContentPage struct {
	Items any            `json:"items"`
	Meta  utils.PageMeta `json:"meta"`
}

// ContentService reads and writes content rows and publishes a ContentEvent
// after every committed write.
type ContentService struct {
	db    *gorm.DB
	cache *cache.Store
	bus   *events.Bus
}

// NewContentService returns a ContentService.
func NewContentService(db *gorm.DB, c *cache.Store, bus *events.Bus) *ContentService {
	return &ContentService{db: db, cache: c, bus: bus}
}

var orderedKinds = map[models.ContentKind]bool{
	models.KindPage:     true,
	models.KindMenuItem: true,
	models.KindBanner:   true,
}

var categorised = map[models.ContentKind]bool{
	models.KindRecipe: true,
	models.KindTip:    true,
	models.KindEvent:  true,
}

func searchColumn(kind models.ContentKind) string {
	switch kind {
	case models.KindCategory:
		return "name"
	case models.KindMenuItem:
		return "label"
	}
	return "title"
}

// List returns one page of kind. Public listings are cached under the kind's tag.
func (s *ContentService) List(ctx context.Context, kind models.ContentKind, q ListQuery) (ContentPage, error) {
	if q.IncludeUnpublished {
		return s.list(ctx, kind, q)
	}
	return cache.Remember(ctx, s.cache, q.cacheKey(kind), listCacheTTL, []string{TagPWA, string(kind)}, func() (ContentPage, error) {
		return s.list(ctx, kind, q)
	})
}

func (s *ContentService) list(ctx context.Context, kind models.ContentKind, q ListQuery) (ContentPage, error) {
	items := models.NewContentSlice(kind)
	if items == nil {
		return ContentPage{}, utils.ErrModelNotFound
	}
	tx := s.db.WithContext(ctx).Model(models.NewContent(kind))
	if !q.IncludeUnpublished {
		tx = tx.Where("is_published = ?", true)
	}
	if q.Featured != nil {
		tx = tx.Where("is_featured = ?", *q.Featured)
	}
	if q.CategoryID != 0 && categorised[kind] {
		tx = tx.Where("category_id = ?", q.CategoryID)
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		tx = tx.Where(searchColumn(kind)+" LIKE ?", "%"+term+"%")
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return ContentPage{}, err
	}
	if orderedKinds[kind] {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: "order"}})
	}
	tx = tx.Order("created_at DESC").Order("id DESC")
	if categorised[kind] {
		tx = tx.Preload("Category")
	}
	if err := tx.Offset((q.Page - 1) * q.PerPage).Limit(q.PerPage).Find(items).Error; err != nil {
		return ContentPage{}, err
	}
	return ContentPage{Items: items, Meta: utils.NewPageMeta(q.Page, q.PerPage, total)}, nil
}

// Get loads one row. Drafts are hidden unless includeUnpublished is set.
func (s *ContentService) Get(ctx context.Context, kind models.ContentKind, id uint, includeUnpublished bool) (models.Content, error) {
	content := models.NewContent(kind)
	if content == nil {
		return nil, utils.ErrModelNotFound
	}
	tx := s.db.WithContext(ctx)
	if !includeUnpublished {
		tx = tx.Where("is_published = ?", true)
	}
	if categorised[kind] {
		tx = tx.Preload("Category")
	}
	if err := tx.First(content, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrModelNotFound
		}
		return nil, err
	}
	return content, nil
}

// Create decodes payload into a new row of kind and publishes Created.
func (s *ContentService) Create(ctx context.Context, kind models.ContentKind, payload []byte) (models.Content, error) {
	content := models.NewContent(kind)
	if content == nil {
		return nil, utils.ErrModelNotFound
	}
	if err := decodeContent(payload, content); err != nil {
		return nil, err
	}
	// Server owned columns.
	*content.Base() = models.ContentBase{IsPublished: content.Base().IsPublished, IsFeatured: content.Base().IsFeatured}
	if c := content.Counters(); c != nil {
		*c = models.Engagement{}
	}
	if err := utils.ValidateStruct(content); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(content).Error; err != nil {
		return nil, err
	}
	s.bus.Publish(ctx, events.NewContentEvent(events.Created, content, nil))
	return content, nil
}

// Update merges payload into the row and publishes Updated with the before snapshot.
func (s *ContentService) Update(ctx context.Context, kind models.ContentKind, id uint, payload []byte) (models.Content, error) {
	content, err := s.Get(ctx, kind, id, true)
	if err != nil {
		return nil, err
	}
	before := content.Snapshot()
	base := *content.Base()
	var counters models.Engagement
	if c := content.Counters(); c != nil {
		counters = *c
	}

	if err := decodeContent(payload, content); err != nil {
		return nil, err
	}
	b := content.Base()
	b.ID, b.CreatedAt, b.DeletedAt = base.ID, base.CreatedAt, base.DeletedAt
	if c := content.Counters(); c != nil {
		*c = counters
	}
	if err := utils.ValidateStruct(content); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(content).Error; err != nil {
		return nil, err
	}
	s.bus.Publish(ctx, events.NewContentEvent(events.Updated, content, before))
	return content, nil
}

// SetPublished flips the publication flag through the regular update path.
func (s *ContentService) SetPublished(ctx context.Context, kind models.ContentKind, id uint, published bool) (models.Content, error) {
	payload, _ := json.Marshal(map[string]bool{"is_published": published})
	return s.Update(ctx, kind, id, payload)
}

// Delete soft-deletes a row and publishes Deleted.
func (s *ContentService) Delete(ctx context.Context, kind models.ContentKind, id uint) error {
	content, err := s.Get(ctx, kind, id, true)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(content).Error; err != nil {
		return err
	}
	s.bus.Publish(ctx, events.NewContentEvent(events.Deleted, content, nil))
	return nil
}

// Restore undeletes a row and publishes Restored.
func (s *ContentService) Restore(ctx context.Context, kind models.ContentKind, id uint) (models.Content, error) {
	content := models.NewContent(kind)
	if content == nil {
		return nil, utils.ErrModelNotFound
	}
	err := s.db.WithContext(ctx).Unscoped().Where("deleted_at IS NOT NULL").First(content, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrModelNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Unscoped().Model(content).Update("deleted_at", nil).Error; err != nil {
		return nil, err
	}
	content.Base().DeletedAt = gorm.DeletedAt{}
	s.bus.Publish(ctx, events.NewContentEvent(events.Restored, content, nil))
	return content, nil
}

func decodeContent(payload []byte, into models.Content) error {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return utils.NewValidationError("body", "request body is required")
	}
	if err := json.Unmarshal(payload, into); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return utils.NewValidationError(typeErr.Field, fmt.Sprintf("The %s must be of type %s.", typeErr.Field, typeErr.Type))
		}
		return utils.NewValidationError("body", "malformed JSON payload")
	}
	return nil
}
