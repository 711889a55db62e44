package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dinor/dinor-api/models"
	"github.com/dinor/dinor-api/utils"
)

// Identity is who performs an interaction: an authenticated user or, for
// likes only, an anonymous client recognised by IP.
type Identity struct {
	UserID    *uint
	IP        string
	UserAgent string
}

// UserIdentity returns the identity of an authenticated user.
func UserIdentity(userID uint, ip, userAgent string) Identity {
	return Identity{UserID: &userID, IP: ip, UserAgent: userAgent}
}

// Authenticated reports whether a user is behind the request.
func (i Identity) Authenticated() bool { return i.UserID != nil && *i.UserID != 0 }

// Key is the deduplication key stored with a like.
func (i Identity) Key() string {
	if i.Authenticated() {
		return fmt.Sprintf("user:%d", *i.UserID)
	}
	return "ip:" + strings.TrimSpace(i.IP)
}

func (i Identity) valid() bool { return i.Authenticated() || strings.TrimSpace(i.IP) != "" }

// ToggleResult is the state after a toggle.
type ToggleResult struct {
	Active        bool  `json:"active"`
	Count         int64 `json:"count"`
	AutoFavorited bool  `json:"auto_favorited,omitempty"`
}

// InteractionCounter is the contract shared by likes and favorites.
type InteractionCounter interface {
	Toggle(ctx context.Context, subject models.Subject, who Identity) (ToggleResult, error)
	IsActive(ctx context.Context, subject models.Subject, who Identity) (bool, error)
	Count(ctx context.Context, subject models.Subject) (int64, error)
}

var (
	_ InteractionCounter = (*LikeService)(nil)
	_ InteractionCounter = (*FavoriteService)(nil)
)

// ensureSubject checks that subject accepts interactions and exists, and
// reports whether it is published. Callers refuse new interactions on drafts.
func ensureSubject(tx *gorm.DB, subject models.Subject) (bool, error) {
	if !subject.Kind.Interactive() {
		return false, utils.NewValidationError("type", fmt.Sprintf("The type %q does not accept interactions.", subject.Kind))
	}
	var rows []bool
	err := tx.Model(models.NewContent(subject.Kind)).Where("id = ?", subject.ID).Limit(1).Pluck("is_published", &rows).Error
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, utils.ErrModelNotFound
	}
	return rows[0], nil
}

func storeCounter(tx *gorm.DB, subject models.Subject, column string, value int64) error {
	return tx.Model(models.NewContent(subject.Kind)).
		Where("id = ?", subject.ID).
		UpdateColumn(column, value).Error
}

func subjectScope(subject models.Subject) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("subject_type = ? AND subject_id = ?", subject.Kind, subject.ID)
	}
}

// LikeService toggles likes, anonymous ones included.
type LikeService struct {
	db           *gorm.DB
	favorites    *FavoriteService
	requireAuth  bool
	autoFavorite bool
}

// LikeOptions carries the like policy switches.
type LikeOptions struct {
	RequireAuth bool
	// AutoFavorite favorites the subject for authenticated users when they like it.
	AutoFavorite bool
}

// NewLikeService returns a LikeService. favorites is only used for auto-favorite.
func NewLikeService(db *gorm.DB, favorites *FavoriteService, opts LikeOptions) *LikeService {
	return &LikeService{db: db, favorites: favorites, requireAuth: opts.RequireAuth, autoFavorite: opts.AutoFavorite}
}

// RequiresAuth reports whether anonymous likes are refused.
func (s *LikeService) RequiresAuth() bool { return s.requireAuth }

// Toggle likes or unlikes subject for who, inside one transaction, and
// stores the new likes_count on the content row.
func (s *LikeService) Toggle(ctx context.Context, subject models.Subject, who Identity) (ToggleResult, error) {
	var res ToggleResult
	if s.requireAuth && !who.Authenticated() {
		return res, utils.ErrUnauthenticated
	}
	if !who.valid() {
		return res, utils.ErrUnauthenticated
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		published, err := ensureSubject(tx, subject)
		if err != nil {
			return err
		}
		del := tx.Scopes(subjectScope(subject)).Where("identity = ?", who.Key()).Delete(&models.Like{})
		if del.Error != nil {
			return del.Error
		}
		if del.RowsAffected == 0 {
			// Drafts can lose likes but not gain them.
			if !published {
				return utils.ErrModelNotFound
			}
			like := models.Like{
				SubjectType: subject.Kind,
				SubjectID:   subject.ID,
				Identity:    who.Key(),
				UserID:      who.UserID,
				IPAddress:   who.IP,
				UserAgent:   truncate(who.UserAgent, 512),
			}
			// A concurrent double submit loses quietly on the unique index.
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
				return err
			}
			res.Active = true
		}
		if err := tx.Model(&models.Like{}).Scopes(subjectScope(subject)).Count(&res.Count).Error; err != nil {
			return err
		}
		return storeCounter(tx, subject, "likes_count", res.Count)
	})
	if err != nil {
		return ToggleResult{}, err
	}

	if res.Active && s.autoFavorite && who.Authenticated() && s.favorites != nil {
		added, err := s.favorites.Ensure(ctx, subject, *who.UserID)
		if err != nil {
			// The like itself stands.
			utils.Logger.Warn("auto favorite failed", zap.String("subject", subject.String()), zap.Error(err))
		}
		res.AutoFavorited = added
	}
	return res, nil
}

// IsActive reports whether who has liked subject.
func (s *LikeService) IsActive(ctx context.Context, subject models.Subject, who Identity) (bool, error) {
	if !who.valid() {
		return false, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Like{}).
		Scopes(subjectScope(subject)).
		Where("identity = ?", who.Key()).
		Count(&count).Error
	return count > 0, err
}

// Count returns the number of likes on subject.
func (s *LikeService) Count(ctx context.Context, subject models.Subject) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Like{}).Scopes(subjectScope(subject)).Count(&count).Error
	return count, err
}

// FavoriteService manages per-user favorites. Anonymous identities are refused.
type FavoriteService struct {
	db *gorm.DB
}

// NewFavoriteService returns a FavoriteService.
func NewFavoriteService(db *gorm.DB) *FavoriteService {
	return &FavoriteService{db: db}
}

// Toggle favorites or unfavorites subject for the authenticated user.
func (s *FavoriteService) Toggle(ctx context.Context, subject models.Subject, who Identity) (ToggleResult, error) {
	var res ToggleResult
	if !who.Authenticated() {
		return res, utils.ErrUnauthenticated
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		published, err := ensureSubject(tx, subject)
		if err != nil {
			return err
		}
		del := tx.Scopes(subjectScope(subject)).Where("user_id = ?", *who.UserID).Delete(&models.Favorite{})
		if del.Error != nil {
			return del.Error
		}
		if del.RowsAffected == 0 {
			if !published {
				return utils.ErrModelNotFound
			}
			if err := insertFavorite(tx, subject, *who.UserID); err != nil {
				return err
			}
			res.Active = true
		}
		return recountFavorites(tx, subject, &res.Count)
	})
	if err != nil {
		return ToggleResult{}, err
	}
	return res, nil
}

// Ensure favorites subject for userID if it is not already, reporting whether a row was added.
func (s *FavoriteService) Ensure(ctx context.Context, subject models.Subject, userID uint) (bool, error) {
	added := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&models.Favorite{}).Scopes(subjectScope(subject)).Where("user_id = ?", userID).Count(&exists).Error; err != nil {
			return err
		}
		if exists > 0 {
			return nil
		}
		if err := insertFavorite(tx, subject, userID); err != nil {
			return err
		}
		added = true
		var count int64
		return recountFavorites(tx, subject, &count)
	})
	return added, err
}

func insertFavorite(tx *gorm.DB, subject models.Subject, userID uint) error {
	fav := models.Favorite{
		UserID:      userID,
		SubjectType: subject.Kind,
		SubjectID:   subject.ID,
		FavoritedAt: time.Now(),
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fav).Error
}

func recountFavorites(tx *gorm.DB, subject models.Subject, out *int64) error {
	if err := tx.Model(&models.Favorite{}).Scopes(subjectScope(subject)).Count(out).Error; err != nil {
		return err
	}
	return storeCounter(tx, subject, "favorites_count", *out)
}

// IsActive reports whether the user has favorited subject. Anonymous identities never have.
func (s *FavoriteService) IsActive(ctx context.Context, subject models.Subject, who Identity) (bool, error) {
	if !who.Authenticated() {
		return false, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Favorite{}).
		Scopes(subjectScope(subject)).
		Where("user_id = ?", *who.UserID).
		Count(&count).Error
	return count > 0, err
}

// Count returns the number of favorites on subject.
func (s *FavoriteService) Count(ctx context.Context, subject models.Subject) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Favorite{}).Scopes(subjectScope(subject)).Count(&count).Error
	return count, err
}

// FavoriteItem pairs a favorite with its content.
type FavoriteItem struct {
	ID          uint               `json:"id"`
	Type        models.ContentKind `json:"type"`
	FavoritedAt time.Time          `json:"favorited_at"`
	Content     models.Content     `json:"content"`
}

// List returns the user's favorites newest first, optionally restricted to kind.
// Favorites whose content has been deleted are skipped.
func (s *FavoriteService) List(ctx context.Context, userID uint, kind models.ContentKind, page, perPage int) ([]FavoriteItem, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Favorite{}).Where("user_id = ?", userID)
	if kind != "" {
		q = q.Where("subject_type = ?", kind)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var favs []models.Favorite
	if err := q.Order("favorited_at DESC").Order("id DESC").Offset((page - 1) * perPage).Limit(perPage).Find(&favs).Error; err != nil {
		return nil, 0, err
	}

	items := make([]FavoriteItem, 0, len(favs))
	for _, f := range favs {
		content := models.NewContent(f.SubjectType)
		if content == nil {
			continue
		}
		err := s.db.WithContext(ctx).First(content, f.SubjectID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		items = append(items, FavoriteItem{ID: f.ID, Type: f.SubjectType, FavoritedAt: f.FavoritedAt, Content: content})
	}
	return items, total, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
