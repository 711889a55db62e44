package services

import (
	"context"
	"errors"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/dinor/dinor-api/config"
	"github.com/dinor/dinor-api/models"
	"github.com/dinor/dinor-api/utils"
)

const maxCommentLength = 1000

// CommentService creates, moderates and lists comments, keeping the
// content's comments_count equal to its approved, non-deleted comments.
type CommentService struct {
	db  *gorm.DB
	cfg config.AppConfig
}

// NewCommentService returns a CommentService. cfg decides who counts as an admin.
func NewCommentService(db *gorm.DB, cfg config.AppConfig) *CommentService {
	return &CommentService{db: db, cfg: cfg}
}

func (s *CommentService) isAdmin(u models.User) bool { return s.cfg.IsAdmin(u.Role, u.Email) }

// privileged authors skip moderation.
func (s *CommentService) privileged(u models.User) bool {
	return u.Role == models.RoleProfessional || s.isAdmin(u)
}

// NewComment is the input for Create.
type NewComment struct {
	Subject  models.Subject
	Content  string
	ParentID *uint
	IP       string
}

// Create stores a comment by author. Privileged authors skip moderation.
// A reply to a reply is attached to the top-level comment instead.
func (s *CommentService) Create(ctx context.Context, author models.User, in NewComment) (*models.Comment, error) {
	text, err := cleanCommentText(in.Content)
	if err != nil {
		return nil, err
	}
	comment := &models.Comment{
		SubjectType: in.Subject.Kind,
		SubjectID:   in.Subject.ID,
		UserID:      author.ID,
		Content:     text,
		IsApproved:  s.privileged(author),
		IPAddress:   in.IP,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		published, err := ensureSubject(tx, in.Subject)
		if err != nil {
			return err
		}
		if !published && !s.isAdmin(author) {
			return utils.ErrModelNotFound
		}
		if in.ParentID != nil {
			parentID, err := resolveParent(tx, in.Subject, *in.ParentID)
			if err != nil {
				return err
			}
			comment.ParentID = &parentID
		}
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		if comment.IsApproved {
			return recountComments(tx, in.Subject)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	comment.User = author
	return comment, nil
}

func resolveParent(tx *gorm.DB, subject models.Subject, id uint) (uint, error) {
	var parent models.Comment
	if err := tx.First(&parent, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, utils.NewValidationError("parent_id", "The selected parent comment does not exist.")
		}
		return 0, err
	}
	if parent.Subject() != subject {
		return 0, utils.NewValidationError("parent_id", "The parent comment belongs to another item.")
	}
	if parent.ParentID != nil {
		return *parent.ParentID, nil
	}
	return parent.ID, nil
}

// Update replaces the text of a comment. Only the author or an admin may edit.
func (s *CommentService) Update(ctx context.Context, actor models.User, id uint, content string) (*models.Comment, error) {
	text, err := cleanCommentText(content)
	if err != nil {
		return nil, err
	}
	comment, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment.UserID != actor.ID && !s.isAdmin(actor) {
		return nil, utils.ErrAccessDenied
	}
	if err := s.db.WithContext(ctx).Model(comment).Update("content", text).Error; err != nil {
		return nil, err
	}
	comment.Content = text
	return comment, nil
}

// SetApproval moderates a comment. The counter moves only when the flag flips.
func (s *CommentService) SetApproval(ctx context.Context, id uint, approved bool) (*models.Comment, error) {
	comment, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment.IsApproved == approved {
		return comment, nil
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(comment).Update("is_approved", approved).Error; err != nil {
			return err
		}
		return recountComments(tx, comment.Subject())
	})
	if err != nil {
		return nil, err
	}
	comment.IsApproved = approved
	return comment, nil
}

// Delete soft-deletes a comment. Replies stay in place.
func (s *CommentService) Delete(ctx context.Context, actor models.User, id uint) error {
	comment, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if comment.UserID != actor.ID && !s.isAdmin(actor) {
		return utils.ErrAccessDenied
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(comment).Error; err != nil {
			return err
		}
		if comment.IsApproved {
			return recountComments(tx, comment.Subject())
		}
		return nil
	})
}

// Restore brings back a soft-deleted comment.
func (s *CommentService) Restore(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	err := s.db.WithContext(ctx).Unscoped().Where("id = ? AND deleted_at IS NOT NULL", id).First(&comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrModelNotFound
	}
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Model(&comment).Update("deleted_at", nil).Error; err != nil {
			return err
		}
		if comment.IsApproved {
			return recountComments(tx, comment.Subject())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// List returns approved top-level comments on subject with their approved replies.
func (s *CommentService) List(ctx context.Context, subject models.Subject, page, perPage int) ([]models.Comment, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Comment{}).
		Where("subject_type = ? AND subject_id = ? AND parent_id IS NULL AND is_approved = ?", subject.Kind, subject.ID, true)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []models.Comment
	err := q.Preload("User").
		Preload("Replies", "is_approved = ?", true, func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Replies.User").
		Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&items).Error
	return items, total, err
}

// Pending lists comments awaiting moderation, oldest first.
func (s *CommentService) Pending(ctx context.Context, page, perPage int) ([]models.Comment, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Comment{}).Where("is_approved = ?", false)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []models.Comment
	err := q.Preload("User").Order("created_at ASC").Offset((page - 1) * perPage).Limit(perPage).Find(&items).Error
	return items, total, err
}

func (s *CommentService) find(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	err := s.db.WithContext(ctx).First(&comment, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrModelNotFound
	}
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func recountComments(tx *gorm.DB, subject models.Subject) error {
	if !subject.Kind.Interactive() {
		return nil
	}
	var count int64
	err := tx.Model(&models.Comment{}).
		Where("subject_type = ? AND subject_id = ? AND is_approved = ?", subject.Kind, subject.ID, true).
		Count(&count).Error
	if err != nil {
		return err
	}
	return storeCounter(tx, subject, "comments_count", count)
}

func cleanCommentText(raw string) (string, error) {
	text := utils.SanitizeText(raw)
	if text == "" {
		return "", utils.NewValidationError("content", "The content field is required.")
	}
	if utf8.RuneCountInString(text) > maxCommentLength {
		return "", utils.NewValidationError("content", "The content may not be greater than 1000 characters.")
	}
	return text, nil
}
