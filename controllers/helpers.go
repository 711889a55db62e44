package controllers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dinor/dinor-api/middleware"
	"github.com/dinor/dinor-api/models"
	"github.com/dinor/dinor-api/services"
	"github.com/dinor/dinor-api/utils"
)

const (
	defaultPerPage = 15
	maxPerPage     = 100
)

func pagination(ctx *gin.Context) (int, int) {
	page, perPage := 1, defaultPerPage
	if v := strings.TrimSpace(ctx.Query("page")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := strings.TrimSpace(ctx.Query("per_page")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxPerPage {
			perPage = n
		}
	}
	return page, perPage
}

func paramID(ctx *gin.Context, name string) (uint, error) {
	n, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, utils.ErrModelNotFound
	}
	return uint(n), nil
}

func queryBool(ctx *gin.Context, name string) *bool {
	v := strings.TrimSpace(ctx.Query(name))
	if v == "" {
		return nil
	}
	b := v == "1" || strings.EqualFold(v, "true")
	return &b
}

// identity resolves who is interacting: the bearer user if any, else the client IP.
func identity(ctx *gin.Context) services.Identity {
	who := services.Identity{IP: ctx.ClientIP(), UserAgent: ctx.Request.UserAgent()}
	if id, ok := middleware.CurrentUserID(ctx); ok {
		who.UserID = &id
	}
	return who
}

func currentUser(ctx *gin.Context, db *gorm.DB) (models.User, error) {
	var user models.User
	id, ok := middleware.CurrentUserID(ctx)
	if !ok {
		return user, utils.ErrUnauthenticated
	}
	if err := db.WithContext(ctx.Request.Context()).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user, utils.ErrUnauthenticated
		}
		return user, err
	}
	return user, nil
}

// failInteraction answers authentication failures with requires_auth.
func failInteraction(ctx *gin.Context, err error) {
	if errors.Is(err, utils.ErrUnauthenticated) {
		utils.RequiresAuth(ctx, "Authentication required to perform this action")
		return
	}
	utils.Fail(ctx, err)
}

// subjectRequest names the target of an interaction. Legacy
// likeable/favoritable/commentable field names are accepted as well.
type subjectRequest struct {
	Type            string `json:"type" form:"type"`
	ID              uint   `json:"id" form:"id"`
	LikeableType    string `json:"likeable_type" form:"likeable_type"`
	LikeableID      uint   `json:"likeable_id" form:"likeable_id"`
	FavoritableType string `json:"favoritable_type" form:"favoritable_type"`
	FavoritableID   uint   `json:"favoritable_id" form:"favoritable_id"`
	CommentableType string `json:"commentable_type" form:"commentable_type"`
	CommentableID   uint   `json:"commentable_id" form:"commentable_id"`
}

func (r subjectRequest) subject() (models.Subject, error) {
	kind := firstNonEmpty(r.Type, r.LikeableType, r.FavoritableType, r.CommentableType)
	id := firstNonZero(r.ID, r.LikeableID, r.FavoritableID, r.CommentableID)
	verr := &utils.ValidationError{}
	if kind == "" {
		verr.Add("type", "The type field is required.")
	}
	if id == 0 {
		verr.Add("id", "The id field is required.")
	}
	if len(verr.Fields) > 0 {
		return models.Subject{}, verr
	}
	s, err := models.NewSubject(kind, id)
	if err != nil {
		return models.Subject{}, utils.NewValidationError("type", err.Error())
	}
	if !s.Kind.Interactive() {
		return models.Subject{}, utils.NewValidationError("type", "The selected type is invalid.")
	}
	return s, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...uint) uint {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
