package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dinor/dinor-api/middleware"
	"github.com/dinor/dinor-api/models"
	"github.com/dinor/dinor-api/services"
	"github.com/dinor/dinor-api/utils"
)

// ContentController serves the public read endpoints of every content kind.
type ContentController struct {
	content   *services.ContentService
	likes     services.InteractionCounter
	favorites services.InteractionCounter
}

// NewContentController creates a ContentController.
func NewContentController(content *services.ContentService, likes, favorites services.InteractionCounter) *ContentController {
	return &ContentController{content: content, likes: likes, favorites: favorites}
}

// List returns published rows of kind, paginated.
func (c *ContentController) List(kind models.ContentKind) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		page, perPage := pagination(ctx)
		q := services.ListQuery{
			Page:     page,
			PerPage:  perPage,
			Search:   ctx.Query("search"),
			Featured: queryBool(ctx, "featured"),
		}
		if v, err := strconv.ParseUint(ctx.Query("category_id"), 10, 64); err == nil {
			q.CategoryID = uint(v)
		}
		res, err := c.content.List(ctx.Request.Context(), kind, q)
		if err != nil {
			utils.Fail(ctx, err)
			return
		}
		utils.SuccessWithMeta(ctx, res.Items, res.Meta)
	}
}

// Show returns one published row. Interactive kinds also report whether the
// caller has liked or favorited it.
func (c *ContentController) Show(kind models.ContentKind) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id, err := paramID(ctx, "id")
		if err != nil {
			utils.Fail(ctx, err)
			return
		}
		item, err := c.content.Get(ctx.Request.Context(), kind, id, false)
		if err != nil {
			utils.Fail(ctx, err)
			return
		}
		subject := models.Subject{Kind: kind, ID: id}
		ctx.Set(middleware.ContextViewSubjectKey, subject)

		if !kind.Interactive() {
			utils.Success(ctx, item)
			return
		}
		who := identity(ctx)
		liked, err := c.likes.IsActive(ctx.Request.Context(), subject, who)
		if err != nil {
			utils.Fail(ctx, err)
			return
		}
		favorited, err := c.favorites.IsActive(ctx.Request.Context(), subject, who)
		if err != nil {
			utils.Fail(ctx, err)
			return
		}
		utils.SuccessWithMeta(ctx, item, gin.H{"is_liked": liked, "is_favorited": favorited})
	}
}
