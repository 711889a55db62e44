package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dinor/dinor-api/models"
	"github.com/dinor/dinor-api/services"
	"github.com/dinor/dinor-api/utils"
)

// LikeController toggles and checks likes.
type LikeController struct {
	likes *services.LikeService
}

// NewLikeController creates a LikeController.
func NewLikeController(likes *services.LikeService) *LikeController {
	return &LikeController{likes: likes}
}

// Toggle likes or unlikes a subject for the bearer user or, without a token, the client IP.
func (l *LikeController) Toggle(ctx *gin.Context) {
	var req subjectRequest
	if err := utils.BindJSON(ctx, &req); err != nil {
		utils.Fail(ctx, err)
		return
	}
	subject, err := req.subject()
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	res, err := l.likes.Toggle(ctx.Request.Context(), subject, identity(ctx))
	if err != nil {
		failInteraction(ctx, err)
		return
	}
	msg := "Like removed"
	if res.Active {
		msg = "Like added"
	}
	ctx.JSON(http.StatusOK, utils.JSONResponse{
		Success: true,
		Message: msg,
		Data:    likePayload(res),
	})
}

// Check reports whether the caller likes a subject and its like count.
func (l *LikeController) Check(ctx *gin.Context) {
	var req subjectRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		utils.Fail(ctx, utils.AsValidationError(err))
		return
	}
	subject, err := req.subject()
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	liked, err := l.likes.IsActive(ctx.Request.Context(), subject, identity(ctx))
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	count, err := l.likes.Count(ctx.Request.Context(), subject)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"is_liked": liked, "likes_count": count})
}

func likePayload(res services.ToggleResult) gin.H {
	out := gin.H{"is_liked": res.Active, "likes_count": res.Count}
	if res.AutoFavorited {
		out["is_favorited"] = true
		out["auto_favorited"] = true
	}
	return out
}

// FavoriteController manages favorites. All endpoints need a user.
type FavoriteController struct {
	favorites *services.FavoriteService
}

// NewFavoriteController creates a FavoriteController.
func NewFavoriteController(favorites *services.FavoriteService) *FavoriteController {
	return &FavoriteController{favorites: favorites}
}

// Toggle favorites or unfavorites a subject.
func (f *FavoriteController) Toggle(ctx *gin.Context) {
	var req subjectRequest
	if err := utils.BindJSON(ctx, &req); err != nil {
		utils.Fail(ctx, err)
		return
	}
	subject, err := req.subject()
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	res, err := f.favorites.Toggle(ctx.Request.Context(), subject, identity(ctx))
	if err != nil {
		failInteraction(ctx, err)
		return
	}
	msg := "Removed from favorites"
	if res.Active {
		msg = "Added to favorites"
	}
	ctx.JSON(http.StatusOK, utils.JSONResponse{
		Success: true,
		Message: msg,
		Data:    gin.H{"is_favorited": res.Active, "favorites_count": res.Count},
	})
}

// Check reports whether the user has favorited a subject.
func (f *FavoriteController) Check(ctx *gin.Context) {
	var req subjectRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		utils.Fail(ctx, utils.AsValidationError(err))
		return
	}
	subject, err := req.subject()
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	fav, err := f.favorites.IsActive(ctx.Request.Context(), subject, identity(ctx))
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	count, err := f.favorites.Count(ctx.Request.Context(), subject)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"is_favorited": fav, "favorites_count": count})
}

// List returns the user's favorites, optionally filtered by ?type=.
func (f *FavoriteController) List(ctx *gin.Context) {
	who := identity(ctx)
	if !who.Authenticated() {
		utils.RequiresAuth(ctx, "")
		return
	}
	var kind models.ContentKind
	if t := ctx.Query("type"); t != "" {
		k, err := models.ParseKind(t)
		if err != nil || !k.Interactive() {
			utils.Fail(ctx, utils.NewValidationError("type", "The selected type is invalid."))
			return
		}
		kind = k
	}
	page, perPage := pagination(ctx)
	items, total, err := f.favorites.List(ctx.Request.Context(), *who.UserID, kind, page, perPage)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.SuccessWithMeta(ctx, items, utils.NewPageMeta(page, perPage, total))
}
