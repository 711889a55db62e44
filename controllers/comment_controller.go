package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dinor/dinor-api/services"
	"github.com/dinor/dinor-api/utils"
)

// CommentController exposes comment listing, authoring and moderation.
type CommentController struct {
	db       *gorm.DB
	comments *services.CommentService
}

// NewCommentController creates a CommentController.
func NewCommentController(db *gorm.DB, comments *services.CommentService) *CommentController {
	return &CommentController{db: db, comments: comments}
}

// List returns approved comments on ?type=&id= with their replies.
func (c *CommentController) List(ctx *gin.Context) {
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
	page, perPage := pagination(ctx)
	items, total, err := c.comments.List(ctx.Request.Context(), subject, page, perPage)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.SuccessWithMeta(ctx, items, utils.NewPageMeta(page, perPage, total))
}

type createCommentRequest struct {
	subjectRequest
	Content  string `json:"content" binding:"required,max=5000"`
	ParentID *uint  `json:"parent_id"`
}

// Create stores a comment. Comments from regular users wait for moderation.
func (c *CommentController) Create(ctx *gin.Context) {
	var req createCommentRequest
	if err := utils.BindJSON(ctx, &req); err != nil {
		utils.Fail(ctx, err)
		return
	}
	subject, err := req.subject()
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	user, err := currentUser(ctx, c.db)
	if err != nil {
		failInteraction(ctx, err)
		return
	}
	comment, err := c.comments.Create(ctx.Request.Context(), user, services.NewComment{
		Subject:  subject,
		Content:  req.Content,
		ParentID: req.ParentID,
		IP:       ctx.ClientIP(),
	})
	if err != nil {
		failInteraction(ctx, err)
		return
	}
	msg := "Comment published"
	if !comment.IsApproved {
		msg = "Comment submitted for moderation"
	}
	utils.Created(ctx, msg, comment)
}

// Update edits the text of the caller's own comment.
func (c *CommentController) Update(ctx *gin.Context) {
	id, err := paramID(ctx, "id")
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	var req struct {
		Content string `json:"content" binding:"required,max=5000"`
	}
	if err := utils.BindJSON(ctx, &req); err != nil {
		utils.Fail(ctx, err)
		return
	}
	user, err := currentUser(ctx, c.db)
	if err != nil {
		failInteraction(ctx, err)
		return
	}
	comment, err := c.comments.Update(ctx.Request.Context(), user, id, req.Content)
	if err != nil {
		failInteraction(ctx, err)
		return
	}
	utils.Success(ctx, comment)
}

// Delete removes the caller's own comment, or any comment for admins.
func (c *CommentController) Delete(ctx *gin.Context) {
	id, err := paramID(ctx, "id")
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	user, err := currentUser(ctx, c.db)
	if err != nil {
		failInteraction(ctx, err)
		return
	}
	if err := c.comments.Delete(ctx.Request.Context(), user, id); err != nil {
		failInteraction(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, utils.JSONResponse{Success: true, Message: "Comment deleted"})
}

// Pending lists comments awaiting moderation.
func (c *CommentController) Pending(ctx *gin.Context) {
	page, perPage := pagination(ctx)
	items, total, err := c.comments.Pending(ctx.Request.Context(), page, perPage)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.SuccessWithMeta(ctx, items, utils.NewPageMeta(page, perPage, total))
}

// Approve publishes a pending comment.
func (c *CommentController) Approve(ctx *gin.Context) { c.moderate(ctx, true) }

// Reject hides a comment without deleting it.
func (c *CommentController) Reject(ctx *gin.Context) { c.moderate(ctx, false) }

func (c *CommentController) moderate(ctx *gin.Context, approved bool) {
	id, err := paramID(ctx, "id")
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	comment, err := c.comments.SetApproval(ctx.Request.Context(), id, approved)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, comment)
}

// Restore brings back a deleted comment.
func (c *CommentController) Restore(ctx *gin.Context) {
	id, err := paramID(ctx, "id")
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	comment, err := c.comments.Restore(ctx.Request.Context(), id)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, comment)
}
