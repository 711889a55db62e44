package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/dinor/dinor-api/services"
	"github.com/dinor/dinor-api/utils"
)

// NotificationController serves the admin notification feed.
type NotificationController struct {
	notifier *services.Notifier
}

// NewNotificationController creates a NotificationController.
func NewNotificationController(notifier *services.Notifier) *NotificationController {
	return &NotificationController{notifier: notifier}
}

// List returns notifications, only unread ones with ?unread=1.
func (n *NotificationController) List(ctx *gin.Context) {
	page, perPage := pagination(ctx)
	unread := queryBool(ctx, "unread")
	items, total, err := n.notifier.List(ctx.Request.Context(), unread != nil && *unread, page, perPage)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.SuccessWithMeta(ctx, items, utils.NewPageMeta(page, perPage, total))
}

// MarkRead flags one notification as read.
func (n *NotificationController) MarkRead(ctx *gin.Context) {
	id, err := paramID(ctx, "id")
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	if err := n.notifier.MarkRead(ctx.Request.Context(), id); err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"id": id, "read": true})
}

// MarkAllRead flags every notification as read.
func (n *NotificationController) MarkAllRead(ctx *gin.Context) {
	count, err := n.notifier.MarkAllRead(ctx.Request.Context())
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"updated": count})
}
