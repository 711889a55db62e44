package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dinor/dinor-api/models"
	"github.com/dinor/dinor-api/services"
	"github.com/dinor/dinor-api/utils"
)

// AdminContentController is the write side for every content kind. Each
// successful write emits a content event that drives cache invalidation.
type AdminContentController struct {
	content *services.ContentService
}

// NewAdminContentController creates an AdminContentController.
func NewAdminContentController(content *services.ContentService) *AdminContentController {
	return &AdminContentController{content: content}
}

func kindParam(ctx *gin.Context) (models.ContentKind, bool) {
	kind, err := models.ParseKind(ctx.Param("kind"))
	if err != nil {
		utils.Error(ctx, http.StatusNotFound, utils.CodeEndpointNotFound, err.Error())
		return "", false
	}
	return kind, true
}

// List returns rows of any publication state.
func (a *AdminContentController) List(ctx *gin.Context) {
	kind, ok := kindParam(ctx)
	if !ok {
		return
	}
	page, perPage := pagination(ctx)
	q := services.ListQuery{
		Page:               page,
		PerPage:            perPage,
		Search:             ctx.Query("search"),
		Featured:           queryBool(ctx, "featured"),
		IncludeUnpublished: true,
	}
	if v, err := strconv.ParseUint(ctx.Query("category_id"), 10, 64); err == nil {
		q.CategoryID = uint(v)
	}
	res, err := a.content.List(ctx.Request.Context(), kind, q)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.SuccessWithMeta(ctx, res.Items, res.Meta)
}

// Show returns one row including drafts.
func (a *AdminContentController) Show(ctx *gin.Context) {
	kind, ok := kindParam(ctx)
	if !ok {
		return
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	item, err := a.content.Get(ctx.Request.Context(), kind, id, true)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, item)
}

// Create inserts a row from the JSON body.
func (a *AdminContentController) Create(ctx *gin.Context) {
	kind, ok := kindParam(ctx)
	if !ok {
		return
	}
	body, err := ctx.GetRawData()
	if err != nil {
		utils.Fail(ctx, utils.NewValidationError("body", "request body could not be read"))
		return
	}
	item, err := a.content.Create(ctx.Request.Context(), kind, body)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Created(ctx, "Created", item)
}

// Update merges the JSON body into a row.
func (a *AdminContentController) Update(ctx *gin.Context) {
	kind, ok := kindParam(ctx)
	if !ok {
		return
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	body, err := ctx.GetRawData()
	if err != nil {
		utils.Fail(ctx, utils.NewValidationError("body", "request body could not be read"))
		return
	}
	item, err := a.content.Update(ctx.Request.Context(), kind, id, body)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, item)
}

// Publish makes a row public.
func (a *AdminContentController) Publish(ctx *gin.Context) { a.setPublished(ctx, true) }

// Unpublish hides a row.
func (a *AdminContentController) Unpublish(ctx *gin.Context) { a.setPublished(ctx, false) }

func (a *AdminContentController) setPublished(ctx *gin.Context, published bool) {
	kind, ok := kindParam(ctx)
	if !ok {
		return
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	item, err := a.content.SetPublished(ctx.Request.Context(), kind, id, published)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, item)
}

// Delete soft-deletes a row.
func (a *AdminContentController) Delete(ctx *gin.Context) {
	kind, ok := kindParam(ctx)
	if !ok {
		return
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	if err := a.content.Delete(ctx.Request.Context(), kind, id); err != nil {
		utils.Fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, utils.JSONResponse{Success: true, Message: "Deleted"})
}

// Restore undeletes a row.
func (a *AdminContentController) Restore(ctx *gin.Context) {
	kind, ok := kindParam(ctx)
	if !ok {
		return
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	item, err := a.content.Restore(ctx.Request.Context(), kind, id)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, item)
}
