package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dinor/dinor-api/cache"
	"github.com/dinor/dinor-api/models"
	"github.com/dinor/dinor-api/services"
	"github.com/dinor/dinor-api/utils"
)

const statsCacheKey = "dashboard_stats"

// StatsController provides dashboard statistics such as counts and daily views.
type StatsController struct {
	db    *gorm.DB
	cache *cache.Store
	views *services.ViewService
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB, c *cache.Store, views *services.ViewService) *StatsController {
	return &StatsController{db: db, cache: c, views: views}
}

// GetStats returns aggregate statistics: published rows per kind, users, interactions and today's views.
func (s *StatsController) GetStats(ctx *gin.Context) {
	stats, err := cache.Remember(ctx.Request.Context(), s.cache, statsCacheKey, 10*time.Minute, nil, func() (gin.H, error) {
		return s.collect(ctx), nil
	})
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, stats)
}

func (s *StatsController) collect(ctx *gin.Context) gin.H {
	db := s.db.WithContext(ctx.Request.Context())
	content := gin.H{}
	for _, kind := range models.AllKinds {
		var n int64
		// Fallback to 0 instead of failing the whole endpoint
		if err := db.Model(models.NewContent(kind)).Where("is_published = ?", true).Count(&n).Error; err != nil {
			n = 0
		}
		content[kind.Slug()] = n
	}

	var users, likes, favorites, comments, pending int64
	if err := db.Model(&models.User{}).Count(&users).Error; err != nil {
		users = 0
	}
	if err := db.Model(&models.Like{}).Count(&likes).Error; err != nil {
		likes = 0
	}
	if err := db.Model(&models.Favorite{}).Count(&favorites).Error; err != nil {
		favorites = 0
	}
	if err := db.Model(&models.Comment{}).Where("is_approved = ?", true).Count(&comments).Error; err != nil {
		comments = 0
	}
	if err := db.Model(&models.Comment{}).Where("is_approved = ?", false).Count(&pending).Error; err != nil {
		pending = 0
	}
	todayViews, err := s.views.ViewsOn(ctx.Request.Context(), time.Now().In(time.Local))
	if err != nil {
		todayViews = 0
	}

	return gin.H{
		"content":          content,
		"user_count":       users,
		"like_count":       likes,
		"favorite_count":   favorites,
		"comment_count":    comments,
		"pending_comments": pending,
		"views_today":      todayViews,
	}
}

// GetContentStats returns views and interaction counters for one row.
func (s *StatsController) GetContentStats(ctx *gin.Context) {
	kind, err := models.ParseKind(ctx.Param("kind"))
	if err != nil || !kind.Interactive() {
		utils.Fail(ctx, utils.ErrModelNotFound)
		return
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	item := models.NewContent(kind)
	if err := s.db.WithContext(ctx.Request.Context()).First(item, id).Error; err != nil {
		utils.Fail(ctx, utils.ErrModelNotFound)
		return
	}
	var daily []models.ContentView
	s.db.WithContext(ctx.Request.Context()).
		Where("subject_type = ? AND subject_id = ?", kind, id).
		Order("date DESC").Limit(30).
		Find(&daily)

	utils.Success(ctx, gin.H{
		"counters": item.Counters(),
		"daily":    daily,
	})
}
