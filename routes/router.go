package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dinor/dinor-api/cache"
	"github.com/dinor/dinor-api/config"
	"github.com/dinor/dinor-api/controllers"
	"github.com/dinor/dinor-api/jobs"
	"github.com/dinor/dinor-api/middleware"
	"github.com/dinor/dinor-api/models"
	"github.com/dinor/dinor-api/services"
	"github.com/dinor/dinor-api/utils"
)

// Deps carries the services the HTTP layer needs.
type Deps struct {
	DB        *gorm.DB
	Cache     *cache.Store
	Queue     *jobs.Queue
	Content   *services.ContentService
	Likes     *services.LikeService
	Favorites *services.FavoriteService
	Comments  *services.CommentService
	Views     *services.ViewService
	PWA       *services.PWAService
	Warmer    *services.Warmer
	Notifier  *services.Notifier
}

// publicKinds get list and detail routes under their slug, e.g. /api/v1/dinor-tv.
var publicKinds = []models.ContentKind{
	models.KindRecipe,
	models.KindTip,
	models.KindEvent,
	models.KindVideo,
	models.KindPage,
	models.KindMenuItem,
	models.KindBanner,
	models.KindCategory,
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(d Deps) *gin.Engine {
	// Load config and set Gin mode from configuration
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, cfg.Debug))
	} else {
		// fallback to app logger if the access log file cannot be opened
		r.Use(utils.RecoveryWithZap(utils.Logger, cfg.Debug))
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Accept", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		// Browsers reject "*" with credentials, so reflect the caller instead.
		corsCfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(d.DB)
	contentController := controllers.NewContentController(d.Content, d.Likes, d.Favorites)
	adminContentController := controllers.NewAdminContentController(d.Content)
	likeController := controllers.NewLikeController(d.Likes)
	favoriteController := controllers.NewFavoriteController(d.Favorites)
	commentController := controllers.NewCommentController(d.DB, d.Comments)
	notificationController := controllers.NewNotificationController(d.Notifier)
	pwaController := controllers.NewPWAController(d.Cache, d.PWA, d.Warmer, d.Queue)
	statsController := controllers.NewStatsController(d.DB, d.Cache, d.Views)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitPerMinute("auth", 20))
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/oauth/:provider/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/:provider/callback", authController.OAuthCallback)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/profile", middleware.AuthRequired(), authController.Profile)
	authGroup.PUT("/profile", middleware.AuthRequired(), authController.UpdateProfile)

	// Public reads. Detail views are counted.
	reads := api.Group("")
	reads.Use(middleware.OptionalAuth(), middleware.ContentViewRecorder(d.Views))
	for _, kind := range publicKinds {
		reads.GET("/"+kind.Slug(), contentController.List(kind))
		reads.GET("/"+kind.Slug()+"/:id", contentController.Show(kind))
	}

	interactions := api.Group("")
	interactions.Use(middleware.RateLimitMiddleware())
	// Anonymous likes are keyed by IP; the service refuses them when likes require auth.
	interactions.POST("/likes/toggle", middleware.OptionalAuth(), likeController.Toggle)
	interactions.GET("/likes/check", middleware.OptionalAuth(), likeController.Check)
	interactions.POST("/favorites/toggle", middleware.InteractionAuth(), favoriteController.Toggle)
	interactions.GET("/favorites/check", middleware.OptionalAuth(), favoriteController.Check)
	interactions.GET("/favorites", middleware.InteractionAuth(), favoriteController.List)
	interactions.GET("/comments", commentController.List)
	interactions.POST("/comments", middleware.InteractionAuth(), commentController.Create)
	interactions.PUT("/comments/:id", middleware.InteractionAuth(), commentController.Update)
	interactions.DELETE("/comments/:id", middleware.InteractionAuth(), commentController.Delete)

	api.GET("/stats", statsController.GetStats)
	api.GET("/stats/:kind/:id", statsController.GetContentStats)

	admin := api.Group("/admin")
	admin.Use(middleware.AuthRequired(), middleware.RequireAdmin())
	admin.GET("/users", authController.ListUsers)
	admin.GET("/content/:kind", adminContentController.List)
	admin.POST("/content/:kind", adminContentController.Create)
	admin.GET("/content/:kind/:id", adminContentController.Show)
	admin.PUT("/content/:kind/:id", adminContentController.Update)
	admin.PATCH("/content/:kind/:id", adminContentController.Update)
	admin.DELETE("/content/:kind/:id", adminContentController.Delete)
	admin.POST("/content/:kind/:id/restore", adminContentController.Restore)
	admin.POST("/content/:kind/:id/publish", adminContentController.Publish)
	admin.POST("/content/:kind/:id/unpublish", adminContentController.Unpublish)
	admin.GET("/comments/pending", commentController.Pending)
	admin.POST("/comments/:id/approve", commentController.Approve)
	admin.POST("/comments/:id/reject", commentController.Reject)
	admin.POST("/comments/:id/restore", commentController.Restore)
	admin.GET("/notifications", notificationController.List)
	admin.POST("/notifications/read-all", notificationController.MarkAllRead)
	admin.POST("/notifications/:id/read", notificationController.MarkRead)

	pwa := r.Group("/pwa")
	pwa.GET("/version", pwaController.Version)
	pwaCache := pwa.Group("/cache")
	pwaCache.Use(middleware.AuthRequired(), middleware.RequireAdmin())
	pwaCache.POST("/set", pwaController.Set)
	pwaCache.GET("/get", pwaController.Get)
	pwaCache.POST("/invalidate", pwaController.Invalidate)
	pwaCache.POST("/clear", pwaController.Clear)
	pwaCache.GET("/stats", pwaController.Stats)
	pwaCache.POST("/warmup", pwaController.Warmup)

	r.StaticFS("/pwa/app", gin.Dir(cfg.PWA.PublicDir+"/pwa", false))

	r.NoMethod(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusMethodNotAllowed, utils.CodeMethodNotAllowed, "method not allowed")
	})
	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, utils.CodeEndpointNotFound, "endpoint not found")
	})

	return r
}
