package controllers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dinor/dinor-api/cache"
	"github.com/dinor/dinor-api/jobs"
	"github.com/dinor/dinor-api/models"
	"github.com/dinor/dinor-api/services"
	"github.com/dinor/dinor-api/utils"
)

// PWAController exposes the cache tooling used by operators and the PWA.
type PWAController struct {
	cache  *cache.Store
	pwa    *services.PWAService
	warmer *services.Warmer
	queue  *jobs.Queue
}

// NewPWAController creates a PWAController. queue may be nil.
func NewPWAController(c *cache.Store, pwa *services.PWAService, warmer *services.Warmer, queue *jobs.Queue) *PWAController {
	return &PWAController{cache: c, pwa: pwa, warmer: warmer, queue: queue}
}

// Version returns the current PWA build version and its metadata.
func (p *PWAController) Version(ctx *gin.Context) {
	versions := p.pwa.Versions()
	meta, err := versions.Meta()
	if err != nil {
		utils.Sugar.Warnf("pwa build metadata unreadable: %v", err)
	}
	utils.Success(ctx, gin.H{
		"version": versions.Current(ctx.Request.Context()),
		"meta":    meta,
	})
}

// Set stores an arbitrary JSON value, optionally tagged.
func (p *PWAController) Set(ctx *gin.Context) {
	var req struct {
		Key   string          `json:"key" binding:"required,max=200"`
		Value json.RawMessage `json:"value" binding:"required"`
		TTL   int             `json:"ttl" binding:"omitempty,min=1,max=86400"`
		Tags  []string        `json:"tags"`
	}
	if err := utils.BindJSON(ctx, &req); err != nil {
		utils.Fail(ctx, err)
		return
	}
	ttl := time.Duration(req.TTL) * time.Second
	if err := p.cache.Set(ctx.Request.Context(), req.Key, req.Value, ttl, req.Tags...); err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"key": req.Key, "stored": p.cache.Enabled()})
}

// Get returns a cached value by ?key=.
func (p *PWAController) Get(ctx *gin.Context) {
	key := ctx.Query("key")
	if key == "" {
		utils.Fail(ctx, utils.NewValidationError("key", "The key field is required."))
		return
	}
	b, err := p.cache.Get(ctx.Request.Context(), key)
	if errors.Is(err, cache.ErrMiss) {
		utils.Success(ctx, gin.H{"key": key, "hit": false, "value": nil})
		return
	}
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	var value interface{} = string(b)
	if json.Valid(b) {
		value = json.RawMessage(b)
	}
	utils.Success(ctx, gin.H{"key": key, "hit": true, "value": value})
}

// Invalidate flushes one content type, or runs a full rebuild with "rebuild": true.
func (p *PWAController) Invalidate(ctx *gin.Context) {
	var req struct {
		Type    string `json:"type"`
		Rebuild bool   `json:"rebuild"`
	}
	if err := utils.BindJSON(ctx, &req); err != nil {
		utils.Fail(ctx, err)
		return
	}
	res := gin.H{}
	if req.Type != "" {
		kind, err := models.ParseKind(req.Type)
		if err != nil {
			utils.Fail(ctx, utils.NewValidationError("type", err.Error()))
			return
		}
		p.pwa.Invalidate(ctx.Request.Context(), kind, "manual")
		res["invalidated"] = kind
	}
	if req.Rebuild {
		res["rebuild"] = p.pwa.FullRebuild(ctx.Request.Context(), "manual rebuild")
	}
	if len(res) == 0 {
		utils.Fail(ctx, utils.NewValidationError("type", "Either type or rebuild is required."))
		return
	}
	utils.Success(ctx, res)
}

// Clear drops every cached entry.
func (p *PWAController) Clear(ctx *gin.Context) {
	n, err := p.cache.Flush(ctx.Request.Context())
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"deleted": n})
}

// Stats reports cache and job queue figures.
func (p *PWAController) Stats(ctx *gin.Context) {
	st, err := p.cache.Stats(ctx.Request.Context())
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	out := gin.H{
		"enabled": p.cache.Enabled(),
		"cache":   st,
		"version": p.pwa.Versions().Current(ctx.Request.Context()),
	}
	if p.queue != nil {
		if counts, err := p.queue.Counts(ctx.Request.Context()); err == nil {
			out["jobs"] = counts
		}
		if failed, err := p.queue.Failed(ctx.Request.Context()); err == nil {
			out["failed_jobs"] = failed
		}
	}
	utils.Success(ctx, out)
}

// Warmup fills the listing caches now.
func (p *PWAController) Warmup(ctx *gin.Context) {
	utils.Success(ctx, p.warmer.Warm(ctx.Request.Context()))
}
