package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinor/dinor-api/config"
	"github.com/dinor/dinor-api/models"
	"github.com/dinor/dinor-api/testutil"
	"github.com/dinor/dinor-api/utils"
)

func setup(t *testing.T) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	testutil.Config(t, func(c *config.AppConfig) { c.AdminEmails = []string{"boss@dinor.test"} })
	rc, _ := testutil.NewRedis(t)
	utils.SetRedis(rc)
}

func token(t *testing.T, id uint, email, role string) string {
	t.Helper()
	tok, err := utils.GenerateToken(id, email, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func serve(r *gin.Engine, method, path, tok string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, nil)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestAuthRequired(t *testing.T) {
	setup(t)
	r := gin.New()
	r.GET("/me", AuthRequired(), func(ctx *gin.Context) {
		id, ok := CurrentUserID(ctx)
		ctx.JSON(http.StatusOK, gin.H{"id": id, "ok": ok})
	})

	w, body := serve(r, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, utils.CodeUnauthenticated, body["error"])
	assert.Nil(t, body["requires_auth"])

	w, _ = serve(r, http.MethodGet, "/me", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tok := token(t, 7, "a@dinor.test", models.RoleUser)
	w, body = serve(r, http.MethodGet, "/me", tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 7, body["id"])

	utils.BlacklistToken(tok, time.Now().Add(time.Hour))
	w, _ = serve(r, http.MethodGet, "/me", tok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInteractionAuthAsksForLogin(t *testing.T) {
	setup(t)
	r := gin.New()
	r.POST("/favorites", InteractionAuth(), func(ctx *gin.Context) { ctx.Status(http.StatusNoContent) })

	w, body := serve(r, http.MethodPost, "/favorites", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, true, body["requires_auth"])
	assert.Equal(t, false, body["success"])

	w, _ = serve(r, http.MethodPost, "/favorites", token(t, 1, "a@dinor.test", models.RoleUser))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestOptionalAuth(t *testing.T) {
	setup(t)
	r := gin.New()
	r.GET("/", OptionalAuth(), func(ctx *gin.Context) {
		_, ok := CurrentUserID(ctx)
		ctx.JSON(http.StatusOK, gin.H{"user": ok})
	})

	_, body := serve(r, http.MethodGet, "/", "")
	assert.Equal(t, false, body["user"])
	_, body = serve(r, http.MethodGet, "/", "garbage")
	assert.Equal(t, false, body["user"])
	_, body = serve(r, http.MethodGet, "/", token(t, 3, "a@dinor.test", models.RoleUser))
	assert.Equal(t, true, body["user"])
}

func TestRequireAdmin(t *testing.T) {
	setup(t)
	r := gin.New()
	r.GET("/admin", AuthRequired(), RequireAdmin(), func(ctx *gin.Context) { ctx.Status(http.StatusOK) })

	w, body := serve(r, http.MethodGet, "/admin", token(t, 1, "a@dinor.test", models.RoleUser))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, utils.CodeAccessDenied, body["error"])

	w, _ = serve(r, http.MethodGet, "/admin", token(t, 2, "x@dinor.test", models.RoleAdmin))
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = serve(r, http.MethodGet, "/admin", token(t, 3, "Boss@dinor.test", models.RoleUser))
	assert.Equal(t, http.StatusOK, w.Code, "configured admin email")
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(ctx *gin.Context) { ctx.String(http.StatusOK, ctx.GetString("request_id")) })

	w, _ := serve(r, http.MethodGet, "/", "")
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestRateLimitPerMinute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", RateLimitPerMinute("test-"+t.Name(), 2), func(ctx *gin.Context) { ctx.Status(http.StatusOK) })

	w, _ := serve(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, body := serve(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, utils.CodeTooManyRequests, body["error"])
}

type recorderFunc func(ctx context.Context, subject models.Subject) error

func (f recorderFunc) RecordView(ctx context.Context, subject models.Subject) error {
	return f(ctx, subject)
}

func TestContentViewRecorder(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var seen []models.Subject
	rec := recorderFunc(func(_ context.Context, s models.Subject) error {
		seen = append(seen, s)
		return errors.New("ignored")
	})

	r := gin.New()
	r.Use(ContentViewRecorder(rec))
	r.GET("/recipes/:id", func(ctx *gin.Context) {
		if ctx.Param("id") == "404" {
			ctx.Set(ContextViewSubjectKey, models.Subject{Kind: models.KindRecipe, ID: 404})
			ctx.Status(http.StatusNotFound)
			return
		}
		ctx.Set(ContextViewSubjectKey, models.Subject{Kind: models.KindRecipe, ID: 1})
		ctx.Status(http.StatusOK)
	})
	r.GET("/recipes", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/recipes/1", "")
	serve(r, http.MethodGet, "/recipes/404", "")
	serve(r, http.MethodGet, "/recipes", "")

	require.Len(t, seen, 1)
	assert.Equal(t, models.Subject{Kind: models.KindRecipe, ID: 1}, seen[0])
}
