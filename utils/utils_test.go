package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dinor/dinor-api/config"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{ErrModelNotFound, http.StatusNotFound, CodeModelNotFound},
		{fmt.Errorf("load: %w", ErrModelNotFound), http.StatusNotFound, CodeModelNotFound},
		{ErrUnauthenticated, http.StatusUnauthorized, CodeUnauthenticated},
		{ErrAccessDenied, http.StatusForbidden, CodeAccessDenied},
		{NewValidationError("title", "required"), http.StatusUnprocessableEntity, CodeValidation},
		{ErrConflict, http.StatusConflict, CodeConflict},
		{gorm.ErrDuplicatedKey, http.StatusConflict, CodeConflict},
		{errors.New("UNIQUE constraint failed: users.email"), http.StatusConflict, CodeConflict},
		{errors.New("Error 1062 (23000): Duplicate entry 'a@b.c' for key 'idx_users_email'"), http.StatusConflict, CodeConflict},
		{ErrRateLimited, http.StatusTooManyRequests, CodeTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError, CodeServerError},
	}
	for _, tc := range cases {
		status, code := StatusOf(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := NewValidationError("title", "The title field is required.")
	err.Add("id", "The id field is required.")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "the given data was invalid (id: The id field is required.; title: The title field is required.)", err.Error())
}

func failBody(t *testing.T, err error, debug bool) (int, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	SetDebug(debug)
	t.Cleanup(func() { SetDebug(false) })

	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
	Fail(ctx, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestFailEnvelope(t *testing.T) {
	status, body := failBody(t, NewValidationError("content", "The content field is required."), false)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, CodeValidation, body["error"])
	assert.Equal(t, ErrValidation.Error(), body["message"])
	assert.Contains(t, body["errors"], "content")

	status, body = failBody(t, errors.New("dial tcp: refused"), false)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", body["message"])
	assert.NotContains(t, body, "trace")

	_, body = failBody(t, errors.New("dial tcp: refused"), true)
	assert.Equal(t, "dial tcp: refused", body["trace"])
}

func TestRequiresAuthEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	RequiresAuth(ctx, "")

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, true, body["requires_auth"])
	assert.Equal(t, "Authentication required", body["message"])
}

func TestNewPageMeta(t *testing.T) {
	assert.Equal(t, PageMeta{CurrentPage: 1, LastPage: 1, PerPage: 15, Total: 0}, NewPageMeta(1, 15, 0))
	assert.Equal(t, 3, NewPageMeta(2, 10, 21).LastPage)
	assert.Equal(t, 2, NewPageMeta(2, 10, 20).LastPage)
}

func TestBindJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	type payload struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
	}
	bind := func(body string) error {
		w := httptest.NewRecorder()
		ctx, _ := gin.CreateTestContext(w)
		ctx.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		ctx.Request.Header.Set("Content-Type", "application/json")
		var p payload
		return BindJSON(ctx, &p)
	}

	var verr *ValidationError
	require.ErrorAs(t, bind(`{"email":"nope","password":"short"}`), &verr)
	assert.Equal(t, []string{"The email must be a valid email address."}, verr.Fields["email"])
	assert.Equal(t, []string{"The password must be at least 8 characters."}, verr.Fields["password"])

	require.ErrorAs(t, bind(""), &verr)
	assert.Equal(t, []string{"request body is required"}, verr.Fields["body"])

	require.ErrorAs(t, bind("{"), &verr)
	assert.Contains(t, verr.Fields, "body")

	assert.NoError(t, bind(`{"email":"a@b.co","password":"long enough"}`))
}

func TestValidateStructUsesSnakeCase(t *testing.T) {
	type item struct {
		VideoURL             string `validate:"required"`
		PasswordConfirmation string `validate:"required"`
		Title                string `validate:"max=3"`
	}
	var verr *ValidationError
	require.ErrorAs(t, ValidateStruct(item{Title: "Attiéké"}), &verr)
	assert.Contains(t, verr.Fields, "video_url")
	assert.Contains(t, verr.Fields, "password_confirmation")
	assert.Equal(t, []string{"The title may not be greater than 3 characters."}, verr.Fields["title"])
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "Bon appétit", SanitizeText("  <b>Bon</b> appétit "))
	assert.NotContains(t, Sanitize(`<p onclick="x()">hi</p><script>alert(1)</script>`), "script")
	assert.Contains(t, Sanitize(`<p>hi</p>`), "<p>hi</p>")
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("secret123")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "secret123"))
	assert.False(t, CheckPassword(hash, "secret124"))
}

func TestTokenRoundTrip(t *testing.T) {
	config.Override(config.AppConfig{JWTSecret: "unit-secret"})
	tok, err := GenerateToken(9, "a@dinor.test", "admin", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, uint(9), claims.UserID)
	assert.Equal(t, "admin", claims.Role)

	expired, err := GenerateToken(9, "a@dinor.test", "admin", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired)
	assert.Error(t, err)

	config.Override(config.AppConfig{JWTSecret: "rotated"})
	_, err = ParseToken(tok)
	assert.Error(t, err)
}

func TestInMemoryBlacklist(t *testing.T) {
	prev := redisClient
	redisOnce.Do(func() {})
	redisClient = nil
	t.Cleanup(func() { redisClient = prev })

	BlacklistToken("tok-a", time.Now().Add(time.Minute))
	BlacklistToken("tok-b", time.Now().Add(-time.Minute))
	assert.True(t, IsTokenBlacklisted("tok-a"))
	assert.False(t, IsTokenBlacklisted("tok-b"))
	assert.False(t, IsTokenBlacklisted("tok-c"))
}
