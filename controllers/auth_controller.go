package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/dinor/dinor-api/config"
	"github.com/dinor/dinor-api/middleware"
	"github.com/dinor/dinor-api/models"
	"github.com/dinor/dinor-api/utils"
)

// AuthController handles authentication related endpoints including local and Google login.
type AuthController struct {
	db *gorm.DB
}

// NewAuthController creates an AuthController.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

// Register creates a local account and returns a bearer token.
func (a *AuthController) Register(ctx *gin.Context) {
	var req struct {
		Name                 string `json:"name" binding:"required,max=128"`
		Email                string `json:"email" binding:"required,email,max=255"`
		Password             string `json:"password" binding:"required,min=8,max=72"`
		PasswordConfirmation string `json:"password_confirmation" binding:"required,eqfield=Password"`
	}
	if err := utils.BindJSON(ctx, &req); err != nil {
		utils.Fail(ctx, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	var count int64
	// Deleted accounts still hold their address in the unique index.
	if err := a.db.Unscoped().Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	if count > 0 {
		utils.Fail(ctx, utils.NewValidationError("email", "The email has already been taken."))
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Fail(ctx, fmt.Errorf("hash password: %w", err))
		return
	}

	user := models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	if config.Get().IsAdminEmail(email) {
		user.Role = models.RoleAdmin
	}
	if err := a.db.Create(&user).Error; err != nil {
		if utils.IsDuplicateKey(err) {
			// Lost a race with a concurrent registration.
			err = utils.NewValidationError("email", "The email has already been taken.")
		}
		utils.Fail(ctx, err)
		return
	}

	a.respondWithToken(ctx, http.StatusCreated, "Account created", user)
}

// Login verifies user credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := utils.BindJSON(ctx, &req); err != nil {
		utils.Fail(ctx, err)
		return
	}

	var user models.User
	err := a.db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if err != nil || user.PasswordHash == "" || !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthenticated, "invalid email or password")
		return
	}

	a.touchLogin(&user)
	a.respondWithToken(ctx, http.StatusOK, "Logged in", user)
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthenticated, "invalid token")
		return
	}

	expiresAt := time.Now().Add(a.tokenTTL())
	if claims.RegisteredClaims.ExpiresAt != nil {
		expiresAt = claims.RegisteredClaims.ExpiresAt.Time
	}

	utils.BlacklistToken(token, expiresAt)
	ctx.JSON(http.StatusOK, utils.JSONResponse{Success: true, Message: "Logged out"})
}

// Profile returns the current authenticated user's information.
func (a *AuthController) Profile(ctx *gin.Context) {
	user, err := currentUser(ctx, a.db)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, sanitizeUserResponse(user))
}

// UpdateProfile allows the authenticated user to update basic profile fields.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	var req struct {
		Name            *string `json:"name" binding:"omitempty,min=1,max=128"`
		AvatarURL       *string `json:"avatar_url" binding:"omitempty,url,max=512"`
		CurrentPassword string  `json:"current_password"`
		Password        string  `json:"password" binding:"omitempty,min=8,max=72"`
	}
	if err := utils.BindJSON(ctx, &req); err != nil {
		utils.Fail(ctx, err)
		return
	}

	user, err := currentUser(ctx, a.db)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = utils.SanitizeText(*req.Name)
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*req.AvatarURL)
	}
	if req.Password != "" {
		if user.PasswordHash != "" && !utils.CheckPassword(user.PasswordHash, req.CurrentPassword) {
			utils.Fail(ctx, utils.NewValidationError("current_password", "The current password is incorrect."))
			return
		}
		hash, err := utils.HashPassword(req.Password)
		if err != nil {
			utils.Fail(ctx, fmt.Errorf("hash password: %w", err))
			return
		}
		updates["password_hash"] = hash
	}
	if len(updates) > 0 {
		if err := a.db.Model(&user).Updates(updates).Error; err != nil {
			utils.Fail(ctx, err)
			return
		}
		if err := a.db.First(&user, user.ID).Error; err != nil {
			utils.Fail(ctx, err)
			return
		}
	}

	utils.Success(ctx, sanitizeUserResponse(user))
}

// ListUsers returns paginated users for the admin UI.
func (a *AuthController) ListUsers(ctx *gin.Context) {
	page, perPage := pagination(ctx)
	var (
		users []models.User
		total int64
	)
	if err := a.db.Model(&models.User{}).Count(&total).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	if err := a.db.Order("created_at DESC").Offset((page - 1) * perPage).Limit(perPage).Find(&users).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, sanitizeUserResponse(u))
	}
	utils.SuccessWithMeta(ctx, out, utils.NewPageMeta(page, perPage, total))
}

// OAuthRedirect generates a provider-specific authorization URL.
func (a *AuthController) OAuthRedirect(ctx *gin.Context) {
	cfg, err := a.oauthConfig(ctx.Param("provider"))
	if err != nil {
		utils.Fail(ctx, utils.NewValidationError("provider", err.Error()))
		return
	}

	state := uuid.NewString()
	utils.SaveState(state, 10*time.Minute)

	url := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	utils.Success(ctx, gin.H{"authorization_url": url, "state": state})
}

// OAuthCallback exchanges the authorization code for a user identity and issues a JWT.
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	provider := ctx.Param("provider")
	code := ctx.Query("code")
	state := ctx.Query("state")

	if code == "" || state == "" {
		utils.Fail(ctx, utils.NewValidationError("code", "missing code or state"))
		return
	}

	if !utils.ConsumeState(state) {
		utils.Fail(ctx, utils.NewValidationError("state", "invalid or expired state"))
		return
	}

	cfg, err := a.oauthConfig(provider)
	if err != nil {
		utils.Fail(ctx, utils.NewValidationError("provider", err.Error()))
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 10*time.Second)
	defer cancel()

	token, err := cfg.Exchange(reqCtx, code)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthenticated, "failed to exchange code")
		return
	}

	info, err := fetchGoogleUser(reqCtx, cfg, token)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}

	user, err := a.findOrCreateOAuthUser(provider, info)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}

	a.touchLogin(user)
	a.respondWithToken(ctx, http.StatusOK, "Logged in", *user)
}

func (a *AuthController) tokenTTL() time.Duration {
	return time.Duration(config.Get().TokenTTLHours) * time.Hour
}

func (a *AuthController) respondWithToken(ctx *gin.Context, status int, message string, user models.User) {
	ttl := a.tokenTTL()
	token, err := utils.GenerateToken(user.ID, user.Email, user.Role, ttl)
	if err != nil {
		utils.Fail(ctx, fmt.Errorf("generate token: %w", err))
		return
	}
	ctx.JSON(status, utils.JSONResponse{
		Success: true,
		Message: message,
		Data: gin.H{
			"token":      token,
			"token_type": "Bearer",
			"expires_in": int(ttl.Seconds()),
			"user":       sanitizeUserResponse(user),
		},
	})
}

func (a *AuthController) touchLogin(user *models.User) {
	now := time.Now()
	user.LastLoginAt = &now
	if err := a.db.Model(user).UpdateColumn("last_login_at", now).Error; err != nil {
		utils.Sugar.Warnf("last login not stored for user %d: %v", user.ID, err)
	}
}

func (a *AuthController) oauthConfig(provider string) (*oauth2.Config, error) {
	cfg := config.Get()
	switch strings.ToLower(provider) {
	case "google":
		if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
			return nil, fmt.Errorf("google oauth not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  fmt.Sprintf("%s/api/v1/auth/oauth/google/callback", cfg.OAuthRedirectBase),
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

type oauthUser struct {
	ID        string
	Name      string
	Email     string
	AvatarURL string
}

func (a *AuthController) findOrCreateOAuthUser(provider string, data *oauthUser) (*models.User, error) {
	var user models.User
	email := strings.ToLower(strings.TrimSpace(data.Email))
	err := a.db.Where("provider = ? AND provider_id = ?", provider, data.ID).First(&user).Error
	if err == nil {
		updates := map[string]interface{}{"avatar_url": data.AvatarURL}
		_ = a.db.Model(&user).Updates(updates)
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Link to an existing local account with the same address.
	if email != "" {
		err = a.db.Where("email = ?", email).First(&user).Error
		if err == nil {
			if err := a.db.Model(&user).Updates(map[string]interface{}{"provider": provider, "provider_id": data.ID}).Error; err != nil {
				return nil, err
			}
			return &user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	user = models.User{
		Name:       fallback(data.Name, email, provider+" user"),
		Email:      email,
		Role:       models.RoleUser,
		Provider:   provider,
		ProviderID: data.ID,
		AvatarURL:  data.AvatarURL,
	}
	if config.Get().IsAdminEmail(email) {
		user.Role = models.RoleAdmin
	}
	if err := a.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func fetchGoogleUser(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) (*oauthUser, error) {
	client := cfg.Client(ctx, token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google user info request failed: %s", resp.Status)
	}

	var payload struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	return &oauthUser{
		ID:        payload.ID,
		Name:      payload.Name,
		Email:     payload.Email,
		AvatarURL: payload.Picture,
	}, nil
}

func fallback(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func sanitizeUserResponse(user models.User) gin.H {
	return gin.H{
		"id":            user.ID,
		"name":          user.Name,
		"email":         user.Email,
		"role":          user.Role,
		"avatar_url":    user.AvatarURL,
		"provider":      user.Provider,
		"last_login_at": user.LastLoginAt,
		"created_at":    user.CreatedAt,
	}
}
