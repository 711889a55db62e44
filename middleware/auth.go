package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dinor/dinor-api/config"
	"github.com/dinor/dinor-api/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextEmailKey stores the user email inside Gin context.
	ContextEmailKey = "email"
	// ContextRoleKey stores the user role inside Gin context.
	ContextRoleKey = "role"
	// ContextTokenKey stores the raw bearer token, used by logout.
	ContextTokenKey = "token"
)

// authenticate validates the bearer token. It returns a client-facing message on failure.
func authenticate(ctx *gin.Context) (*utils.Claims, string, string) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return nil, "", "authorization header missing"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, "", "invalid authorization header format"
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return nil, "", "empty bearer token"
	}

	if utils.IsTokenBlacklisted(tokenString) {
		return nil, "", "token revoked"
	}

	claims, err := utils.ParseToken(tokenString)
	if err != nil {
		return nil, "", "invalid token"
	}
	return claims, tokenString, ""
}

func setIdentity(ctx *gin.Context, claims *utils.Claims, token string) {
	ctx.Set(ContextUserIDKey, claims.UserID)
	ctx.Set(ContextEmailKey, claims.Email)
	ctx.Set(ContextRoleKey, claims.Role)
	ctx.Set(ContextTokenKey, token)
}

// AuthRequired ensures the request is authenticated via JWT.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, token, msg := authenticate(ctx)
		if claims == nil {
			utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthenticated, msg)
			return
		}
		setIdentity(ctx, claims, token)
		ctx.Next()
	}
}

// InteractionAuth is AuthRequired for like, favorite and comment writes:
// failures carry requires_auth so clients can open their login prompt.
func InteractionAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, token, _ := authenticate(ctx)
		if claims == nil {
			utils.RequiresAuth(ctx, "Authentication required to perform this action")
			return
		}
		setIdentity(ctx, claims, token)
		ctx.Next()
	}
}

// OptionalAuth attaches the user when a valid token is sent and lets anonymous requests through.
func OptionalAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if claims, token, _ := authenticate(ctx); claims != nil {
			setIdentity(ctx, claims, token)
		}
		ctx.Next()
	}
}

// RequireAdmin must run after AuthRequired.
func RequireAdmin() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !config.Get().IsAdmin(ctx.GetString(ContextRoleKey), ctx.GetString(ContextEmailKey)) {
			utils.Error(ctx, http.StatusForbidden, utils.CodeAccessDenied, "admin privileges required")
			return
		}
		ctx.Next()
	}
}

// CurrentUserID returns the authenticated user id, if any.
func CurrentUserID(ctx *gin.Context) (uint, bool) {
	v, ok := ctx.Get(ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}
