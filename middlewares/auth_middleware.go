// middlewares/auth_middleware.go
package middlewares

import (
	"net/http"
	"strings"

	"github.com/sandor-zhong/baby-chengcheng/utils"

	"github.com/gin-gonic/gin"
)

// Keys set on the gin context by the auth middlewares.
const (
	CtxUserID    = "userID"
	CtxEmail     = "email"
	CtxSessionID = "sessionID"

	TokenCookie = "token"
)

// tokenFromRequest reads a bearer token, falling back to the session cookie
// browsers send with form posts.
func tokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if v, err := c.Cookie(TokenCookie); err == nil {
		return v
	}
	return ""
}

func authenticate(c *gin.Context, secret []byte) bool {
	tokenString := tokenFromRequest(c)
	if tokenString == "" {
		return false
	}
	claims, err := utils.ParseJWT(tokenString, secret)
	if err != nil {
		return false
	}
	c.Set(CtxUserID, claims.UserID)
	c.Set(CtxEmail, claims.Email)
	c.Set(CtxSessionID, claims.SessionID)
	return true
}

// AuthMiddleware rejects requests without a valid token. API clients get a 401;
// browsers are sent to the login page with a flash message.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authenticate(c, secret) {
			c.Next()
			return
		}
		if WantsJSON(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "please log in first"})
			return
		}
		SetFlash(c, utils.FlashWarning, "Please log in first")
		c.Redirect(http.StatusSeeOther, "/login")
		c.Abort()
	}
}

// OptionalAuth identifies the user when a valid token is present and lets
// anonymous requests through otherwise.
func OptionalAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authenticate(c, secret)
		c.Next()
	}
}

// WantsJSON reports whether the client expects a JSON answer rather than a redirect.
func WantsJSON(c *gin.Context) bool {
	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		return true
	}
	if c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	if strings.HasPrefix(c.Request.URL.Path, "/api/") || c.Request.URL.Path == "/ws" {
		return true
	}
	return strings.HasPrefix(c.ContentType(), "application/json")
}
