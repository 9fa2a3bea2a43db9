package controllers

import (
	"net/http"
	"time"

	"github.com/sandor-zhong/baby-chengcheng/middlewares"
	"github.com/sandor-zhong/baby-chengcheng/services"
	"github.com/sandor-zhong/baby-chengcheng/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuthController struct {
	Users        *services.UserService
	Secret       []byte
	TTL          time.Duration
	SecureCookie bool
}

func NewAuthController(users *services.UserService, secret []byte, ttl time.Duration, secureCookie bool) *AuthController {
	return &AuthController{Users: users, Secret: secret, TTL: ttl, SecureCookie: secureCookie}
}

type RegisterInput struct {
	Email     string `form:"email" json:"email" binding:"required,email"`
	Password  string `form:"password" json:"password" binding:"required"`
	Password2 string `form:"password2" json:"password2" binding:"required"`
}

type LoginInput struct {
	Email    string `form:"email" json:"email" binding:"required,email"`
	Password string `form:"password" json:"password" binding:"required"`
}

type ForgotPasswordInput struct {
	Email string `form:"email" json:"email" binding:"required,email"`
}

type ResetPasswordInput struct {
	Email       string `form:"email" json:"email" binding:"required,email"`
	Code        string `form:"code" json:"code" binding:"required"`
	NewPassword string `form:"new_password" json:"new_password" binding:"required"`
}

func (h *AuthController) Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBind(&input); err != nil {
		fail(c, "/register", bindError(err))
		return
	}
	user, err := h.Users.Register(c.Request.Context(), input.Email, input.Password, input.Password2)
	if err != nil {
		fail(c, "/register", err)
		return
	}
	token, err := h.startSession(c, user.ID, user.Email)
	if err != nil {
		fail(c, "/register", err)
		return
	}
	succeed(c, "/", "Registration successful, welcome!", gin.H{"token": token, "user": user})
}

func (h *AuthController) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBind(&input); err != nil {
		fail(c, "/login", bindError(err))
		return
	}
	user, err := h.Users.Authenticate(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		fail(c, "/login", err)
		return
	}
	token, err := h.startSession(c, user.ID, user.Email)
	if err != nil {
		fail(c, "/login", err)
		return
	}
	succeed(c, "/", "Logged in", gin.H{"token": token, "user": user})
}

// startSession issues a token for a fresh login session and sets it as a cookie.
// The session id scopes undo to this login.
func (h *AuthController) startSession(c *gin.Context, userID uint, email string) (string, error) {
	token, err := utils.GenerateJWT(userID, email, uuid.NewString(), h.Secret, h.TTL)
	if err != nil {
		return "", err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middlewares.TokenCookie, token, int(h.TTL.Seconds()), "/", "", h.SecureCookie, true)
	return token, nil
}

func (h *AuthController) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middlewares.TokenCookie, "", -1, "/", "", h.SecureCookie, true)
	succeed(c, "/login", "Logged out", nil)
}

func (h *AuthController) ChangePassword(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var input struct {
		Current string `form:"current_password" json:"current_password" binding:"required"`
		New     string `form:"new_password" json:"new_password" binding:"required"`
	}
	if err := c.ShouldBind(&input); err != nil {
		fail(c, "/settings", bindError(err))
		return
	}
	if err := h.Users.ChangePassword(c.Request.Context(), userID, input.Current, input.New); err != nil {
		fail(c, "/settings", err)
		return
	}
	succeed(c, "/settings", "Password changed", nil)
}

func (h *AuthController) ForgotPassword(c *gin.Context) {
	var input ForgotPasswordInput
	if err := c.ShouldBind(&input); err != nil {
		fail(c, "/forgot", bindError(err))
		return
	}
	if err := h.Users.RequestPasswordReset(c.Request.Context(), input.Email); err != nil {
		fail(c, "/forgot", err)
		return
	}
	succeed(c, "/reset", "If the email exists, a reset code has been sent", nil)
}

func (h *AuthController) ResetPassword(c *gin.Context) {
	var input ResetPasswordInput
	if err := c.ShouldBind(&input); err != nil {
		fail(c, "/reset", bindError(err))
		return
	}
	if err := h.Users.ResetPassword(c.Request.Context(), input.Email, input.Code, input.NewPassword); err != nil {
		fail(c, "/reset", err)
		return
	}
	succeed(c, "/login", "Password has been reset, please log in", nil)
}

// Flash pops the pending flash message for pages rendered by the front-end.
func Flash(c *gin.Context) {
	f, found := middlewares.PopFlash(c)
	if !found {
		c.JSON(http.StatusOK, gin.H{"flash": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"flash": f})
}
