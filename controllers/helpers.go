package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sandor-zhong/baby-chengcheng/middlewares"
	"github.com/sandor-zhong/baby-chengcheng/services"
	"github.com/sandor-zhong/baby-chengcheng/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func userIDFromCtx(c *gin.Context) (uint, bool) {
	v, ok := c.Get(middlewares.CtxUserID)
	if !ok {
		return 0, false
	}
	switch id := v.(type) {
	case uint:
		return id, id != 0
	case int:
		return uint(id), id > 0
	default:
		return 0, false
	}
}

func sessionIDFromCtx(c *gin.Context) string {
	return c.GetString(middlewares.CtxSessionID)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrBadCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrNothingToUndo),
		errors.Is(err, services.ErrUndoExpired):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrUnsupportedFile),
		errors.Is(err, services.ErrInvalidCode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides internal error detail from users.
func publicMessage(err error, status int) string {
	if status >= http.StatusInternalServerError {
		return "something went wrong, please try again"
	}
	return err.Error()
}

// backTo picks the redirect target after a form post: the same-site Referer, or
// fallback.
func backTo(c *gin.Context, fallback string) string {
	ref := c.GetHeader("Referer")
	if ref == "" {
		return fallback
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Host != "" && u.Host != c.Request.Host) {
		return fallback
	}
	if u.Path == "" {
		return fallback
	}
	return u.RequestURI()
}

// succeed finishes a successful form post: JSON for API clients, otherwise a flash
// message and a 303 redirect.
func succeed(c *gin.Context, fallback, message string, payload gin.H) {
	if middlewares.WantsJSON(c) {
		out := gin.H{"success": true, "message": message}
		for k, v := range payload {
			out[k] = v
		}
		c.JSON(http.StatusOK, out)
		return
	}
	middlewares.SetFlash(c, utils.FlashSuccess, message)
	c.Redirect(http.StatusSeeOther, backTo(c, fallback))
}

// fail reports err the same two ways as succeed.
func fail(c *gin.Context, fallback string, err error) {
	status := statusFor(err)
	msg := publicMessage(err, status)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	if middlewares.WantsJSON(c) {
		c.JSON(status, gin.H{"success": false, "error": msg})
		return
	}
	level := utils.FlashWarning
	if status >= http.StatusInternalServerError || status == http.StatusForbidden {
		level = utils.FlashDanger
	}
	middlewares.SetFlash(c, level, msg)
	c.Redirect(http.StatusSeeOther, backTo(c, fallback))
}

// apiError answers a JSON endpoint with the error mapped to a status.
func apiError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"success": false, "error": publicMessage(err, status)})
}

func queryInt(c *gin.Context, key string, def int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil {
		return v
	}
	return def
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

var fieldLabels = map[string]string{
	"AmountML":    "amount (ml)",
	"Password2":   "password confirmation",
	"Current":     "current password",
	"New":         "new password",
	"NewPassword": "new password",
}

// bindError turns a ShouldBind failure into an invalid-input error with a message
// fit for a flash.
func bindError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return fmt.Errorf("%w: malformed request", services.ErrInvalidInput)
	}
	fe := ve[0]
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = strings.ToLower(fe.Field())
	}
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: %s is required", services.ErrInvalidInput, label)
	case "email":
		return fmt.Errorf("%w: malformed email address", services.ErrInvalidInput)
	case "min":
		return fmt.Errorf("%w: %s must be at least %s", services.ErrInvalidInput, label, fe.Param())
	case "max":
		return fmt.Errorf("%w: %s must be at most %s", services.ErrInvalidInput, label, fe.Param())
	default:
		return fmt.Errorf("%w: invalid %s", services.ErrInvalidInput, label)
	}
}
