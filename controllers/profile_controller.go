package controllers

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sandor-zhong/baby-chengcheng/services"

	"github.com/gin-gonic/gin"
)

type ProfileController struct {
	Profiles *services.ProfileService
	Media    *services.MediaService
}

func NewProfileController(profiles *services.ProfileService, media *services.MediaService) *ProfileController {
	return &ProfileController{Profiles: profiles, Media: media}
}

// GetProfile answers defaults for anonymous visitors.
func (h *ProfileController) GetProfile(c *gin.Context) {
	userID, _ := userIDFromCtx(c)
	c.JSON(http.StatusOK, h.Profiles.Context(c.Request.Context(), userID))
}

func (h *ProfileController) UpdateProfile(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var input struct {
		Name  string `form:"baby_name" json:"baby_name"`
		Birth string `form:"baby_birth" json:"baby_birth"`
	}
	if err := c.ShouldBind(&input); err != nil {
		fail(c, "/settings", bindError(err))
		return
	}
	if _, err := h.Profiles.Save(userID, input.Name, input.Birth); err != nil {
		fail(c, "/settings", err)
		return
	}
	succeed(c, "/settings", "Baby profile saved", gin.H{"profile": h.Profiles.Context(c.Request.Context(), userID)})
}

type imageSaver func(ctx context.Context, userID uint, filename string, r io.Reader) (string, error)

func (h *ProfileController) upload(c *gin.Context, field, done string, save imageSaver) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	fh, err := formFile(c, field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if fh == nil {
		fail(c, "/settings", fmt.Errorf("%w: no image selected", services.ErrInvalidInput))
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, "/settings", err)
		return
	}
	defer f.Close()

	if _, err := save(c.Request.Context(), userID, fh.Filename, f); err != nil {
		fail(c, "/settings", err)
		return
	}
	succeed(c, "/settings", done, gin.H{"profile": h.Profiles.Context(c.Request.Context(), userID)})
}

func (h *ProfileController) UploadAvatar(c *gin.Context) {
	h.upload(c, "avatar", "Avatar updated", h.Media.SaveAvatar)
}

func (h *ProfileController) UploadCover(c *gin.Context) {
	h.upload(c, "cover", "Cover updated", h.Media.SaveCover)
}
