package controllers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/sandor-zhong/baby-chengcheng/services"

	"github.com/gin-gonic/gin"
)

type MomentController struct {
	Svc       *services.MomentService
	PublicURL string
}

func NewMomentController(svc *services.MomentService, publicURL string) *MomentController {
	return &MomentController{Svc: svc, PublicURL: publicURL}
}

// formFile returns the first non-empty upload among fields, or nil when none was sent.
func formFile(c *gin.Context, fields ...string) (*multipart.FileHeader, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, nil
	}
	for _, f := range fields {
		fh, err := c.FormFile(f)
		if errors.Is(err, http.ErrMissingFile) || (err == nil && fh.Filename == "") {
			continue
		}
		if err != nil {
			return nil, err
		}
		return fh, nil
	}
	return nil, nil
}

// openUpload opens fh, returning a nil reader for a nil header.
func openUpload(fh *multipart.FileHeader) (io.ReadCloser, error) {
	if fh == nil {
		return nil, nil
	}
	return fh.Open()
}

func (h *MomentController) Create(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	fh, err := formFile(c, "media", "image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	rc, err := openUpload(fh)
	if err != nil {
		fail(c, "/moments/create", err)
		return
	}
	var media io.Reader
	if rc != nil {
		defer rc.Close()
		media = rc
	}
	m, err := h.Svc.Create(c.Request.Context(), userID, c.PostForm("content"), media)
	if err != nil {
		fail(c, "/moments/create", err)
		return
	}
	succeed(c, "/moments", "Moment posted!", gin.H{"moment": m})
}

func (h *MomentController) Detail(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, valid := paramID(c)
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid moment id"})
		return
	}
	d, err := h.Svc.Get(c.Request.Context(), userID, id)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *MomentController) Edit(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, valid := paramID(c)
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid moment id"})
		return
	}
	fh, err := formFile(c, "image", "media")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	rc, err := openUpload(fh)
	if err != nil {
		fail(c, "/moments", err)
		return
	}
	var media io.Reader
	if rc != nil {
		defer rc.Close()
		media = rc
	}
	m, err := h.Svc.Update(c.Request.Context(), userID, id, c.PostForm("content"), media)
	if err != nil {
		fail(c, "/moments", err)
		return
	}
	succeed(c, "/moments", "Changes saved", gin.H{"moment": m})
}

func (h *MomentController) Delete(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, valid := paramID(c)
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid moment id"})
		return
	}
	if err := h.Svc.Delete(c.Request.Context(), userID, id); err != nil {
		fail(c, "/moments", err)
		return
	}
	succeed(c, "/moments", "Moment deleted", gin.H{"id": id})
}

func (h *MomentController) ToggleFavorite(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, valid := paramID(c)
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid moment id"})
		return
	}
	fav, err := h.Svc.ToggleFavorite(c.Request.Context(), userID, id)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "is_favorite": fav})
}

func (h *MomentController) Share(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, valid := paramID(c)
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid moment id"})
		return
	}
	info, err := h.Svc.Share(c.Request.Context(), userID, id, h.baseURL(c))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"share_url":   info.ShareURL,
		"title":       info.Title,
		"description": info.Description,
	})
}

// baseURL prefers the configured public URL over the request's own host.
func (h *MomentController) baseURL(c *gin.Context) string {
	if h.PublicURL != "" {
		return h.PublicURL
	}
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

func (h *MomentController) Load(c *gin.Context) {
	page, perPage := queryInt(c, "page", 1), queryInt(c, "per_page", services.DefaultPerPage)
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusOK, emptyPage(page))
		return
	}
	p, err := h.Svc.List(c.Request.Context(), userID, page, perPage, c.Query("favorite") == "true")
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *MomentController) Search(c *gin.Context) {
	page, perPage := queryInt(c, "page", 1), queryInt(c, "per_page", services.DefaultPerPage)
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusOK, emptyPage(page))
		return
	}
	p, err := h.Svc.Search(c.Request.Context(), userID, c.Query("q"), page, perPage)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func emptyPage(page int) *services.MomentPage {
	if page < 1 {
		page = 1
	}
	return &services.MomentPage{
		Moments:     []services.MomentView{},
		Groups:      []services.MomentGroup{},
		CurrentPage: page,
	}
}
