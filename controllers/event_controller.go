package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sandor-zhong/baby-chengcheng/models"
	"github.com/sandor-zhong/baby-chengcheng/services"

	"github.com/gin-gonic/gin"
)

type EventController struct {
	Svc *services.EventService
	Now func() time.Time
}

func NewEventController(svc *services.EventService, now func() time.Time) *EventController {
	return &EventController{Svc: svc, Now: now}
}

type FeedInput struct {
	AmountML int    `form:"amount_ml" json:"amount_ml" binding:"required,min=1,max=1000"`
	Note     string `form:"note" json:"note"`
}

type DiaperInput struct {
	Kind string `form:"diaper_kind" json:"diaper_kind"`
	Note string `form:"note" json:"note"`
}

func (h *EventController) RecordFeed(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var input FeedInput
	if err := c.ShouldBind(&input); err != nil {
		fail(c, "/#feed-pane", bindError(err))
		return
	}
	e, err := h.Svc.RecordFeed(c.Request.Context(), userID, sessionIDFromCtx(c), input.AmountML, input.Note)
	if err != nil {
		fail(c, "/#feed-pane", err)
		return
	}
	succeed(c, "/#feed-pane", fmt.Sprintf("Recorded feed of %d ml", input.AmountML), gin.H{"event": e})
}

func (h *EventController) RecordDiaper(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var input DiaperInput
	if err := c.ShouldBind(&input); err != nil {
		fail(c, "/#diaper-pane", bindError(err))
		return
	}
	e, err := h.Svc.RecordDiaper(c.Request.Context(), userID, sessionIDFromCtx(c), input.Kind, input.Note)
	if err != nil {
		fail(c, "/#diaper-pane", err)
		return
	}
	succeed(c, "/#diaper-pane", "Recorded diaper change", gin.H{"event": e})
}

func (h *EventController) UndoLast(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	e, err := h.Svc.Undo(c.Request.Context(), userID, sessionIDFromCtx(c))
	if err != nil {
		fail(c, "/", err)
		return
	}
	succeed(c, "/", "Undid the last record", gin.H{"event": e})
}

func (h *EventController) DeleteEvent(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, valid := paramID(c)
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid event id"})
		return
	}
	if err := h.Svc.Delete(c.Request.Context(), userID, id); err != nil {
		fail(c, "/history", err)
		return
	}
	succeed(c, "/history", "Record deleted", gin.H{"id": id})
}

// ---------- JSON views ----------

func (h *EventController) Dashboard(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusOK, &services.Dashboard{})
		return
	}
	d, err := h.Svc.Dashboard(c.Request.Context(), userID)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *EventController) Last(c *gin.Context) {
	now := h.Now().Format(time.RFC3339)
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"last_feed": nil, "last_diaper": nil, "now": now})
		return
	}
	feed, err := h.Svc.Last(c.Request.Context(), userID, models.EventFeed)
	if err != nil {
		apiError(c, err)
		return
	}
	diaper, err := h.Svc.Last(c.Request.Context(), userID, models.EventDiaper)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"last_feed": feed, "last_diaper": diaper, "now": now})
}

func (h *EventController) FeedSeries(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"items": []any{}, "count": 0})
		return
	}
	items, err := h.Svc.FeedSeries(c.Request.Context(), userID, queryInt(c, "limit", 30))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *EventController) DiaperSeries(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"items": []any{}, "count": 0})
		return
	}
	items, err := h.Svc.DiaperSeries(c.Request.Context(), userID, queryInt(c, "days", 14))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *EventController) FeedDaily(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"items": []any{}, "count": 0})
		return
	}
	items, err := h.Svc.FeedDaily(c.Request.Context(), userID, queryInt(c, "days", 7))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *EventController) History(c *gin.Context) {
	typ := c.DefaultQuery("type", "all")
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"events": []any{}, "filter_type": typ})
		return
	}
	events, err := h.Svc.History(c.Request.Context(), userID, typ, queryInt(c, "limit", services.HistoryLimit))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "filter_type": typ})
}

func (h *EventController) ServerTime(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"server_time": h.Now().Format(time.RFC3339)})
}
