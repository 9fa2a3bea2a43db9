package controllers

import (
	"net/http"

	"github.com/sandor-zhong/baby-chengcheng/services"

	"github.com/gin-gonic/gin"
)

type AIController struct {
	Svc *services.AIService
}

func NewAIController(svc *services.AIService) *AIController {
	return &AIController{Svc: svc}
}

func (h *AIController) Chat(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var input struct {
		Question string `form:"question" json:"question" binding:"required,max=2000"`
	}
	if err := c.ShouldBind(&input); err != nil {
		apiError(c, bindError(err))
		return
	}
	ans, err := h.Svc.Chat(c.Request.Context(), userID, input.Question)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "answer": ans.Text, "source": ans.Source, "fallback": ans.Fallback})
}

func (h *AIController) Analyze(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	ans, err := h.Svc.AnalyzeMoments(c.Request.Context(), userID)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "analysis": ans.Text, "source": ans.Source, "fallback": ans.Fallback})
}

func (h *AIController) Health(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	ans, err := h.Svc.HealthAdvice(c.Request.Context(), userID)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "advice": ans.Text, "source": ans.Source, "fallback": ans.Fallback})
}
