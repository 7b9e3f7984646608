package controller

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"souschef/service"
)

type ToolController struct {
	Tools *service.ToolService
}

// Output records the client's decision on a tool call as is.
func (t ToolController) Output(c *gin.Context) {
	var input struct {
		ToolCallID string          `json:"toolCallId" binding:"required"`
		Output     json.RawMessage `json:"output" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	if err := t.Tools.RecordOutput(c.Request.Context(), userID(c), input.ToolCallID, input.Output); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Decide applies the decision server side and records it.
func (t ToolController) Decide(c *gin.Context) {
	var input struct {
		ToolCallID string                 `json:"toolCallId" binding:"required"`
		Action     service.DecisionAction `json:"action" binding:"required,oneof=create update ignore"`
		RecipeID   string                 `json:"recipeId"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	outcome, err := t.Tools.Decide(c.Request.Context(), userID(c), input.ToolCallID, service.Decision{
		Action:   input.Action,
		RecipeID: input.RecipeID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if !outcome.Replayed {
		logger.Infof("[%s] Tool call %s decided: %s", c.GetString("requestId"), input.ToolCallID, input.Action)
	}
	c.JSON(http.StatusOK, outcome)
}
