package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"souschef/lib"
	"souschef/service"
)

type ChatController struct {
	Chats     *service.ChatService
	Messages  *service.MessageService
	Active    *service.ActiveRecipeService
	Assistant *service.AssistantService
}

// Chat answers one user message with a UI message stream. Anything that
// fails before the first chunk is a plain JSON error.
func (ch ChatController) Chat(c *gin.Context) {
	var input struct {
		ChatID  string                 `json:"chatId" binding:"required,uuid"`
		Message service.InboundMessage `json:"message"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	req, err := ch.Assistant.Prepare(ctx, userID(c), input.ChatID, input.Message)
	if err != nil {
		respondError(c, err)
		return
	}

	stream := lib.NewUIStream(c.Writer)
	c.Status(http.StatusOK)
	if err := ch.Assistant.Stream(ctx, userID(c), input.ChatID, req, stream); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Infof("[%s] Client left chat %s mid-stream", c.GetString("requestId"), input.ChatID)
			return
		}
		logger.Warnf("[%s] Chat %s stream failed: %s", c.GetString("requestId"), input.ChatID, err)
	}
}

func (ch ChatController) List(c *gin.Context) {
	chats, err := ch.Chats.List(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (ch ChatController) Create(c *gin.Context) {
	var input struct {
		ID    string `json:"id" binding:"omitempty,uuid"`
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	chat, err := ch.Chats.Create(c.Request.Context(), userID(c), input.ID, input.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"chat": chat})
}

func (ch ChatController) Rename(c *gin.Context) {
	var input struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	chat, err := ch.Chats.Rename(c.Request.Context(), userID(c), c.Param("id"), input.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (ch ChatController) Delete(c *gin.Context) {
	if err := ch.Chats.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chat deleted"})
}

func (ch ChatController) History(c *gin.Context) {
	messages, err := ch.Messages.History(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (ch ChatController) ActiveRecipes(c *gin.Context) {
	links, err := ch.Active.ListForChat(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activeRecipes": links})
}
