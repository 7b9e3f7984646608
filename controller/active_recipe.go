package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"souschef/service"
)

type ActiveRecipeController struct {
	Active *service.ActiveRecipeService
}

type activeRecipeInput struct {
	ChatID   string `json:"chatId" form:"chatId" binding:"required,uuid"`
	RecipeID string `json:"recipeId" form:"recipeId" binding:"required,uuid"`
}

func (a ActiveRecipeController) List(c *gin.Context) {
	links, err := a.Active.ListAll(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activeRecipes": links})
}

func (a ActiveRecipeController) Add(c *gin.Context) {
	var input activeRecipeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	link, err := a.Active.Add(c.Request.Context(), userID(c), input.ChatID, input.RecipeID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activeRecipe": link})
}

// Remove accepts the pair as a JSON body or as query parameters.
func (a ActiveRecipeController) Remove(c *gin.Context) {
	var input activeRecipeInput
	if err := c.ShouldBind(&input); err != nil {
		respondBindError(c, err)
		return
	}
	if err := a.Active.Remove(c.Request.Context(), userID(c), input.ChatID, input.RecipeID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Recipe removed from chat"})
}

func (a ActiveRecipeController) StartCooking(c *gin.Context) {
	var input service.StartCookingRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	result, err := a.Active.StartCooking(c.Request.Context(), userID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
