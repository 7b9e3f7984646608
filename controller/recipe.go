package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"souschef/service"
)

type RecipeController struct {
	Recipes *service.RecipeService
}

func (r RecipeController) List(c *gin.Context) {
	recipes, err := r.Recipes.List(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipes": recipes})
}

func (r RecipeController) Get(c *gin.Context) {
	recipe, err := r.Recipes.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipe": recipe})
}

func (r RecipeController) Create(c *gin.Context) {
	var input struct {
		ID      string `json:"id" binding:"omitempty,uuid"`
		Title   string `json:"title" binding:"required"`
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	recipe, err := r.Recipes.Create(c.Request.Context(), userID(c), input.ID, input.Title, input.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"recipe": recipe})
}

func (r RecipeController) Update(c *gin.Context) {
	var input struct {
		Title   *string `json:"title"`
		Content *string `json:"content"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	recipe, err := r.Recipes.Update(c.Request.Context(), userID(c), c.Param("id"), input.Title, input.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipe": recipe})
}

func (r RecipeController) Delete(c *gin.Context) {
	if err := r.Recipes.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Recipe deleted"})
}

func (r RecipeController) Snapshots(c *gin.Context) {
	snapshots, err := r.Recipes.Snapshots(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snapshots})
}

func (r RecipeController) HTML(c *gin.Context) {
	html, err := r.Recipes.RenderHTML(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (r RecipeController) Import(c *gin.Context) {
	var input struct {
		URL string `json:"url" binding:"required,url"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	recipe, err := r.Recipes.Import(c.Request.Context(), userID(c), input.URL)
	if err != nil {
		respondError(c, err)
		return
	}
	logger.Infof("[%s] Imported recipe %s from %s", c.GetString("requestId"), recipe.ID, input.URL)
	c.JSON(http.StatusCreated, gin.H{"recipe": recipe})
}

func (r RecipeController) Share(c *gin.Context) {
	var input struct {
		To string `json:"to" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	if err := r.Recipes.Share(c.Request.Context(), userID(c), c.Param("id"), input.To); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Recipe shared"})
}
