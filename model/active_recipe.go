package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatActiveRecipe marks a recipe as being cooked in a chat. A (chat, recipe)
// pair appears at most once.
type ChatActiveRecipe struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ChatID      string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_chat_id_recipe_id" json:"chat_id"`
	RecipeID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_chat_id_recipe_id;index" json:"recipe_id"`
	ActivatedAt time.Time `gorm:"autoCreateTime" json:"activated_at"`
	Recipe      *Recipe   `json:"recipe,omitempty"`
}

func (a *ChatActiveRecipe) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// AddActiveRecipe inserts the pair unless it already exists and returns the
// stored row either way.
func AddActiveRecipe(db *gorm.DB, chatID, recipeID string) (*ChatActiveRecipe, error) {
	link := &ChatActiveRecipe{ChatID: chatID, RecipeID: recipeID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(link).Error; err != nil {
		return nil, fmt.Errorf("failed to add active recipe: %w", err)
	}

	var stored ChatActiveRecipe
	if err := db.Where("chat_id = ? AND recipe_id = ?", chatID, recipeID).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("failed to read active recipe: %w", err)
	}
	return &stored, nil
}

func RemoveActiveRecipe(db *gorm.DB, chatID, recipeID string) (int64, error) {
	result := db.Where("chat_id = ? AND recipe_id = ?", chatID, recipeID).Delete(&ChatActiveRecipe{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to remove active recipe: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func FindActiveRecipesByChatID(db *gorm.DB, chatID string) ([]ChatActiveRecipe, error) {
	var links []ChatActiveRecipe
	err := db.Preload("Recipe").
		Where("chat_id = ?", chatID).
		Order("activated_at ASC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active recipes: %w", err)
	}
	return links, nil
}

// FindActiveRecipesByUserID lists active links across all of a user's chats.
func FindActiveRecipesByUserID(db *gorm.DB, userID string) ([]ChatActiveRecipe, error) {
	var links []ChatActiveRecipe
	err := db.Preload("Recipe").
		Joins("JOIN chats ON chats.id = chat_active_recipes.chat_id").
		Where("chats.user_id = ?", userID).
		Order("chat_active_recipes.activated_at ASC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active recipes: %w", err)
	}
	return links, nil
}
