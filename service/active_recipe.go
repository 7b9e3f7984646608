package service

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"souschef/model"
)

type ActiveRecipeService struct {
	DB *gorm.DB
}

// ListAll returns active links across every chat of userID.
func (s *ActiveRecipeService) ListAll(ctx context.Context, userID string) ([]model.ChatActiveRecipe, error) {
	return model.FindActiveRecipesByUserID(s.DB.WithContext(ctx), userID)
}

func (s *ActiveRecipeService) ListForChat(ctx context.Context, userID, chatID string) ([]model.ChatActiveRecipe, error) {
	db := s.DB.WithContext(ctx)
	if err := RequireChat(db, userID, chatID); err != nil {
		return nil, err
	}
	return model.FindActiveRecipesByChatID(db, chatID)
}

// Add activates recipeID in chatID. Both must belong to userID. Adding a
// pair that is already active returns the existing link.
func (s *ActiveRecipeService) Add(ctx context.Context, userID, chatID, recipeID string) (*model.ChatActiveRecipe, error) {
	return addActiveRecipe(s.DB.WithContext(ctx), userID, chatID, recipeID)
}

func addActiveRecipe(db *gorm.DB, userID, chatID, recipeID string) (*model.ChatActiveRecipe, error) {
	if err := RequireChat(db, userID, chatID); err != nil {
		return nil, err
	}
	if err := RequireRecipe(db, userID, recipeID); err != nil {
		return nil, err
	}
	return model.AddActiveRecipe(db, chatID, recipeID)
}

func (s *ActiveRecipeService) Remove(ctx context.Context, userID, chatID, recipeID string) error {
	db := s.DB.WithContext(ctx)
	if err := RequireChat(db, userID, chatID); err != nil {
		return err
	}
	rows, err := model.RemoveActiveRecipe(db, chatID, recipeID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// StartCookingRequest opens a recipe in a chat, creating the chat first
// when NewChat is set.
type StartCookingRequest struct {
	ChatID    string `json:"chatId" binding:"required,uuid"`
	ChatTitle string `json:"chatTitle" binding:"required,max=255"`
	RecipeID  string `json:"recipeId" binding:"required,uuid"`
	NewChat   bool   `json:"isNewChat"`
}

type StartCookingResult struct {
	ChatID       string                  `json:"chatId"`
	ActiveRecipe *model.ChatActiveRecipe `json:"activeRecipe"`
}

// StartCooking creates the chat (if asked) and activates the recipe in one
// transaction, so a failure leaves no half-made chat behind.
func (s *ActiveRecipeService) StartCooking(ctx context.Context, userID string, req StartCookingRequest) (*StartCookingResult, error) {
	result := &StartCookingResult{ChatID: req.ChatID}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.NewChat {
			if _, err := createChat(tx, userID, req.ChatID, req.ChatTitle); err != nil {
				return err
			}
		}
		link, err := addActiveRecipe(tx, userID, req.ChatID, req.RecipeID)
		if err != nil {
			return err
		}
		result.ActiveRecipe = link
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start cooking: %w", err)
	}
	return result, nil
}
