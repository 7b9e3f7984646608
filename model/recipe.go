package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Recipe struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`

	ActiveLinks []ChatActiveRecipe `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Snapshots   []RecipeSnapshot   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (r *Recipe) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// RecipeSnapshot is one historical version of a recipe's content. ChatID is
// set when the version came from a conversation and nulled when that chat goes.
type RecipeSnapshot struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	RecipeID  string    `gorm:"type:varchar(36);not null;index" json:"recipe_id"`
	ChatID    *string   `gorm:"type:varchar(36);index" json:"chat_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (s *RecipeSnapshot) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func CreateRecipe(db *gorm.DB, recipe *Recipe) error {
	if err := db.Create(recipe).Error; err != nil {
		return fmt.Errorf("failed to create recipe: %w", err)
	}
	return nil
}

func FindRecipesByUserID(db *gorm.DB, userID string) ([]Recipe, error) {
	var recipes []Recipe
	if err := db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&recipes).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch recipes: %w", err)
	}
	return recipes, nil
}

func FindRecipeByIDAndUserID(db *gorm.DB, id, userID string) (*Recipe, error) {
	var recipe Recipe
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&recipe).Error; err != nil {
		return nil, fmt.Errorf("failed to get recipe %s: %w", id, err)
	}
	return &recipe, nil
}

func RecipeOwnedBy(db *gorm.DB, id, userID string) (bool, error) {
	var count int64
	if err := db.Model(&Recipe{}).Where("id = ? AND user_id = ?", id, userID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("database query failed: %w", err)
	}
	return count > 0, nil
}

// UpdateRecipe writes the non-empty fields of title and content.
func UpdateRecipe(db *gorm.DB, id, userID, title, content string) (int64, error) {
	updates := map[string]any{"updated_at": time.Now()}
	if title != "" {
		updates["title"] = title
	}
	if content != "" {
		updates["content"] = content
	}
	result := db.Model(&Recipe{}).Where("id = ? AND user_id = ?", id, userID).Updates(updates)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update recipe: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func DeleteRecipe(db *gorm.DB, id, userID string) (int64, error) {
	result := db.Where("id = ? AND user_id = ?", id, userID).Delete(&Recipe{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete recipe: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func CreateRecipeSnapshot(db *gorm.DB, snapshot *RecipeSnapshot) error {
	if err := db.Create(snapshot).Error; err != nil {
		return fmt.Errorf("failed to create recipe snapshot: %w", err)
	}
	return nil
}

// FindSnapshotsByRecipeID returns a recipe's history, newest first.
func FindSnapshotsByRecipeID(db *gorm.DB, recipeID string) ([]RecipeSnapshot, error) {
	var snapshots []RecipeSnapshot
	if err := db.Where("recipe_id = ?", recipeID).Order("created_at DESC").Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch recipe snapshots: %w", err)
	}
	return snapshots, nil
}
