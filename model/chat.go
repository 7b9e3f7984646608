package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Chat struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`

	Messages      []Message          `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ActiveRecipes []ChatActiveRecipe `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Snapshots     []RecipeSnapshot   `gorm:"constraint:OnDelete:SET NULL" json:"-"`
}

func (c *Chat) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func CreateChat(db *gorm.DB, chat *Chat) error {
	if err := db.Create(chat).Error; err != nil {
		return fmt.Errorf("failed to create chat: %w", err)
	}
	return nil
}

func ChatExists(db *gorm.DB, id string) (bool, error) {
	var count int64
	if err := db.Model(&Chat{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("database query failed: %w", err)
	}
	return count > 0, nil
}

// FindChatsByUserID lists a user's chats, most recently active first.
func FindChatsByUserID(db *gorm.DB, userID string) ([]Chat, error) {
	var chats []Chat
	if err := db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch chats: %w", err)
	}
	return chats, nil
}

func FindChatByIDAndUserID(db *gorm.DB, id, userID string) (*Chat, error) {
	var chat Chat
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&chat).Error; err != nil {
		return nil, fmt.Errorf("failed to get chat %s: %w", id, err)
	}
	return &chat, nil
}

func ChatOwnedBy(db *gorm.DB, id, userID string) (bool, error) {
	var count int64
	if err := db.Model(&Chat{}).Where("id = ? AND user_id = ?", id, userID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("database query failed: %w", err)
	}
	return count > 0, nil
}

func UpdateChatTitle(db *gorm.DB, id, userID, title string) (int64, error) {
	result := db.Model(&Chat{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"title": title, "updated_at": time.Now()})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update chat title: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// TouchChat bumps updated_at so the chat sorts first in the list.
func TouchChat(db *gorm.DB, id, userID string) error {
	err := db.Model(&Chat{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("updated_at", time.Now()).Error
	if err != nil {
		return fmt.Errorf("failed to touch chat: %w", err)
	}
	return nil
}

func DeleteChat(db *gorm.DB, id, userID string) (int64, error) {
	result := db.Where("id = ? AND user_id = ?", id, userID).Delete(&Chat{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete chat: %w", result.Error)
	}
	return result.RowsAffected, nil
}
