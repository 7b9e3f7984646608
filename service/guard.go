package service

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"souschef/model"
)

// Ownership checks. A failed check never tells the caller whether the
// resource exists; the Require* helpers collapse both cases into ErrNotFound.

func OwnsChat(db *gorm.DB, userID, chatID string) (bool, error) {
	if userID == "" || chatID == "" {
		return false, nil
	}
	return model.ChatOwnedBy(db, chatID, userID)
}

func OwnsRecipe(db *gorm.DB, userID, recipeID string) (bool, error) {
	if userID == "" || recipeID == "" {
		return false, nil
	}
	return model.RecipeOwnedBy(db, recipeID, userID)
}

// OwnsStorageKey reports whether key has the {userId}/{chatId}/{file} shape
// and sits in userID's namespace.
func OwnsStorageKey(userID, key string) bool {
	if userID == "" {
		return false
	}
	segments := strings.Split(key, "/")
	if len(segments) < 3 {
		return false
	}
	for _, s := range segments {
		if s == "" || s == "." || s == ".." {
			return false
		}
	}
	return segments[0] == userID
}

func RequireChat(db *gorm.DB, userID, chatID string) error {
	ok, err := OwnsChat(db, userID, chatID)
	if err != nil {
		return fmt.Errorf("failed to verify chat ownership: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func RequireRecipe(db *gorm.DB, userID, recipeID string) error {
	ok, err := OwnsRecipe(db, userID, recipeID)
	if err != nil {
		return fmt.Errorf("failed to verify recipe ownership: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// RequireToolCall returns the location of userID's tool call. Calls in other
// users' chats are never matched, even when the id is the same.
func RequireToolCall(db *gorm.DB, userID, toolCallID string) (*model.ToolCallLocation, error) {
	if userID == "" || toolCallID == "" {
		return nil, ErrNotFound
	}
	loc, err := model.FindToolCallLocation(db, toolCallID, userID)
	if err != nil {
		return nil, notFoundOr(err, "failed to verify tool call ownership")
	}
	return loc, nil
}
