package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"souschef/model"
)

const maxTitleLength = 255

type ChatService struct {
	DB *gorm.DB
}

func validateTitle(field, title string) error {
	if strings.TrimSpace(title) == "" {
		return NewValidationError(field, "Title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return NewValidationError(field, "Title must be 255 characters or less")
	}
	return nil
}

func validateID(field, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return NewValidationError(field, "Invalid ID format")
	}
	return nil
}

func (s *ChatService) List(ctx context.Context, userID string) ([]model.Chat, error) {
	return model.FindChatsByUserID(s.DB.WithContext(ctx), userID)
}

func (s *ChatService) Get(ctx context.Context, userID, chatID string) (*model.Chat, error) {
	chat, err := model.FindChatByIDAndUserID(s.DB.WithContext(ctx), chatID, userID)
	if err != nil {
		return nil, notFoundOr(err, "failed to get chat")
	}
	return chat, nil
}

// Create makes a chat for userID. id may be supplied by the client so it can
// show the chat before the server answers; otherwise one is generated.
func (s *ChatService) Create(ctx context.Context, userID, id, title string) (*model.Chat, error) {
	return createChat(s.DB.WithContext(ctx), userID, id, title)
}

func createChat(db *gorm.DB, userID, id, title string) (*model.Chat, error) {
	if err := validateTitle("title", title); err != nil {
		return nil, err
	}
	if id != "" {
		if err := validateID("id", id); err != nil {
			return nil, err
		}
		exists, err := model.ChatExists(db, id)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrAlreadyExists
		}
	}
	chat := &model.Chat{ID: id, UserID: userID, Title: title}
	if err := model.CreateChat(db, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *ChatService) Rename(ctx context.Context, userID, chatID, title string) (*model.Chat, error) {
	if err := validateTitle("title", title); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	if err := RequireChat(db, userID, chatID); err != nil {
		return nil, err
	}
	if _, err := model.UpdateChatTitle(db, chatID, userID, title); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, chatID)
}

// Delete removes the chat with its messages and active recipes.
func (s *ChatService) Delete(ctx context.Context, userID, chatID string) error {
	rows, err := model.DeleteChat(s.DB.WithContext(ctx), chatID, userID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ChatService) Touch(ctx context.Context, userID, chatID string) error {
	return model.TouchChat(s.DB.WithContext(ctx), chatID, userID)
}
