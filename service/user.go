package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"souschef/model"
)

type UserService struct {
	DB     *gorm.DB
	Tokens *TokenService
}

type User struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// validatePassword wants 8 to 64 characters using at least three of digits,
// lower case, upper case and symbols.
func validatePassword(password string) error {
	const minLen, maxLen = 8, 64
	if len(password) < minLen || len(password) > maxLen {
		return NewValidationError("password", "Password must be between 8 and 64 characters")
	}

	var hasNumber, hasLower, hasUpper, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsDigit(char):
			hasNumber = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}
	if boolToInt(hasNumber)+boolToInt(hasLower)+boolToInt(hasUpper)+boolToInt(hasSpecial) < 3 {
		return NewValidationError("password", "Password must mix at least three of: digits, lower case, upper case, symbols")
	}
	return nil
}

func (service *UserService) Register(ctx context.Context, user *User) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(user.Email))
	if err := validatePassword(user.Password); err != nil {
		return nil, err
	}

	db := service.DB.WithContext(ctx)
	exists, err := model.UserExists(db, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("user %s: %w", email, ErrAlreadyExists)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser := &model.User{
		Email:    email,
		Password: string(hashedPassword),
		Nickname: user.Nickname,
	}
	if err := model.CreateUser(db, newUser); err != nil {
		return nil, err
	}
	return newUser, nil
}

// Login returns an access token. Unknown emails and wrong passwords both
// fail with ErrUnauthorized.
func (service *UserService) Login(ctx context.Context, user *User) (string, error) {
	email := strings.ToLower(strings.TrimSpace(user.Email))
	registeredUser, err := model.GetUserByEmail(service.DB.WithContext(ctx), email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUnauthorized
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(registeredUser.Password), []byte(user.Password)); err != nil {
		return "", ErrUnauthorized
	}

	token, err := service.Tokens.CreateToken(registeredUser.ID)
	if err != nil {
		logger.Errorf("Error generating token for user %s: %v", registeredUser.ID, err)
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token.AccessToken, nil
}
