package service

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
	uuid "github.com/google/uuid"
)

const accessTokenTTL = time.Hour * 24 * 7

// TokenDetails is a signed access token and its expiry.
type TokenDetails struct {
	AccessToken string
	AccessUUID  string
	AtExpires   int64
}

// AccessDetails are the claims read back from a valid token.
type AccessDetails struct {
	AccessUUID string
	UserID     string
}

// TokenService signs and verifies HS256 access tokens.
type TokenService struct {
	Secret []byte
}

// CreateToken signs a week-long token for userID.
func (t *TokenService) CreateToken(userID string) (*TokenDetails, error) {
	if len(t.Secret) == 0 {
		return nil, fmt.Errorf("access secret is not configured")
	}
	td := &TokenDetails{}
	td.AtExpires = time.Now().Add(accessTokenTTL).Unix()
	td.AccessUUID = uuid.New().String()

	var err error
	atClaims := jwt.MapClaims{}
	atClaims["authorized"] = true
	atClaims["access_uuid"] = td.AccessUUID
	atClaims["user_id"] = userID
	atClaims["exp"] = td.AtExpires

	at := jwt.NewWithClaims(jwt.SigningMethodHS256, atClaims)
	td.AccessToken, err = at.SignedString(t.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return td, nil
}

// ExtractToken reads the token from "Authorization: Bearer <token>".
func (t *TokenService) ExtractToken(r *http.Request) string {
	bearToken := r.Header.Get("Authorization")
	strArr := strings.Split(bearToken, " ")
	if len(strArr) == 2 && strings.EqualFold(strArr[0], "Bearer") {
		return strArr[1]
	}
	return ""
}

// Parse verifies a token string and returns its claims.
func (t *TokenService) Parse(tokenString string) (*AccessDetails, error) {
	if tokenString == "" {
		return nil, ErrUnauthorized
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrUnauthorized
	}
	accessUUID, ok := claims["access_uuid"].(string)
	if !ok {
		return nil, ErrUnauthorized
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, ErrUnauthorized
	}
	return &AccessDetails{
		AccessUUID: accessUUID,
		UserID:     userID,
	}, nil
}

// ExtractTokenMetadata verifies the bearer token of r.
func (t *TokenService) ExtractTokenMetadata(r *http.Request) (*AccessDetails, error) {
	return t.Parse(t.ExtractToken(r))
}

// Refresh issues a new token for the holder of a still valid one.
func (t *TokenService) Refresh(r *http.Request) (*TokenDetails, error) {
	details, err := t.ExtractTokenMetadata(r)
	if err != nil {
		return nil, err
	}
	return t.CreateToken(details.UserID)
}
