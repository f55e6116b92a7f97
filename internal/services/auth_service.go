package services

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"roomsync/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenService verifies bearer tokens issued by the platform's auth service.
// Issuance happens elsewhere; this side only checks the signature and pulls
// the user id out of the claims.
type TokenService struct {
	jwtSecret string
}

func NewTokenService(jwtSecret string) *TokenService {
	return &TokenService{jwtSecret: jwtSecret}
}

func (s *TokenService) VerifyToken(tokenString string) (*models.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	// Tokens carry the user id in "sub"; older ones used "userId".
	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		userID, ok = claims["userId"].(string)
		if !ok || userID == "" {
			return nil, ErrInvalidToken
		}
	}

	return &models.Identity{UserID: userID}, nil
}
