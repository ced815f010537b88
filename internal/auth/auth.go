package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kaiwen7/typebattle-backend/config"
)

// Service issues and verifies guest identities. There are no accounts;
// a guest token carries a fresh player id and the display name the
// player picked.
type Service struct {
	cfg config.Config
}

func NewService(cfg config.Config) *Service {
	return &Service{cfg: cfg}
}

func (s *Service) IssueGuestToken(name string) (string, string, error) {
	if name == "" {
		return "", "", fmt.Errorf("name cannot be empty")
	}

	playerID := uuid.New().String()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"player_id": playerID,
		"name":      name,
		"exp":       time.Now().Add(time.Hour * 24).Unix(),
	})
	tokenString, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", "", err
	}

	return tokenString, playerID, nil
}

func (s *Service) ParseToken(tokenString string) (string, string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid token")
	}
	playerID, _ := claims["player_id"].(string)
	name, _ := claims["name"].(string)
	if playerID == "" {
		return "", "", errors.New("invalid token")
	}

	return playerID, name, nil
}
