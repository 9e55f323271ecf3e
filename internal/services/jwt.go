package services

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"society-service/internal/models"
)

type JWTService struct {
	accessSecret      string
	refreshSecret     string
	accessExpiryTime  time.Duration
	refreshExpiryTime time.Duration
}

type Claims struct {
	UserID    uint   `json:"user_id"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	SocietyID uint   `json:"society_id,omitempty"`
	jwt.RegisteredClaims
}

func NewJWTService(accessSecret, refreshSecret string, accessExpiryHours, refreshExpiryDays int) *JWTService {
	return &JWTService{
		accessSecret:      accessSecret,
		refreshSecret:     refreshSecret,
		accessExpiryTime:  time.Duration(accessExpiryHours) * time.Hour,
		refreshExpiryTime: time.Duration(refreshExpiryDays) * 24 * time.Hour,
	}
}

// GenerateTokens generates both access and refresh tokens
func (j *JWTService) GenerateTokens(user *models.User) (string, string, error) {
	accessToken, err := j.generateAccessToken(user)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := j.generateRefreshToken(user)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}

// generateAccessToken creates a JWT access token
func (j *JWTService) generateAccessToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Phone:  user.PhoneNumber,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.accessExpiryTime)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "society-service",
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			ID:        uuid.New().String(),
		},
	}
	if user.SocietyID != nil {
		claims.SocietyID = *user.SocietyID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.accessSecret))
}

// generateRefreshToken creates a JWT refresh token
func (j *JWTService) generateRefreshToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(j.refreshExpiryTime)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    "society-service",
		Subject:   strconv.FormatUint(uint64(user.ID), 10),
		ID:        uuid.New().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.refreshSecret))
}

// ValidateAccessToken validates and parses an access token
func (j *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(j.accessSecret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// ValidateRefreshToken validates and parses a refresh token
func (j *JWTService) ValidateRefreshToken(tokenString string) (*jwt.RegisteredClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(j.refreshSecret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse refresh token: %w", err)
	}

	if claims, ok := token.Claims.(*jwt.RegisteredClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid refresh token")
}

// GetRefreshTokenExpiry returns the expiry time for refresh tokens
func (j *JWTService) GetRefreshTokenExpiry() time.Duration {
	return j.refreshExpiryTime
}
