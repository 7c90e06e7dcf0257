package auth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/consertja/consertja/internal/logger"
	"github.com/consertja/consertja/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	// Overridden by InitJWTKey once the configuration is loaded
	jwtKey = []byte(os.Getenv("JWT_SECRET"))
	log    = logger.New("auth")
)

const tokenLifetime = 24 * time.Hour

// InitJWTKey sets the signing key. The server calls it after loading its
// configuration; tests call it with a fixed key.
func InitJWTKey(key []byte) {
	jwtKey = key
}

// JWTClaims represents the claims in the JWT
type JWTClaims struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken creates a new JWT token for a session
func GenerateToken(s models.Session) (string, time.Time, error) {
	if !s.Authenticated() {
		return "", time.Time{}, errors.New("user ID cannot be empty")
	}
	if !s.Role.Valid() {
		return "", time.Time{}, models.ErrUnknownRole
	}

	now := time.Now()
	expirationTime := now.Add(tokenLifetime)

	claims := &JWTClaims{
		UserID: s.UserID,
		Role:   s.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(jwtKey)

	return tokenString, expirationTime, err
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string) (*JWTClaims, error) {
	if len(tokenString) > 10 {
		log.Debug("Validating token: %s...", tokenString[:10])
	} else if len(tokenString) == 0 {
		log.Warn("Validating empty token")
	}

	claims := &JWTClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			log.Error("Unexpected signing method: %v", token.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtKey, nil
	})

	if err != nil {
		log.Warn("Token validation error: %v", err)
		return nil, err
	}

	if !token.Valid {
		log.Warn("Token is invalid")
		return nil, ErrInvalidToken
	}

	log.Debug("Token validated successfully for user: %s", claims.UserID)
	return claims, nil
}

// SessionFromClaims extracts the session carried by validated claims
func SessionFromClaims(claims *JWTClaims) (models.Session, error) {
	if claims == nil {
		return models.Session{}, errors.New("claims cannot be nil")
	}
	if claims.UserID == "" || !claims.Role.Valid() {
		return models.Session{}, ErrInvalidToken
	}
	return models.Session{UserID: claims.UserID, Role: claims.Role}, nil
}
