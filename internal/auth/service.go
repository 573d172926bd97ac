package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"caseflow/casework-backend/internal/directory"
)

// ErrInvalidCredentials covers both unknown emails and bad passwords so the
// login response does not leak which one failed.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Service issues and verifies bearer tokens for directory users.
type Service struct {
	dir      *directory.Repository
	secret   []byte
	tokenTTL time.Duration
}

func NewService(dir *directory.Repository, secret string, tokenTTL time.Duration) *Service {
	return &Service{dir: dir, secret: []byte(secret), tokenTTL: tokenTTL}
}

// Login verifies the password and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	creds, err := s.dir.FindCredentials(ctx, email)
	if errors.Is(err, directory.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	claims := jwt.RegisteredClaims{
		Subject:   creds.ID.String(),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses a bearer token and returns the user id it carries.
func (s *Service) VerifyToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return uuid.Nil, errors.New("invalid token")
	}
	return uuid.Parse(claims.Subject)
}
