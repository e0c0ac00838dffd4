package usecases

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrAdminDisabled      = errors.New("auth: admin API disabled")
)

const adminRole = "owner"

// AuthUsecase issues admin API tokens for the bot owner. The owner's
// password is configured as a bcrypt hash.
type AuthUsecase struct {
	ownerID      string
	passwordHash []byte
	jwtSecret    []byte
	tokenTTL     time.Duration
}

func NewAuthUsecase(ownerID, passwordHash, secret string) *AuthUsecase {
	return &AuthUsecase{
		ownerID:      ownerID,
		passwordHash: []byte(passwordHash),
		jwtSecret:    []byte(secret),
		tokenTTL:     24 * time.Hour,
	}
}

// Enabled reports whether login is possible at all.
func (uc *AuthUsecase) Enabled() bool {
	return len(uc.passwordHash) > 0 && len(uc.jwtSecret) > 0
}

func (uc *AuthUsecase) Login(password string) (string, error) {
	if !uc.Enabled() {
		return "", ErrAdminDisabled
	}
	if err := bcrypt.CompareHashAndPassword(uc.passwordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	// Generate JWT
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uc.ownerID,
		"role":    adminRole,
		"exp":     time.Now().Add(uc.tokenTTL).Unix(),
	})

	tokenString, err := token.SignedString(uc.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// HashPassword returns the bcrypt hash to put in ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
