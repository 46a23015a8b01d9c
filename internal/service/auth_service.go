package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/metervend/internal/config"
	"github.com/metervend/internal/models"
	"github.com/metervend/internal/repository"
	"github.com/metervend/pkg/crypto"
	"github.com/metervend/pkg/meternum"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCredentials = errors.New("invalid login details")
	ErrEmailTaken         = errors.New("email already exists")
	ErrPasswordMismatch   = errors.New("password confirmation should match")
	ErrWeakPassword       = errors.New("password should be 8 characters or greater")
	ErrInvalidToken       = errors.New("invalid token")
)

const minPasswordLen = 8

// meterNumAttempts bounds regeneration when a random meter number collides
// with an existing one.
const meterNumAttempts = 5

// AuthService handles registration and authentication. Every successful
// registration creates the user together with their meter (units and balance
// start at zero).
type AuthService struct {
	users     UserStore
	meters    MeterStore
	jwtConfig config.JWTConfig
}

// NewAuthService creates a new AuthService
func NewAuthService(users UserStore, meters MeterStore, jwtConfig config.JWTConfig) *AuthService {
	return &AuthService{
		users:     users,
		meters:    meters,
		jwtConfig: jwtConfig,
	}
}

// RegisterRequest represents the registration request
type RegisterRequest struct {
	Name                 string `json:"name" binding:"required,max=100"`
	Email                string `json:"email" binding:"required,email"`
	Password             string `json:"password" binding:"required"`
	PasswordConfirmation string `json:"password_confirmation" binding:"required"`
}

// LoginRequest represents the login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse represents the JWT token response
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// JWTClaims represents the JWT claims
type JWTClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Register validates the password policy, creates the user and their meter.
// No row is written when any validation fails.
func (s *AuthService) Register(req *RegisterRequest) (*models.User, *models.Meter, error) {
	if req.Password != req.PasswordConfirmation {
		return nil, nil, ErrPasswordMismatch
	}
	if len(req.Password) < minPasswordLen {
		return nil, nil, ErrWeakPassword
	}

	exists, err := s.users.ExistsByEmail(req.Email)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, ErrEmailTaken
	}

	passwordHash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return nil, nil, err
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         models.RoleCustomer,
	}
	if err := s.users.Create(user); err != nil {
		return nil, nil, err
	}

	meter, err := s.createMeter(user.ID)
	if err != nil {
		// Registration is all-or-nothing: drop the user row so the email
		// stays usable for a retry.
		if delErr := s.users.Delete(user.ID); delErr != nil {
			return nil, nil, errors.Join(err, delErr)
		}
		return nil, nil, err
	}
	return user, meter, nil
}

// createMeter creates the user's meter with a fresh random number,
// regenerating on unique-index collisions.
func (s *AuthService) createMeter(userID uint) (*models.Meter, error) {
	for attempt := 0; attempt < meterNumAttempts; attempt++ {
		num, err := meternum.Generate()
		if err != nil {
			return nil, err
		}

		meter := &models.Meter{
			UserID:  userID,
			Num:     num,
			Units:   decimal.Zero,
			Balance: decimal.Zero,
		}
		err = s.meters.Create(meter)
		if err == nil {
			return meter, nil
		}
		if !errors.Is(err, repository.ErrDuplicateMeterNum) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("could not allocate a unique meter number after %d attempts", meterNumAttempts)
}

// Login authenticates a user and returns a JWT token
func (s *AuthService) Login(req *LoginRequest) (*TokenResponse, error) {
	user, err := s.users.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !crypto.CheckPassword(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.generateToken(user)
}

// ValidateToken validates a JWT token and returns the claims
func (s *AuthService) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtConfig.Secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// generateToken generates a JWT token for a user
func (s *AuthService) generateToken(user *models.User) (*TokenResponse, error) {
	expiresIn := time.Duration(s.jwtConfig.ExpireHours) * time.Hour

	claims := &JWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "metervend",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken: tokenString,
		TokenType:   "Bearer",
		ExpiresIn:   s.jwtConfig.ExpireHours * 3600,
	}, nil
}

// GetUserByID retrieves a user by ID
func (s *AuthService) GetUserByID(id uint) (*models.User, error) {
	return s.users.GetByID(id)
}
