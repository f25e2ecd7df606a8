package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/bloodbridge/bloodbridge/internal/models"
	"github.com/bloodbridge/bloodbridge/pkg/crypto"
	apperrors "github.com/bloodbridge/bloodbridge/pkg/errors"
	"github.com/bloodbridge/bloodbridge/pkg/metrics"
	"github.com/bloodbridge/bloodbridge/pkg/sanitize"
)

// RegisterUserInput describes the fields accepted at sign-up.
type RegisterUserInput struct {
	Email      string `json:"email" validate:"required,email,max=191"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
	FirstName  string `json:"first_name" validate:"required,max=100"`
	LastName   string `json:"last_name" validate:"required,max=100"`
	Phone      string `json:"phone" validate:"max=32"`
	Address    string `json:"address" validate:"max=255"`
	City       string `json:"city" validate:"max=100"`
	BloodGroup string `json:"blood_group" validate:"omitempty,bloodgroup"`
}

// UserService manages accounts and credential checks.
type UserService struct {
	db       *gorm.DB
	hashCost int
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// Register creates an account with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, input RegisterUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.FirstName = sanitize.Text(input.FirstName)
	input.LastName = sanitize.Text(input.LastName)
	input.Phone = strings.TrimSpace(input.Phone)
	input.Address = sanitize.Text(input.Address)
	input.City = sanitize.Text(input.City)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	hashed, err := crypto.HashPasswordWithCost(input.Password, s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Email:     input.Email,
		Password:  hashed,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Phone:     input.Phone,
		Address:   input.Address,
		City:      input.City,
	}
	if group, ok := models.ParseBloodGroup(input.BloodGroup); ok {
		user.BloodGroup = group
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewValidation(map[string]string{"email": "email is already registered"})
		}
		return nil, dependencyError(fmt.Errorf("user service: create user: %w", err))
	}
	return user, nil
}

// Authenticate checks an email/password pair.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if err != nil && !isNotFound(err) {
		return nil, dependencyError(fmt.Errorf("user service: load user: %w", err))
	}
	if err != nil || !crypto.VerifyPassword(user.Password, password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return &user, nil
}

// GetByID loads a user by identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if isNotFound(err) {
		return nil, apperrors.NewNotFound("user")
	}
	if err != nil {
		return nil, dependencyError(fmt.Errorf("user service: get user: %w", err))
	}
	return &user, nil
}

// Profile renders the caller's own account.
func (s *UserService) Profile(ctx context.Context, id string) (*UserDTO, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := MapUser(*user)
	return &dto, nil
}
