package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/bloodbridge/bloodbridge/internal/models"
)

// Page is a single page of results. LastPage is at least 1.
type Page[T any] struct {
	Items       []T   `json:"items"`
	CurrentPage int   `json:"current_page"`
	LastPage    int   `json:"last_page"`
	Total       int64 `json:"total"`
	PerPage     int   `json:"per_page"`
}

func newPage[T any](items []T, page, perPage int, total int64) Page[T] {
	last := 1
	if total > 0 {
		last = int((total + int64(perPage) - 1) / int64(perPage))
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, CurrentPage: page, LastPage: last, Total: total, PerPage: perPage}
}

// OrganizationDTO is the public view of an organization account.
type OrganizationDTO struct {
	ID               string `json:"id"`
	OrganizationName string `json:"organization_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Address          string `json:"address"`
	City             string `json:"city"`
}

// UserDTO is the admin listing view of an account.
type UserDTO struct {
	ID               string            `json:"id"`
	Email            string            `json:"email"`
	FirstName        string            `json:"first_name"`
	LastName         string            `json:"last_name"`
	Phone            string            `json:"phone"`
	Address          string            `json:"address"`
	City             string            `json:"city"`
	BloodGroup       models.BloodGroup `json:"blood_group"`
	IsAdmin          bool              `json:"is_admin"`
	IsOrganization   bool              `json:"is_organization"`
	OrganizationName *string           `json:"organization_name"`
	CreatedAt        time.Time         `json:"created_at"`
}

// SearchService serves paginated, filtered listings.
type SearchService struct {
	db *gorm.DB
}

// NewSearchService constructs a SearchService.
func NewSearchService(db *gorm.DB) (*SearchService, error) {
	if db == nil {
		return nil, errors.New("search service: db is required")
	}
	return &SearchService{db: db}, nil
}

// SearchOrganizations lists organizations by name. A non-empty query matches the organization
// name, address or city case-insensitively.
func (s *SearchService) SearchOrganizations(ctx context.Context, query string, page, perPage int) (Page[OrganizationDTO], error) {
	ctx = ensureContext(ctx)
	page, perPage = pageBounds(page, perPage)

	tx := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("is_organization = ? AND organization_name IS NOT NULL AND organization_name <> ''", true)
	if q := strings.TrimSpace(query); q != "" {
		pattern := likePattern(q)
		tx = tx.Where(
			"LOWER(organization_name) LIKE ? "+likeEscape+" OR LOWER(address) LIKE ? "+likeEscape+" OR LOWER(city) LIKE ? "+likeEscape,
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return Page[OrganizationDTO]{}, dependencyError(fmt.Errorf("search service: count organizations: %w", err))
	}

	var users []models.User
	if err := tx.
		Order("organization_name ASC").
		Order("id ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&users).Error; err != nil {
		return Page[OrganizationDTO]{}, dependencyError(fmt.Errorf("search service: list organizations: %w", err))
	}

	items := make([]OrganizationDTO, 0, len(users))
	for _, u := range users {
		items = append(items, OrganizationDTO{
			ID:               u.ID,
			OrganizationName: derefString(u.OrganizationName),
			Email:            u.Email,
			Phone:            u.Phone,
			Address:          u.Address,
			City:             u.City,
		})
	}
	return newPage(items, page, perPage, total), nil
}

// SearchUsers lists accounts newest first, optionally matching name or email.
func (s *SearchService) SearchUsers(ctx context.Context, query string, page, perPage int) (Page[UserDTO], error) {
	ctx = ensureContext(ctx)
	page, perPage = pageBounds(page, perPage)

	tx := s.db.WithContext(ctx).Model(&models.User{})
	if q := strings.TrimSpace(query); q != "" {
		pattern := likePattern(q)
		tx = tx.Where(
			"LOWER(first_name) LIKE ? "+likeEscape+" OR LOWER(last_name) LIKE ? "+likeEscape+" OR LOWER(email) LIKE ? "+likeEscape,
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return Page[UserDTO]{}, dependencyError(fmt.Errorf("search service: count users: %w", err))
	}

	var users []models.User
	if err := tx.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&users).Error; err != nil {
		return Page[UserDTO]{}, dependencyError(fmt.Errorf("search service: list users: %w", err))
	}

	items := make([]UserDTO, 0, len(users))
	for _, u := range users {
		items = append(items, MapUser(u))
	}
	return newPage(items, page, perPage, total), nil
}

// SearchRequests pages through blood requests for admins, newest first.
func (s *SearchService) SearchRequests(ctx context.Context, filter BloodRequestFilter, page, perPage int) (Page[models.BloodRequest], error) {
	ctx = ensureContext(ctx)
	page, perPage = pageBounds(page, perPage)

	tx, err := filterBloodRequests(s.db.WithContext(ctx), filter)
	if err != nil {
		return Page[models.BloodRequest]{}, err
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return Page[models.BloodRequest]{}, dependencyError(fmt.Errorf("search service: count requests: %w", err))
	}

	var rows []models.BloodRequest
	if err := tx.
		Preload("Requester").
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&rows).Error; err != nil {
		return Page[models.BloodRequest]{}, dependencyError(fmt.Errorf("search service: list requests: %w", err))
	}
	return newPage(rows, page, perPage, total), nil
}

// MapUser renders a user without credentials.
func MapUser(u models.User) UserDTO {
	return UserDTO{
		ID:               u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Phone:            u.Phone,
		Address:          u.Address,
		City:             u.City,
		BloodGroup:       u.BloodGroup,
		IsAdmin:          u.IsAdmin,
		IsOrganization:   u.IsOrganization,
		OrganizationName: u.OrganizationName,
		CreatedAt:        u.CreatedAt,
	}
}
