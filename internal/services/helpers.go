package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bloodbridge/bloodbridge/internal/models"
	apperrors "github.com/bloodbridge/bloodbridge/pkg/errors"
	appValidator "github.com/bloodbridge/bloodbridge/pkg/validator"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

var registerRulesOnce sync.Once

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// detached keeps ctx values but drops its cancellation. Notifications written after a
// commit must not be lost when the client goes away.
func detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ensureContext(ctx))
}

// validateInput runs tag validation and converts failures into a field-keyed 422.
func validateInput(input any) error {
	registerRulesOnce.Do(func() {
		_ = appValidator.RegisterEnum("bloodgroup", func(v string) bool {
			_, ok := models.ParseBloodGroup(v)
			return ok
		})
		_ = appValidator.RegisterEnum("gender", func(v string) bool {
			_, ok := models.ParseGender(v)
			return ok
		})
	})

	err := appValidator.ValidateStruct(input)
	if err == nil {
		return nil
	}
	fields := appValidator.Messages(err)
	if len(fields) == 0 {
		return apperrors.NewBadRequest(err.Error())
	}
	for field, tag := range failedTags(err) {
		switch tag {
		case "bloodgroup":
			fields[field] = "blood group must be one of " + bloodGroupList()
		case "gender":
			fields[field] = "gender must be male, female or other"
		}
	}
	return apperrors.NewValidation(fields)
}

func failedTags(err error) map[string]string {
	ve, ok := err.(appValidator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(ve))
	for _, failure := range ve {
		out[failure.Field] = failure.Tag
	}
	return out
}

func bloodGroupList() string {
	names := make([]string, len(models.BloodGroups))
	for i, g := range models.BloodGroups {
		names[i] = string(g)
	}
	return strings.Join(names, ", ")
}

func normaliseIDs(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

// pageBounds clamps page to >= 1 and perPage to [1, maxPageSize], defaulting to defaultPageSize.
func pageBounds(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPageSize
	}
	if perPage > maxPageSize {
		perPage = maxPageSize
	}
	return page, perPage
}

// likeEscape is the escape character paired with likePattern; '!' behaves the same on every driver.
const likeEscape = "ESCAPE '!'"

func likePattern(query string) string {
	escaped := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(strings.ToLower(strings.TrimSpace(query)))
	return "%" + escaped + "%"
}

func stringPtr(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}
