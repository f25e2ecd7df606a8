package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bloodbridge/bloodbridge/internal/middleware"
	"github.com/bloodbridge/bloodbridge/internal/models"
	"github.com/bloodbridge/bloodbridge/pkg/errors"
	"github.com/bloodbridge/bloodbridge/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentUser returns the authenticated user or writes a 401.
func currentUser(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return nil, false
	}
	return user, true
}

func param(c *gin.Context, name string) string {
	return strings.TrimSpace(c.Param(name))
}
