package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bloodbridge/bloodbridge/pkg/logger"
)

func TestLoggerMiddlewareLevelsByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zap.DebugLevel)
	t.Cleanup(func() { logger.Replace(nil) })
	logger.Replace(zap.New(core))

	r := gin.New()
	r.Use(Logger())
	r.GET("/blood-requests/:id", func(c *gin.Context) {
		c.Set(CtxUserIDKey, "user-1")
		c.Status(http.StatusNotFound)
	})
	r.GET("/boom", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})
	r.GET("/ok", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, path := range []string{"/blood-requests/42", "/boom", "/ok"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := recorded.All()
	require.Len(t, entries, 3)

	require.Equal(t, zapcore.WarnLevel, entries[0].Level)
	ctx := entries[0].ContextMap()
	require.Equal(t, "/blood-requests/:id", ctx["route"])
	require.Equal(t, "/blood-requests/42", ctx["path"])
	require.Equal(t, "user-1", ctx["user_id"])

	require.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	require.Equal(t, zapcore.InfoLevel, entries[2].Level)
	require.NotContains(t, entries[2].ContextMap(), "user_id")
}
