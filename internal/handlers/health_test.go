package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bloodbridge/bloodbridge/internal/handlers/testutil"
)

func TestHealthHandler(t *testing.T) {
	env := testutil.NewEnv(t)

	for _, path := range []string{"/health", "/api/health"} {
		w := env.Request(http.MethodGet, path, nil, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Contains(t, w.Body.String(), `"database"`)
	}
}

func TestSecurityAuditHandler(t *testing.T) {
	env := testutil.NewEnv(t)
	_, userToken := env.CreateUser()
	_, adminToken := env.CreateAdmin()

	w := env.Request(http.MethodGet, "/api/admin/security-audit", nil, userToken)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	w = env.Request(http.MethodGet, "/api/admin/security-audit", nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result struct {
		Checks  []map[string]any `json:"checks"`
		Summary map[string]int   `json:"summary"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &result)
	require.Len(t, result.Checks, 5)
}
