package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bloodbridge/bloodbridge/internal/handlers/testutil"
	"github.com/bloodbridge/bloodbridge/internal/models"
)

func bloodRequestFields() map[string]string {
	return map[string]string{
		"first_name":    "Sita",
		"last_name":     "Sharma",
		"email":         "sita@example.com",
		"phone":         "9800000000",
		"address":       "Baneshwor",
		"date_of_birth": "1990-04-12",
		"gender":        "female",
		"blood_group":   "O-",
	}
}

func documentFile() []testutil.File {
	return []testutil.File{{Field: "document", Filename: "report.pdf", Content: testutil.PDFContent}}
}

func submitBloodRequest(t *testing.T, env *testutil.Env, token string) models.BloodRequest {
	t.Helper()

	w := env.Multipart(http.MethodPost, "/api/blood-requests", bloodRequestFields(), documentFile(), token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var request models.BloodRequest
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &request)
	return request
}

func approveBloodRequest(t *testing.T, env *testutil.Env, adminToken, requestID string) {
	t.Helper()

	w := env.Request(http.MethodPut, "/api/admin/blood-requests/"+requestID+"/status",
		map[string]any{"status": "approved"}, adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

type notificationPayload struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Data   map[string]any `json:"data"`
	IsRead bool           `json:"is_read"`
}

func listNotifications(t *testing.T, env *testutil.Env, token string) []notificationPayload {
	t.Helper()

	w := env.Request(http.MethodGet, "/api/notifications", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var items []notificationPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &items)
	return items
}
