package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/bloodbridge/bloodbridge/internal/api"
	"github.com/bloodbridge/bloodbridge/internal/app"
	iauth "github.com/bloodbridge/bloodbridge/internal/auth"
	"github.com/bloodbridge/bloodbridge/internal/cache"
	sharedtestutil "github.com/bloodbridge/bloodbridge/internal/database/testutil"
	"github.com/bloodbridge/bloodbridge/internal/models"
	"github.com/bloodbridge/bloodbridge/internal/realtime"
	"github.com/bloodbridge/bloodbridge/internal/storage"
	"github.com/bloodbridge/bloodbridge/pkg/crypto"
	"github.com/bloodbridge/bloodbridge/pkg/response"
)

// DefaultPassword is assigned to users created through CreateUser.
const DefaultPassword = "donor-pass-123"

// PDFContent is the smallest body the upload sniffer recognises as a PDF.
var PDFContent = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T       *testing.T
	DB      *gorm.DB
	Router  *gin.Engine
	JWT     *iauth.JWTService
	Storage *storage.Store
	Hub     *realtime.Hub
	Config  *app.Config
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-suite-super-secret-key-32-bytes!!",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	backend, err := storage.NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	store, err := storage.NewWithBackend(backend, storage.Config{MaxUploadSize: 1 << 20})
	require.NoError(t, err)

	cfg := &app.Config{
		Notifications: app.NotificationsConfig{FanoutBatchSize: 2},
	}
	hub := realtime.NewHub()

	router, err := api.NewRouter(api.Dependencies{
		DB:      db,
		JWT:     jwtSvc,
		Config:  cfg,
		Storage: store,
		Cache:   cache.NewMemoryStore(),
		Hub:     hub,
	})
	require.NoError(t, err)

	return &Env{
		T:       t,
		DB:      db,
		Router:  router,
		JWT:     jwtSvc,
		Storage: store,
		Hub:     hub,
		Config:  cfg,
	}
}

// CreateUser inserts an account with DefaultPassword and returns it with a bearer token.
// mutate adjusts the record before it is saved.
func (e *Env) CreateUser(mutate ...func(*models.User)) (*models.User, string) {
	e.T.Helper()

	hashed, err := crypto.HashPasswordWithCost(DefaultPassword, bcrypt.MinCost)
	require.NoError(e.T, err)

	user := &models.User{
		Email:     "user-" + uuid.NewString() + "@example.com",
		Password:  hashed,
		FirstName: "Test",
		LastName:  "User",
		City:      "Kathmandu",
	}
	for _, fn := range mutate {
		fn(user)
	}
	require.NoError(e.T, e.DB.Create(user).Error)

	token, err := e.JWT.Issue(user.ID, user.Email)
	require.NoError(e.T, err)
	return user, token.Token
}

// CreateAdmin inserts an administrator account.
func (e *Env) CreateAdmin() (*models.User, string) {
	e.T.Helper()
	return e.CreateUser(func(u *models.User) {
		u.IsAdmin = true
		u.FirstName = "Admin"
	})
}

// CreateOrganization inserts an approved organization account.
func (e *Env) CreateOrganization(name string) (*models.User, string) {
	e.T.Helper()
	return e.CreateUser(func(u *models.User) {
		u.IsOrganization = true
		u.OrganizationName = &name
	})
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(e.T, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.serve(req, token)
}

// File is a multipart attachment.
type File struct {
	Field    string
	Filename string
	Content  []byte
}

// Multipart submits form fields and files as multipart/form-data.
func (e *Env) Multipart(method, path string, fields map[string]string, files []File, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, value := range fields {
		require.NoError(e.T, writer.WriteField(name, value))
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.Field, f.Filename)
		require.NoError(e.T, err)
		_, err = part.Write(f.Content)
		require.NoError(e.T, err)
	}
	require.NoError(e.T, writer.Close())

	req, err := http.NewRequest(method, path, &buf)
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return e.serve(req, token)
}

func (e *Env) serve(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
