package handlers

import (
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bloodbridge/bloodbridge/internal/storage"
	appErrors "github.com/bloodbridge/bloodbridge/pkg/errors"
	"github.com/bloodbridge/bloodbridge/pkg/response"
	appValidator "github.com/bloodbridge/bloodbridge/pkg/validator"
)

var errInvalidJSON = appErrors.NewBadRequest("invalid JSON payload")

// bindJSON binds the JSON payload for inputs whose rules are enforced by the service.
func bindJSON[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, errInvalidJSON)
		return false
	}
	return true
}

// bindAndValidate binds the JSON payload into dest and runs struct validation rules.
// Malformed JSON is a 400; rule violations are a 422 keyed by field.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if !bindJSON(c, dest) {
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewValidation(appValidator.Messages(err)))
		return false
	}

	return true
}

// bindForm binds multipart or urlencoded fields. Validation is left to the service.
func bindForm[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBind(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid form payload"))
		return false
	}
	return true
}

// storeUpload saves the form file under field. A missing optional file yields "".
// Upload problems are reported against the field as a 422.
func storeUpload(c *gin.Context, store *storage.Store, field, dir string, required bool) (string, bool) {
	fh, err := c.FormFile(field)
	if err != nil {
		if !required && stderrors.Is(err, http.ErrMissingFile) {
			return "", true
		}
		response.Error(c, appErrors.NewValidation(map[string]string{field: field + " is required"}))
		return "", false
	}

	path, err := store.PutMultipart(requestContext(c), dir, fh)
	if err != nil {
		response.Error(c, uploadError(field, err, store))
		return "", false
	}
	return path, true
}

func uploadError(field string, err error, store *storage.Store) error {
	switch {
	case stderrors.Is(err, storage.ErrFileRequired):
		return appErrors.NewValidation(map[string]string{field: field + " is required"})
	case stderrors.Is(err, storage.ErrFileTooLarge):
		return appErrors.NewValidation(map[string]string{
			field: field + " must not exceed " + strconv.FormatInt(store.MaxUploadSize()>>10, 10) + " KB",
		})
	case stderrors.Is(err, storage.ErrUnsupportedType):
		return appErrors.NewValidation(map[string]string{field: field + " must be a pdf, jpg, jpeg or png file"})
	default:
		return appErrors.NewDependency("", err)
	}
}

// discardUpload removes a stored file after the request that carried it failed.
func discardUpload(c *gin.Context, store *storage.Store, path string) {
	if path == "" {
		return
	}
	_ = store.Delete(requestContext(c), path)
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseBoolQuery(c *gin.Context, key string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(c.Query(key)))
	return err == nil && parsed
}
