package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bloodbridge/bloodbridge/internal/services"
	"github.com/bloodbridge/bloodbridge/internal/storage"
	"github.com/bloodbridge/bloodbridge/pkg/errors"
	"github.com/bloodbridge/bloodbridge/pkg/response"
	appValidator "github.com/bloodbridge/bloodbridge/pkg/validator"
)

const bloodRequestUploadDir = "blood-requests"

// BloodRequestHandler exposes the blood request lifecycle.
type BloodRequestHandler struct {
	requests *services.BloodRequestService
	search   *services.SearchService
	store    *storage.Store
}

// NewBloodRequestHandler constructs a BloodRequestHandler.
func NewBloodRequestHandler(requests *services.BloodRequestService, search *services.SearchService, store *storage.Store) *BloodRequestHandler {
	return &BloodRequestHandler{requests: requests, search: search, store: store}
}

type bloodRequestForm struct {
	FirstName   string `form:"first_name"`
	LastName    string `form:"last_name"`
	Email       string `form:"email"`
	Phone       string `form:"phone"`
	Address     string `form:"address"`
	DateOfBirth string `form:"date_of_birth"`
	Gender      string `form:"gender"`
	BloodGroup  string `form:"blood_group"`
}

type updateStatusRequest struct {
	Status       string  `json:"status" validate:"required"`
	AdminRemarks *string `json:"admin_remarks"`
}

// POST /api/blood-requests (multipart with a "document" file)
func (h *BloodRequestHandler) Submit(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var form bloodRequestForm
	if !bindForm(c, &form) {
		return
	}

	var dob time.Time
	if value := strings.TrimSpace(form.DateOfBirth); value != "" {
		parsed, err := appValidator.ParseDate(value)
		if err != nil {
			response.Error(c, errors.NewValidation(map[string]string{
				"date_of_birth": "date of birth must be a valid date in the past",
			}))
			return
		}
		dob = parsed
	}

	path, ok := storeUpload(c, h.store, "document", bloodRequestUploadDir, true)
	if !ok {
		return
	}

	request, err := h.requests.Submit(requestContext(c), user.ID, services.SubmitBloodRequestInput{
		FirstName:    form.FirstName,
		LastName:     form.LastName,
		Email:        form.Email,
		Phone:        form.Phone,
		Address:      form.Address,
		DateOfBirth:  dob,
		Gender:       form.Gender,
		BloodGroup:   form.BloodGroup,
		DocumentPath: path,
	})
	if err != nil {
		discardUpload(c, h.store, path)
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, request)
}

// GET /api/blood-requests
func (h *BloodRequestHandler) ListMine(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	rows, err := h.requests.ListForRequester(requestContext(c), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rows)
}

// GET /api/blood-requests/:id
func (h *BloodRequestHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	request, err := h.requests.Get(requestContext(c), param(c, "id"), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, request)
}

// GET /api/admin/blood-requests
// Without a page parameter every matching request is returned; with one the result is paginated.
func (h *BloodRequestHandler) ListAll(c *gin.Context) {
	filter := services.BloodRequestFilter{
		Status:     c.Query("status"),
		BloodGroup: c.Query("blood_group"),
		Query:      c.Query("q"),
	}

	if c.Query("page") == "" {
		rows, err := h.requests.ListAll(requestContext(c), filter)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusOK, rows)
		return
	}

	page, err := h.search.SearchRequests(requestContext(c), filter, parseIntQuery(c, "page", 1), parseIntQuery(c, "per_page", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, page, response.NewMeta(page.CurrentPage, page.PerPage, page.Total))
}

// PUT /api/admin/blood-requests/:id/status
func (h *BloodRequestHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	request, err := h.requests.UpdateStatus(requestContext(c), param(c, "id"), req.Status, req.AdminRemarks)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, request)
}
