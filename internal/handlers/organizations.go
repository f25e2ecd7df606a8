package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bloodbridge/bloodbridge/internal/services"
	"github.com/bloodbridge/bloodbridge/internal/storage"
	"github.com/bloodbridge/bloodbridge/pkg/response"
)

const organizationUploadDir = "organization-requests"

// OrganizationHandler covers organization search, applications and blood stock.
type OrganizationHandler struct {
	search       *services.SearchService
	applications *services.OrganizationRequestService
	stock        *services.BloodStockService
	store        *storage.Store
}

// NewOrganizationHandler constructs an OrganizationHandler.
func NewOrganizationHandler(
	search *services.SearchService,
	applications *services.OrganizationRequestService,
	stock *services.BloodStockService,
	store *storage.Store,
) *OrganizationHandler {
	return &OrganizationHandler{search: search, applications: applications, stock: stock, store: store}
}

type organizationForm struct {
	OrganizationName string `form:"organization_name"`
	Address          string `form:"address"`
	Phone            string `form:"phone"`
}

type decideApplicationRequest struct {
	Status          string  `json:"status" validate:"required"`
	RejectionReason *string `json:"rejection_reason"`
}

// GET /api/organizations
func (h *OrganizationHandler) Search(c *gin.Context) {
	page, err := h.search.SearchOrganizations(requestContext(c), c.Query("q"), parseIntQuery(c, "page", 1), parseIntQuery(c, "per_page", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, page, response.NewMeta(page.CurrentPage, page.PerPage, page.Total))
}

// GET /api/admin/users
func (h *OrganizationHandler) SearchUsers(c *gin.Context) {
	page, err := h.search.SearchUsers(requestContext(c), c.Query("q"), parseIntQuery(c, "page", 1), parseIntQuery(c, "per_page", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, page, response.NewMeta(page.CurrentPage, page.PerPage, page.Total))
}

// POST /api/organization-requests (multipart with a "pancard" file)
func (h *OrganizationHandler) Apply(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var form organizationForm
	if !bindForm(c, &form) {
		return
	}

	path, ok := storeUpload(c, h.store, "pancard", organizationUploadDir, true)
	if !ok {
		return
	}

	application, err := h.applications.Submit(requestContext(c), user, services.SubmitOrganizationInput{
		OrganizationName: form.OrganizationName,
		Address:          form.Address,
		Phone:            form.Phone,
		PancardPath:      path,
	})
	if err != nil {
		discardUpload(c, h.store, path)
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, application)
}

// GET /api/admin/organization-requests
func (h *OrganizationHandler) ListApplications(c *gin.Context) {
	rows, err := h.applications.List(requestContext(c), c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rows)
}

// PUT /api/admin/organization-requests/:id/status
func (h *OrganizationHandler) DecideApplication(c *gin.Context) {
	var req decideApplicationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	application, err := h.applications.Decide(requestContext(c), param(c, "id"), req.Status, req.RejectionReason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, application)
}

// PUT /api/blood-stock
func (h *OrganizationHandler) UpsertStock(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.UpsertStockInput
	if !bindJSON(c, &req) {
		return
	}

	stock, err := h.stock.Upsert(requestContext(c), user, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stock)
}

// GET /api/blood-stock
func (h *OrganizationHandler) MyStock(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	h.listStock(c, user.ID)
}

// GET /api/organizations/:id/blood-stock
func (h *OrganizationHandler) OrganizationStock(c *gin.Context) {
	h.listStock(c, param(c, "id"))
}

func (h *OrganizationHandler) listStock(c *gin.Context, organizationID string) {
	rows, err := h.stock.ListForOrganization(requestContext(c), organizationID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rows)
}
