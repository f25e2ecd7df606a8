package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bloodbridge/bloodbridge/internal/services"
	"github.com/bloodbridge/bloodbridge/pkg/response"
)

// DonorHandler exposes donor offers on approved requests.
type DonorHandler struct {
	donors *services.DonorService
}

// NewDonorHandler constructs a DonorHandler.
func NewDonorHandler(donors *services.DonorService) *DonorHandler {
	return &DonorHandler{donors: donors}
}

type decideOfferRequest struct {
	Status  string  `json:"status" validate:"required"`
	Remarks *string `json:"remarks"`
}

// POST /api/blood-requests/:id/donors
func (h *DonorHandler) Volunteer(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.VolunteerInput
	if !bindJSON(c, &req) {
		return
	}

	donor, err := h.donors.Volunteer(requestContext(c), param(c, "id"), user.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, donor)
}

// GET /api/blood-requests/:id/donors
func (h *DonorHandler) ListForRequest(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	rows, err := h.donors.ListForRequest(requestContext(c), param(c, "id"), user)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rows)
}

// PUT /api/blood-requests/:id/donors/:donorId/status
func (h *DonorHandler) Decide(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req decideOfferRequest
	if !bindAndValidate(c, &req) {
		return
	}

	donor, err := h.donors.Decide(requestContext(c), param(c, "id"), param(c, "donorId"), user, req.Status, req.Remarks)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, donor)
}

// GET /api/donors/me
func (h *DonorHandler) ListMine(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	rows, err := h.donors.ListForDonor(requestContext(c), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rows)
}
