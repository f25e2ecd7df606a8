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
)

const campaignUploadDir = "campaigns"

// CampaignHandler exposes donation campaigns.
type CampaignHandler struct {
	campaigns *services.CampaignService
	store     *storage.Store
}

// NewCampaignHandler constructs a CampaignHandler.
func NewCampaignHandler(campaigns *services.CampaignService, store *storage.Store) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns, store: store}
}

type campaignForm struct {
	Title       string `form:"title"`
	Description string `form:"description"`
	Location    string `form:"location"`
	StartAt     string `form:"start_at"`
	EndAt       string `form:"end_at"`
}

type interestRequest struct {
	Status string `json:"status" validate:"required"`
}

// POST /api/admin/campaigns (multipart with an optional "image" file)
func (h *CampaignHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var form campaignForm
	if !bindForm(c, &form) {
		return
	}

	fields := map[string]string{}
	startAt := parseTimestamp(form.StartAt, "start_at", fields)
	endAt := parseTimestamp(form.EndAt, "end_at", fields)
	if len(fields) > 0 {
		response.Error(c, errors.NewValidation(fields))
		return
	}

	path, ok := storeUpload(c, h.store, "image", campaignUploadDir, false)
	if !ok {
		return
	}

	campaign, err := h.campaigns.Create(requestContext(c), user, services.CreateCampaignInput{
		Title:       form.Title,
		Description: form.Description,
		Location:    form.Location,
		StartAt:     startAt,
		EndAt:       endAt,
		ImagePath:   path,
	})
	if err != nil {
		discardUpload(c, h.store, path)
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, campaign)
}

// GET /api/campaigns
func (h *CampaignHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	rows, err := h.campaigns.List(requestContext(c), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rows)
}

// POST /api/campaigns/:id/interest
func (h *CampaignHandler) SetInterest(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req interestRequest
	if !bindAndValidate(c, &req) {
		return
	}

	interest, err := h.campaigns.SetInterest(requestContext(c), param(c, "id"), user.ID, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, interest)
}

// parseTimestamp accepts RFC 3339 timestamps; blank values are left to the service's required rule.
func parseTimestamp(value, field string, fields map[string]string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		fields[field] = field + " must be an RFC 3339 timestamp"
	}
	return parsed
}
