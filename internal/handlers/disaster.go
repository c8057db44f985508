package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/relief-network/coordinator/internal/middleware"
	"github.com/relief-network/coordinator/internal/models"
	"github.com/relief-network/coordinator/internal/services"
)

// DisasterHandler handles disaster requests
type DisasterHandler struct {
	disasters *services.DisasterService
	social    *services.SocialMediaService
	logger    *slog.Logger
}

// NewDisasterHandler creates a new disaster handler
func NewDisasterHandler(disasters *services.DisasterService, social *services.SocialMediaService, logger *slog.Logger) *DisasterHandler {
	return &DisasterHandler{disasters: disasters, social: social, logger: logger}
}

// Create handles disaster creation
func (h *DisasterHandler) Create(c *gin.Context) {
	var req services.CreateDisasterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	d, err := h.disasters.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err, "failed to create disaster")
		return
	}

	c.JSON(http.StatusCreated, d)
}

// List handles listing disasters, optionally filtered by ?tag=
func (h *DisasterHandler) List(c *gin.Context) {
	disasters, err := h.disasters.List(c.Request.Context(), c.Query("tag"))
	if err != nil {
		respondError(c, h.logger, err, "failed to list disasters")
		return
	}

	c.JSON(http.StatusOK, disasters)
}

// Get handles fetching one disaster
func (h *DisasterHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "disaster")
	if !ok {
		return
	}

	d, err := h.disasters.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to fetch disaster")
		return
	}

	c.JSON(http.StatusOK, d)
}

// Update handles disaster updates. The submitted body is recorded verbatim
// as the changes of the new audit entry.
func (h *DisasterHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "disaster")
	if !ok {
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, "failed to read request body")
		return
	}

	var changes map[string]any
	if err := json.Unmarshal(body, &changes); err != nil || changes == nil {
		badRequest(c, "request body must be a JSON object")
		return
	}
	var patch models.DisasterPatch
	if err := json.Unmarshal(body, &patch); err != nil {
		badRequest(c, err.Error())
		return
	}

	d, err := h.disasters.Update(c.Request.Context(), id, middleware.GetUserID(c), patch, changes)
	if err != nil {
		respondError(c, h.logger, err, "failed to update disaster")
		return
	}

	c.JSON(http.StatusOK, d)
}

// Delete handles disaster deletion; admins only
func (h *DisasterHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "disaster")
	if !ok {
		return
	}

	if err := h.disasters.Delete(c.Request.Context(), id, middleware.GetUserRole(c)); err != nil {
		respondError(c, h.logger, err, "failed to delete disaster")
		return
	}

	c.Status(http.StatusNoContent)
}

// SocialMedia handles the cached social-media feed of a disaster
func (h *DisasterHandler) SocialMedia(c *gin.Context) {
	id, ok := parseID(c, "disaster")
	if !ok {
		return
	}

	feed, err := h.social.Feed(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch social media data.")
		return
	}

	c.Data(http.StatusOK, gin.MIMEJSON+"; charset=utf-8", feed)
}

func parseID(c *gin.Context, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid "+entity+" id")
		return uuid.Nil, false
	}
	return id, true
}
