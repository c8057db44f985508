package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relief-network/coordinator/internal/services"
)

// GeocodeRequest represents a geocode request
type GeocodeRequest struct {
	Description string `json:"description"`
}

// ServicesHandler handles the auxiliary lookup endpoints
type ServicesHandler struct {
	geocode *services.GeocodeService
	logger  *slog.Logger
}

// NewServicesHandler creates a new services handler
func NewServicesHandler(geocode *services.GeocodeService, logger *slog.Logger) *ServicesHandler {
	return &ServicesHandler{geocode: geocode, logger: logger}
}

// Geocode handles turning a free-text description into coordinates
func (h *ServicesHandler) Geocode(c *gin.Context) {
	var req GeocodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.geocode.Geocode(c.Request.Context(), req.Description)
	if err != nil {
		respondError(c, h.logger, err, "An error occurred during the geocoding process.")
		return
	}

	c.Data(http.StatusOK, gin.MIMEJSON+"; charset=utf-8", result)
}
