package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relief-network/coordinator/internal/middleware"
	"github.com/relief-network/coordinator/internal/services"
)

// ReportHandler handles report requests
type ReportHandler struct {
	reports *services.ReportService
	logger  *slog.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(reports *services.ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger}
}

// Create handles report submission. The body's user_id falls back to the caller.
func (h *ReportHandler) Create(c *gin.Context) {
	var req services.CreateReportInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.UserID == "" {
		req.UserID = middleware.GetUserID(c)
	}

	r, err := h.reports.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err, "Failed to create report.")
		return
	}

	c.JSON(http.StatusCreated, r)
}

// Get handles fetching one report
func (h *ReportHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "report")
	if !ok {
		return
	}

	r, err := h.reports.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to fetch report")
		return
	}

	c.JSON(http.StatusOK, r)
}

// ListForDisaster handles listing the reports of a disaster
func (h *ReportHandler) ListForDisaster(c *gin.Context) {
	id, ok := parseID(c, "disaster")
	if !ok {
		return
	}

	reports, err := h.reports.ListByDisaster(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to list reports")
		return
	}

	c.JSON(http.StatusOK, reports)
}

// Verify handles image verification of a report
func (h *ReportHandler) Verify(c *gin.Context) {
	id, ok := parseID(c, "report")
	if !ok {
		return
	}

	r, err := h.reports.Verify(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "An error occurred during image verification.")
		return
	}

	c.JSON(http.StatusOK, r)
}
