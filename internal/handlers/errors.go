package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relief-network/coordinator/internal/models"
	"github.com/relief-network/coordinator/internal/services"
)

// respondError maps a service error onto a status and a JSON error body.
// Server-side failures are logged and answered with a generic message.
func respondError(c *gin.Context, logger *slog.Logger, err error, serverMsg string) {
	_ = c.Error(err)

	var notFound *services.LocationNotFoundError
	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":    "Could not find coordinates for the extracted location.",
			"location": notFound.Location,
		})
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.ErrorContext(c.Request.Context(), serverMsg, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": serverMsg})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
