package handlers

import (
	"net/http"

	"github.com/JonnyWalker81/nillabg/internal/apierror"
	"github.com/JonnyWalker81/nillabg/internal/logger"
	"github.com/JonnyWalker81/nillabg/internal/models"
	"github.com/JonnyWalker81/nillabg/internal/service"
	"github.com/gin-gonic/gin"
)

type OverviewHandler struct {
	overviewService service.OverviewService
	log             logger.Logger
}

// NewOverviewHandler creates a new overview handler
func NewOverviewHandler(overviewService service.OverviewService, log logger.Logger) *OverviewHandler {
	return &OverviewHandler{
		overviewService: overviewService,
		log:             log,
	}
}

// GetDay handles GET /api/v1/overview/:date
func (h *OverviewHandler) GetDay(c *gin.Context) {
	raw := c.Param("date")
	date, err := models.ParseDay(raw)
	if err != nil || date == nil {
		apierror.WriteProblem(c, apierror.NewInvalidDateError(apierror.GetRequestID(c), "date", raw))
		return
	}

	day, err := h.overviewService.Day(c.Request.Context(), *date)
	if err != nil {
		h.log.WithContext(c.Request.Context()).Error("failed to load day overview",
			logger.String("date", raw),
			logger.Err(err),
		)
		apierror.WriteProblem(c, apierror.NewInternalError(apierror.GetRequestID(c)))
		return
	}

	c.JSON(http.StatusOK, day)
}
