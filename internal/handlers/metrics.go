package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonnyWalker81/nillabg/internal/apierror"
	"github.com/JonnyWalker81/nillabg/internal/logger"
	"github.com/JonnyWalker81/nillabg/internal/models"
	"github.com/JonnyWalker81/nillabg/internal/service"
	"github.com/gin-gonic/gin"
)

type MetricsHandler struct {
	metricsService service.MetricsService
	defaults       models.MetricsParams
	log            logger.Logger
}

// NewMetricsHandler creates a metrics handler; defaults come from config and
// are overridden per request by query parameters
func NewMetricsHandler(metricsService service.MetricsService, defaults models.MetricsParams, log logger.Logger) *MetricsHandler {
	return &MetricsHandler{
		metricsService: metricsService,
		defaults:       defaults,
		log:            log,
	}
}

// minuteParams maps query parameters to the window they override
func minuteParams(p *models.MetricsParams) map[string]*time.Duration {
	return map[string]*time.Duration{
		"time_window":   &p.TimeWindow,
		"post_offset":   &p.PostOffset,
		"pre_window":    &p.PreWindow,
		"post_window":   &p.PostWindow,
		"nocorr_before": &p.NoCorrBefore,
		"nocorr_after":  &p.NoCorrAfter,
	}
}

// GetMetrics handles GET /api/v1/metrics
// Query: start, end (YYYY-MM-DD) and window overrides in minutes.
func (h *MetricsHandler) GetMetrics(c *gin.Context) {
	requestID := apierror.GetRequestID(c)
	params := h.defaults

	for _, field := range []string{"start", "end"} {
		raw := c.Query(field)
		day, err := models.ParseDay(raw)
		if err != nil {
			apierror.WriteProblem(c, apierror.NewInvalidDateError(requestID, field, raw))
			return
		}
		if field == "start" {
			params.Range.Start = day
		} else {
			params.Range.End = day
		}
	}
	if r := params.Range; r.Start != nil && r.End != nil && r.Start.After(*r.End) {
		apierror.WriteProblem(c, apierror.NewBadRequestError(requestID, "start",
			fmt.Sprintf("start %s is after end %s", r.StartDate(), r.EndDate())))
		return
	}

	for field, target := range minuteParams(&params) {
		raw, ok := c.GetQuery(field)
		if !ok {
			continue
		}
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes < 0 {
			apierror.WriteProblem(c, apierror.NewBadRequestError(requestID, field,
				fmt.Sprintf("%s must be a non-negative number of minutes", field)))
			return
		}
		*target = time.Duration(minutes) * time.Minute
	}

	report, err := h.metricsService.Compute(c.Request.Context(), params)
	if err != nil {
		h.log.WithContext(c.Request.Context()).Error("failed to compute metrics", logger.Err(err))
		apierror.WriteProblem(c, apierror.NewInternalError(requestID))
		return
	}

	c.JSON(http.StatusOK, report)
}
