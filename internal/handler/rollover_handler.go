package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/homeroom-api/internal/service"
	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
	"github.com/noah-isme/homeroom-api/pkg/response"
)

// RolloverHandler exposes the weekly transition endpoints.
type RolloverHandler struct {
	rollover *service.RolloverService
	metrics  *service.MetricsService
}

// NewRolloverHandler constructs a rollover handler.
func NewRolloverHandler(rollover *service.RolloverService, metrics *service.MetricsService) *RolloverHandler {
	return &RolloverHandler{rollover: rollover, metrics: metrics}
}

// EndWeek godoc
// @Summary Archive the current week and open the next one
// @Tags Rollover
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /weeks/end [post]
func (h *RolloverHandler) EndWeek(c *gin.Context) {
	summary, err := h.rollover.EndWeek(c.Request.Context(), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.ObserveRollover()
	response.JSON(c, http.StatusOK, summary, nil)
}

// Status godoc
// @Summary Live week pointer and rollover reminder
// @Tags Rollover
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /weeks/status [get]
func (h *RolloverHandler) Status(c *gin.Context) {
	week, err := h.rollover.CurrentWeek(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	due, err := h.rollover.IsRolloverDue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"current_week": week, "rollover_due": due}, nil)
}

// SetWeek godoc
// @Summary Override the week pointer without archiving (unsafe)
// @Tags Rollover
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body object true "{\"week\": n}"
// @Success 200 {object} response.Envelope
// @Router /weeks/current [put]
func (h *RolloverHandler) SetWeek(c *gin.Context) {
	var req struct {
		Week int `json:"week"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.rollover.SetWeek(c.Request.Context(), actorID(c), req.Week); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"current_week": req.Week}, nil)
}
