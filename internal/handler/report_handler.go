package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/homeroom-api/internal/service"
	"github.com/noah-isme/homeroom-api/pkg/response"
)

// ReportHandler exposes the read-side aggregation endpoints.
type ReportHandler struct {
	reports *service.ReportService
	metrics *service.MetricsService
}

// NewReportHandler constructs a report handler.
func NewReportHandler(reports *service.ReportService, metrics *service.MetricsService) *ReportHandler {
	return &ReportHandler{reports: reports, metrics: metrics}
}

// Histogram godoc
// @Summary Score bucket histogram
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param class query string false "Filter by class"
// @Param week query int false "Week number, defaults to the live week"
// @Success 200 {object} response.Envelope
// @Router /reports/histogram [get]
func (h *ReportHandler) Histogram(c *gin.Context) {
	week, _ := strconv.Atoi(c.Query("week"))
	histogram, err := h.reports.Histogram(c.Request.Context(), c.Query("class"), week)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, histogram, nil)
}

// Rankings godoc
// @Summary Weekly class leaderboard
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param week query int false "Week number, defaults to the live week"
// @Success 200 {object} response.Envelope
// @Router /reports/rankings [get]
func (h *ReportHandler) Rankings(c *gin.Context) {
	week, _ := strconv.Atoi(c.Query("week"))
	rankings, err := h.reports.ClassRankings(c.Request.Context(), week)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rankings, nil)
}

// Weekly godoc
// @Summary Weekly report bundle
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param week query int false "Week number, defaults to the live week"
// @Param class query string false "Filter by class"
// @Success 200 {object} response.Envelope
// @Router /reports/weekly [get]
func (h *ReportHandler) Weekly(c *gin.Context) {
	week, _ := strconv.Atoi(c.Query("week"))
	report, err := h.reports.WeeklyReport(c.Request.Context(), week, c.Query("class"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Weeks godoc
// @Summary Week numbers with recorded data
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /reports/weeks [get]
func (h *ReportHandler) Weeks(c *gin.Context) {
	weeks, err := h.reports.AvailableWeeks(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, weeks, nil)
}

// WeekStats godoc
// @Summary Per-week statistics roll-up
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param week query int true "Week number"
// @Param class query string false "Filter by class"
// @Success 200 {object} response.Envelope
// @Router /reports/week-stats [get]
func (h *ReportHandler) WeekStats(c *gin.Context) {
	week, _ := strconv.Atoi(c.Query("week"))
	stats, err := h.reports.WeekStats(c.Request.Context(), week, c.Query("class"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Metrics godoc
// @Summary Aggregated runtime metrics
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /reports/metrics [get]
func (h *ReportHandler) Metrics(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}
