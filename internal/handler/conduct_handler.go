package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/homeroom-api/internal/models"
	"github.com/noah-isme/homeroom-api/internal/service"
	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
	"github.com/noah-isme/homeroom-api/pkg/response"
)

// ConductHandler exposes the ledger operations.
type ConductHandler struct {
	ledger   *service.LedgerService
	students *service.StudentService
	access   *service.AccessService
	metrics  *service.MetricsService
}

// NewConductHandler constructs a conduct handler.
func NewConductHandler(ledger *service.LedgerService, students *service.StudentService, access *service.AccessService, metrics *service.MetricsService) *ConductHandler {
	return &ConductHandler{ledger: ledger, students: students, access: access, metrics: metrics}
}

// Apply godoc
// @Summary Apply a conduct event to a student
// @Tags Conduct
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.ApplyEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Router /conduct/events [post]
func (h *ConductHandler) Apply(c *gin.Context) {
	var req service.ApplyEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	student, err := h.students.Get(c.Request.Context(), claims, req.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.access.RequireStudentWrite(claims, student); err != nil {
		response.Error(c, err)
		return
	}

	event, err := h.ledger.ApplyEvent(c.Request.Context(), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.ObserveConductEvent(string(event.Kind))
	response.Created(c, event)
}

// Revert godoc
// @Summary Revert a conduct event
// @Tags Conduct
// @Produce json
// @Security BearerAuth
// @Param kind path string true "violation or bonus"
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /conduct/events/{kind}/{id} [delete]
func (h *ConductHandler) Revert(c *gin.Context) {
	kind := models.EventKind(c.Param("kind"))
	if kind != models.EventViolation && kind != models.EventBonus {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "kind must be violation or bonus"))
		return
	}
	warning, err := h.ledger.RevertEvent(c.Request.Context(), claimsFromContext(c), actorID(c), kind, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	payload := gin.H{"reverted": true}
	if warning != "" {
		payload["warning"] = warning
	}
	response.JSON(c, http.StatusOK, payload, nil)
}

// Recompute godoc
// @Summary Repair one student's score from the violation log
// @Tags Conduct
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /conduct/recompute/{id} [post]
func (h *ConductHandler) Recompute(c *gin.Context) {
	score, err := h.ledger.RecomputeFromLog(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"current_score": score}, nil)
}

// RecomputeAll godoc
// @Summary Repair every student's score from the violation log
// @Tags Conduct
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /conduct/recompute [post]
func (h *ConductHandler) RecomputeAll(c *gin.Context) {
	count, err := h.ledger.RecomputeAll(c.Request.Context(), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"students_recomputed": count}, nil)
}

// MultiApply godoc
// @Summary Apply several types to several students
// @Tags Conduct
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.MultiApplyRequest true "Selection payload"
// @Success 200 {object} response.Envelope
// @Router /conduct/events/batch [post]
func (h *ConductHandler) MultiApply(c *gin.Context) {
	var req service.MultiApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result := h.ledger.ApplyToMany(c.Request.Context(), claimsFromContext(c), actorID(c), req)
	response.JSON(c, http.StatusOK, result, nil)
}

// ApplyByCodes godoc
// @Summary Apply one violation to students named by raw codes
// @Tags Conduct
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CodesApplyRequest true "Codes payload"
// @Success 200 {object} response.Envelope
// @Router /conduct/events/by-codes [post]
func (h *ConductHandler) ApplyByCodes(c *gin.Context) {
	var req service.CodesApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.ledger.ApplyByCodes(c.Request.Context(), claimsFromContext(c), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListEvents godoc
// @Summary List conduct events
// @Tags Conduct
// @Produce json
// @Security BearerAuth
// @Param kind query string false "violation or bonus"
// @Param student_id query string false "Filter by student"
// @Param class query string false "Filter by class"
// @Param week query int false "Filter by week"
// @Success 200 {object} response.Envelope
// @Router /conduct/events [get]
func (h *ConductHandler) ListEvents(c *gin.Context) {
	filter := models.ConductEventFilter{
		StudentID: c.Query("student_id"),
		Class:     c.Query("class"),
		Kind:      models.EventKind(c.DefaultQuery("kind", string(models.EventViolation))),
	}
	if week, err := strconv.Atoi(c.Query("week")); err == nil {
		filter.WeekNumber = week
	}
	claims := claimsFromContext(c)
	if claims != nil && claims.Role == models.RoleHomeroom && claims.AssignedClass != "" {
		filter.Class = claims.AssignedClass
	}
	events, err := h.ledger.ListEvents(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}
