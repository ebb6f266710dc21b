package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/homeroom-api/internal/service"
	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
	"github.com/noah-isme/homeroom-api/pkg/response"
)

// GradeHandler exposes the academic grade book.
type GradeHandler struct {
	grades *service.GradeService
}

// NewGradeHandler constructs a grade handler.
func NewGradeHandler(grades *service.GradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// Upsert godoc
// @Summary Write one grade cell
// @Tags Grades
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.UpsertGradeRequest true "Grade cell"
// @Success 200 {object} response.Envelope
// @Router /grades [put]
func (h *GradeHandler) Upsert(c *gin.Context) {
	var req service.UpsertGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	grade, err := h.grades.Upsert(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// Delete godoc
// @Summary Remove one grade cell
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Param id path string true "Grade ID"
// @Success 204
// @Router /grades/{id} [delete]
func (h *GradeHandler) Delete(c *gin.Context) {
	if err := h.grades.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListByStudent godoc
// @Summary Raw grade cells for one student
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param semester query int false "Semester (1 or 2)"
// @Param school_year query string false "School year label"
// @Param subject_id query string false "Filter by subject"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/grades [get]
func (h *GradeHandler) ListByStudent(c *gin.Context) {
	semester, _ := strconv.Atoi(c.Query("semester"))
	grades, err := h.grades.ListByStudent(c.Request.Context(), claimsFromContext(c),
		c.Param("id"), semester, c.Query("school_year"), c.Query("subject_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}

// Transcript godoc
// @Summary Per-subject averages and GPA for one student
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param semester query int true "Semester (1 or 2)"
// @Param school_year query string true "School year label"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/transcript [get]
func (h *GradeHandler) Transcript(c *gin.Context) {
	semester, _ := strconv.Atoi(c.Query("semester"))
	transcript, err := h.grades.Transcript(c.Request.Context(), claimsFromContext(c),
		c.Param("id"), semester, c.Query("school_year"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transcript, nil)
}
