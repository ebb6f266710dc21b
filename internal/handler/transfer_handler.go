package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/homeroom-api/internal/service"
	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
	"github.com/noah-isme/homeroom-api/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv"
	contentTypePDF  = "application/pdf"
)

// TransferHandler covers spreadsheet import and file export endpoints.
type TransferHandler struct {
	imports    *service.ImportService
	exports    *service.ExportService
	exportJobs *service.ExportJobService
	students   *service.StudentService
}

// NewTransferHandler constructs a transfer handler.
func NewTransferHandler(imports *service.ImportService, exports *service.ExportService, exportJobs *service.ExportJobService, students *service.StudentService) *TransferHandler {
	return &TransferHandler{imports: imports, exports: exports, exportJobs: exportJobs, students: students}
}

// ImportViolations godoc
// @Summary Bulk import violations from a spreadsheet
// @Tags Transfer
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Workbook (.xlsx)"
// @Param week query int false "Week number, defaults to the live week"
// @Success 200 {object} response.Envelope
// @Router /import/violations [post]
func (h *TransferHandler) ImportViolations(c *gin.Context) {
	workbook, err := readUpload(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	week, _ := strconv.Atoi(c.Query("week"))
	result, err := h.imports.ImportViolations(c.Request.Context(), claimsFromContext(c), actorID(c), workbook, week)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ImportRoster godoc
// @Summary Import a student roster from a spreadsheet
// @Tags Transfer
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Workbook (.xlsx)"
// @Param course_code query string false "Course code used when generating student codes"
// @Success 200 {object} response.Envelope
// @Router /import/roster [post]
func (h *TransferHandler) ImportRoster(c *gin.Context) {
	workbook, err := readUpload(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.imports.ImportRoster(c.Request.Context(), claimsFromContext(c), workbook, c.Query("course_code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ViolationTemplate godoc
// @Summary Download the violation import template
// @Tags Transfer
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Success 200 {file} binary
// @Router /import/violations/template [get]
func (h *TransferHandler) ViolationTemplate(c *gin.Context) {
	template, err := h.imports.ViolationTemplate()
	if err != nil {
		response.Error(c, err)
		return
	}
	sendFile(c, "violation_import_template.xlsx", contentTypeXLSX, template)
}

// ExportWeekScores godoc
// @Summary Export one week of scores
// @Tags Transfer
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param week query int true "Week number"
// @Param class query string false "Filter by class"
// @Param format query string false "xlsx or csv" default(xlsx)
// @Success 200 {file} binary
// @Router /export/week-scores [get]
func (h *TransferHandler) ExportWeekScores(c *gin.Context) {
	week, _ := strconv.Atoi(c.Query("week"))
	class := c.Query("class")

	if c.DefaultQuery("format", "xlsx") == "csv" {
		data, err := h.exports.WeekScoresCSV(c.Request.Context(), week, class)
		if err != nil {
			response.Error(c, err)
			return
		}
		sendFile(c, fmt.Sprintf("week_%d_scores.csv", week), contentTypeCSV, data)
		return
	}
	data, err := h.exports.WeekScoresXLSX(c.Request.Context(), week, class)
	if err != nil {
		response.Error(c, err)
		return
	}
	sendFile(c, fmt.Sprintf("week_%d_scores.xlsx", week), contentTypeXLSX, data)
}

// ExportRankings godoc
// @Summary Export the weekly class rankings
// @Tags Transfer
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param week query int false "Week number, defaults to the live week"
// @Success 200 {file} binary
// @Router /export/rankings [get]
func (h *TransferHandler) ExportRankings(c *gin.Context) {
	week, _ := strconv.Atoi(c.Query("week"))
	data, err := h.exports.RankingsXLSX(c.Request.Context(), week)
	if err != nil {
		response.Error(c, err)
		return
	}
	sendFile(c, fmt.Sprintf("rankings_week_%d.xlsx", week), contentTypeXLSX, data)
}

// ExportStudentReport godoc
// @Summary Export one student's conduct report as PDF
// @Tags Transfer
// @Produce application/pdf
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Success 200 {file} binary
// @Router /export/students/{studentId}/report [get]
func (h *TransferHandler) ExportStudentReport(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), claimsFromContext(c), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	data, err := h.exports.StudentReportPDF(c.Request.Context(), student)
	if err != nil {
		response.Error(c, err)
		return
	}
	sendFile(c, fmt.Sprintf("student_report_%s.pdf", student.StudentCode), contentTypePDF, data)
}

type exportJobRequest struct {
	Kind  string `json:"kind" binding:"required"`
	Week  int    `json:"week" binding:"required"`
	Class string `json:"class"`
}

// CreateExportJob godoc
// @Summary Queue a heavy export for background generation
// @Tags Transfer
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body exportJobRequest true "Export parameters"
// @Success 201 {object} response.Envelope
// @Router /export/jobs [post]
func (h *TransferHandler) CreateExportJob(c *gin.Context) {
	var req exportJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	job, err := h.exportJobs.Enqueue(req.Kind, req.Week, req.Class)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, job)
}

// ExportJobStatus godoc
// @Summary Poll a queued export, with a download token once ready
// @Tags Transfer
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /export/jobs/{id} [get]
func (h *TransferHandler) ExportJobStatus(c *gin.Context) {
	job, err := h.exportJobs.Status(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// DownloadExport godoc
// @Summary Download a finished export via signed token
// @Tags Transfer
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /export/download [get]
func (h *TransferHandler) DownloadExport(c *gin.Context) {
	path, name, err := h.exportJobs.Resolve(c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.FileAttachment(path, filepath.Base(name))
}

func sendFile(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}
