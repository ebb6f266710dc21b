package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/homeroom-api/internal/service"
	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
	"github.com/noah-isme/homeroom-api/pkg/response"
)

// maxUploadBytes caps chat image and workbook uploads at 8 MiB.
const maxUploadBytes = 8 << 20

// ChatHandler fronts the assistant endpoints.
type ChatHandler struct {
	chat *service.ChatService
}

// NewChatHandler constructs a chat handler.
func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Ask godoc
// @Summary Ask the assistant a question
// @Tags Chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.AskRequest true "Chat turn"
// @Success 200 {object} response.Envelope
// @Router /chat/ask [post]
func (h *ChatHandler) Ask(c *gin.Context) {
	var req service.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	reply, err := h.chat.Ask(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reply, nil)
}

type parentReportRequest struct {
	StudentID  string `json:"student_id" binding:"required"`
	Semester   int    `json:"semester"`
	SchoolYear string `json:"school_year"`
}

// ParentReport godoc
// @Summary Draft a report to the parents of one student
// @Tags Chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body parentReportRequest true "Report target"
// @Success 200 {object} response.Envelope
// @Router /chat/parent-report [post]
func (h *ChatHandler) ParentReport(c *gin.Context) {
	var req parentReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	reply, err := h.chat.ParentReport(c.Request.Context(), claimsFromContext(c), req.StudentID, req.Semester, req.SchoolYear)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reply, nil)
}

type classTrendsRequest struct {
	Class string `json:"class" binding:"required"`
	Weeks []int  `json:"weeks"`
}

// ClassTrends godoc
// @Summary Summarize conduct trends for one class
// @Tags Chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body classTrendsRequest true "Class and week range"
// @Success 200 {object} response.Envelope
// @Router /chat/class-trends [post]
func (h *ChatHandler) ClassTrends(c *gin.Context) {
	var req classTrendsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	reply, err := h.chat.ClassTrends(c.Request.Context(), req.Class, req.Weeks)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reply, nil)
}

// ReadCodes godoc
// @Summary Extract student codes from an uploaded photo
// @Tags Chat
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param image formData file true "Photo of a student list"
// @Success 200 {object} response.Envelope
// @Router /chat/read-codes [post]
func (h *ChatHandler) ReadCodes(c *gin.Context) {
	image, err := readUpload(c, "image")
	if err != nil {
		response.Error(c, err)
		return
	}
	matched, unmatched, err := h.chat.ReadStudentCodes(c.Request.Context(), image)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"students": matched, "unmatched_codes": unmatched}, nil)
}

// readUpload pulls one multipart file field into memory, size-capped.
func readUpload(c *gin.Context, field string) ([]byte, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("missing file upload %q", field))
	}
	if fileHeader.Size > maxUploadBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "uploaded file exceeds the size limit")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open upload")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	return data, nil
}
