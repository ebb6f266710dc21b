package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/homeroom-api/internal/service"
	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
	"github.com/noah-isme/homeroom-api/pkg/response"
)

// ClassRoomHandler manages class labels.
type ClassRoomHandler struct {
	classes *service.ClassRoomService
}

// NewClassRoomHandler constructs a classroom handler.
func NewClassRoomHandler(classes *service.ClassRoomService) *ClassRoomHandler {
	return &ClassRoomHandler{classes: classes}
}

// List godoc
// @Summary List classes with enrollment counts
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassRoomHandler) List(c *gin.Context) {
	classes, err := h.classes.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, nil)
}

// Create godoc
// @Summary Create a class
// @Tags Classes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ClassRoomRequest true "Class name"
// @Success 201 {object} response.Envelope
// @Router /classes [post]
func (h *ClassRoomHandler) Create(c *gin.Context) {
	var req service.ClassRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	created, err := h.classes.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Rename godoc
// @Summary Rename a class and relabel its students
// @Tags Classes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Param request body service.ClassRoomRequest true "New name"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassRoomHandler) Rename(c *gin.Context) {
	var req service.ClassRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	renamed, err := h.classes.Rename(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, renamed, nil)
}

// Delete godoc
// @Summary Delete an empty class
// @Tags Classes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Success 204
// @Router /classes/{id} [delete]
func (h *ClassRoomHandler) Delete(c *gin.Context) {
	if err := h.classes.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
