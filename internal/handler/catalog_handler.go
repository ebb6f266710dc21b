package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/homeroom-api/internal/service"
	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
	"github.com/noah-isme/homeroom-api/pkg/response"
)

// CatalogHandler manages the violation and bonus type catalogs.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler constructs a catalog handler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListViolationTypes godoc
// @Summary List violation types
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /violation-types [get]
func (h *CatalogHandler) ListViolationTypes(c *gin.Context) {
	types, err := h.catalog.ListViolationTypes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}

// CreateViolationType godoc
// @Summary Create a violation type
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.TypeRequest true "Type definition"
// @Success 201 {object} response.Envelope
// @Router /violation-types [post]
func (h *CatalogHandler) CreateViolationType(c *gin.Context) {
	var req service.TypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	created, err := h.catalog.CreateViolationType(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// UpdateViolationType godoc
// @Summary Update a violation type
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Type ID"
// @Param request body service.TypeRequest true "Type definition"
// @Success 200 {object} response.Envelope
// @Router /violation-types/{id} [put]
func (h *CatalogHandler) UpdateViolationType(c *gin.Context) {
	var req service.TypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	updated, err := h.catalog.UpdateViolationType(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// DeleteViolationType godoc
// @Summary Delete a violation type
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param id path string true "Type ID"
// @Success 204
// @Router /violation-types/{id} [delete]
func (h *CatalogHandler) DeleteViolationType(c *gin.Context) {
	if err := h.catalog.DeleteViolationType(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListBonusTypes godoc
// @Summary List bonus types
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /bonus-types [get]
func (h *CatalogHandler) ListBonusTypes(c *gin.Context) {
	types, err := h.catalog.ListBonusTypes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}

// CreateBonusType godoc
// @Summary Create a bonus type
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.TypeRequest true "Type definition"
// @Success 201 {object} response.Envelope
// @Router /bonus-types [post]
func (h *CatalogHandler) CreateBonusType(c *gin.Context) {
	var req service.TypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	created, err := h.catalog.CreateBonusType(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// UpdateBonusType godoc
// @Summary Update a bonus type
// @Tags Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Type ID"
// @Param request body service.TypeRequest true "Type definition"
// @Success 200 {object} response.Envelope
// @Router /bonus-types/{id} [put]
func (h *CatalogHandler) UpdateBonusType(c *gin.Context) {
	var req service.TypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	updated, err := h.catalog.UpdateBonusType(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// DeleteBonusType godoc
// @Summary Delete a bonus type
// @Tags Catalog
// @Produce json
// @Security BearerAuth
// @Param id path string true "Type ID"
// @Success 204
// @Router /bonus-types/{id} [delete]
func (h *CatalogHandler) DeleteBonusType(c *gin.Context) {
	if err := h.catalog.DeleteBonusType(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
