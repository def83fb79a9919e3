package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReferenceHandler struct {
	referenceService service.ReferenceService
}

func NewReferenceHandler(referenceService service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{referenceService: referenceService}
}

// RegisterRoutes binds the lookup-table endpoints. Reads are open to any
// authenticated user; writes require Admin or Inspector.
func (h *ReferenceHandler) RegisterRoutes(router *gin.RouterGroup) {
	refs := router.Group("/api/references/:kind")
	{
		refs.GET("", middleware.RequireAuth(), h.List)

		admin := middleware.RequireRole(model.RoleAdmin, model.RoleInspector)
		refs.POST("", admin, h.Create)
		refs.PUT("/:id", admin, h.Update)
		refs.DELETE("/:id", admin, h.Delete)
		refs.POST("/import", admin, h.ImportCSV)
	}
}

func (h *ReferenceHandler) kind(c *gin.Context) model.ReferenceKind {
	return model.ReferenceKind(c.Param("kind"))
}

// List returns the active entries of one lookup table
// @Summary      List reference items
// @Description  Returns active lookup entries for the given kind (workcenters, customers, failure_codes, ...)
// @Tags         references
// @Produce      json
// @Security     BearerAuth
// @Param        kind  path      string  true  "Reference kind"
// @Success      200   {object}  response.Response{data=[]model.ReferenceItem}
// @Failure      404   {object}  response.Response
// @Router       /api/references/{kind} [get]
func (h *ReferenceHandler) List(c *gin.Context) {
	items, err := h.referenceService.List(c.Request.Context(), h.kind(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, items))
}

// Create adds a lookup entry
// @Summary      Create reference item
// @Tags         references
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        kind     path      string                        true  "Reference kind"
// @Param        payload  body      service.ReferenceItemRequest  true  "Reference item"
// @Success      201      {object}  response.Response{data=model.ReferenceItem}
// @Failure      422      {object}  response.Response
// @Router       /api/references/{kind} [post]
func (h *ReferenceHandler) Create(c *gin.Context) {
	var req service.ReferenceItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	item, err := h.referenceService.Create(c.Request.Context(), currentActor(c), h.kind(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, item))
}

// Update renames a lookup entry
// @Summary      Update reference item
// @Tags         references
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        kind     path      string                        true  "Reference kind"
// @Param        id       path      string                        true  "Item ID"
// @Param        payload  body      service.ReferenceItemRequest  true  "Reference item"
// @Success      200      {object}  response.Response{data=model.ReferenceItem}
// @Failure      404      {object}  response.Response
// @Router       /api/references/{kind}/{id} [put]
func (h *ReferenceHandler) Update(c *gin.Context) {
	var req service.ReferenceItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	item, err := h.referenceService.Update(c.Request.Context(), currentActor(c), h.kind(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}

// Delete soft-deletes a lookup entry
// @Summary      Delete reference item
// @Tags         references
// @Produce      json
// @Security     BearerAuth
// @Param        kind  path      string  true  "Reference kind"
// @Param        id    path      string  true  "Item ID"
// @Success      200   {object}  response.Response
// @Failure      404   {object}  response.Response
// @Router       /api/references/{kind}/{id} [delete]
func (h *ReferenceHandler) Delete(c *gin.Context) {
	if err := h.referenceService.Delete(c.Request.Context(), currentActor(c), h.kind(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Reference item deleted"))
}

// ImportCSV bulk-loads lookup entries from an uploaded CSV file
// @Summary      Import reference items from CSV
// @Description  Uploads a CSV file (name[,code] per row); duplicates are skipped
// @Tags         references
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        kind  path      string  true  "Reference kind"
// @Param        file  formData  file    true  "CSV file"
// @Success      200   {object}  response.Response{data=service.ImportResult}
// @Failure      400   {object}  response.Response
// @Router       /api/references/{kind}/import [post]
func (h *ReferenceHandler) ImportCSV(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "CSV file is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Failed to open uploaded file"))
		return
	}
	defer file.Close()

	result, err := h.referenceService.ImportCSV(c.Request.Context(), currentActor(c), h.kind(c), file)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
