package handler

import (
	"net/http"
	"strconv"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type DMTHandler struct {
	dmtService service.DMTService
}

func NewDMTHandler(dmtService service.DMTService) *DMTHandler {
	return &DMTHandler{dmtService: dmtService}
}

func (h *DMTHandler) RegisterRoutes(router *gin.RouterGroup) {
	dmts := router.Group("/api/dmts")
	dmts.Use(middleware.RequireAuth())
	{
		dmts.GET("", h.ListDMTs)
		dmts.POST("", h.CreateDMT)
		dmts.GET("/export/:format", h.ExportDMTs)
		dmts.GET("/:id", h.GetDMT)
		dmts.GET("/:id/permissions", h.GetPermissions)
		dmts.PUT("/:id", h.UpdateDMT)
		dmts.DELETE("/:id", h.DeleteDMT)
		dmts.POST("/:id/advance", h.AdvanceWorkflow)
		dmts.POST("/:id/close", h.CloseDMT)
		dmts.POST("/:id/reopen", h.ReopenDMT)
	}
}

// ListDMTs returns DMT records visible to the acting user
// @Summary      List DMT records
// @Description  Returns paginated DMT records, filtered by role visibility and optional search
// @Tags         dmts
// @Produce      json
// @Security     BearerAuth
// @Param        page    query  int     false  "Page number (default 1)"
// @Param        limit   query  int     false  "Items per page (default 20)"
// @Param        search  query  string  false  "Search report number, part number, shop order, or status"
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/dmts [get]
func (h *DMTHandler) ListDMTs(c *gin.Context) {
	params := pagination.Parse(c)

	records, total, err := h.dmtService.ListDMTs(c.Request.Context(), currentActor(c), service.ListDMTRequest{
		Search: c.Query("search"),
		Page:   params.Page,
		Limit:  params.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"records": records,
		"total":   total,
		"page":    params.Page,
		"limit":   params.Limit,
	}))
}

// CreateDMT creates a new DMT record
// @Summary      Create DMT record
// @Description  Creates a new record in draft stage with a freshly minted report number
// @Tags         dmts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateDMTRequest  true  "DMT payload"
// @Success      201      {object}  response.Response{data=model.DMTRecord}
// @Failure      422      {object}  response.Response
// @Router       /api/dmts [post]
func (h *DMTHandler) CreateDMT(c *gin.Context) {
	var req service.CreateDMTRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	record, err := h.dmtService.CreateDMT(c.Request.Context(), currentActor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, record))
}

// GetDMT fetches a single DMT record
// @Summary      Get DMT record
// @Tags         dmts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Record ID"
// @Success      200  {object}  response.Response{data=model.DMTRecord}
// @Failure      404  {object}  response.Response
// @Router       /api/dmts/{id} [get]
func (h *DMTHandler) GetDMT(c *gin.Context) {
	record, err := h.dmtService.GetDMT(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, record))
}

// GetPermissions returns the acting user's permission set for a record
// @Summary      Get permissions for a record
// @Description  Resolves the per-section edit permissions for the acting user against the record's current state
// @Tags         dmts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Record ID"
// @Success      200  {object}  response.Response{data=workflow.PermissionSet}
// @Failure      404  {object}  response.Response
// @Router       /api/dmts/{id}/permissions [get]
func (h *DMTHandler) GetPermissions(c *gin.Context) {
	perms, err := h.dmtService.Permissions(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, perms))
}

// UpdateDMT updates an existing DMT record
// @Summary      Update DMT record
// @Description  Persists the submitted fields; non-session saves require the full set of business fields. Omitting assigned_to keeps the current assignee, an explicit empty value clears it
// @Tags         dmts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                    true  "Record ID"
// @Param        payload  body      service.UpdateDMTRequest  true  "DMT payload"
// @Success      200      {object}  response.Response{data=model.DMTRecord}
// @Failure      403      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/dmts/{id} [put]
func (h *DMTHandler) UpdateDMT(c *gin.Context) {
	var req service.UpdateDMTRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	record, err := h.dmtService.UpdateDMT(c.Request.Context(), currentActor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, record))
}

// DeleteDMT soft-deletes a DMT record
// @Summary      Delete DMT record
// @Tags         dmts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Record ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Router       /api/dmts/{id} [delete]
func (h *DMTHandler) DeleteDMT(c *gin.Context) {
	if err := h.dmtService.DeleteDMT(c.Request.Context(), currentActor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "DMT record deleted"))
}

// AdvanceWorkflow moves a record to the next workflow stage
// @Summary      Advance workflow
// @Description  Moves the record one stage forward along the approval pipeline and stamps the stage completion time
// @Tags         dmts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Record ID"
// @Success      200  {object}  response.Response{data=model.DMTRecord}
// @Failure      409  {object}  response.Response
// @Router       /api/dmts/{id}/advance [post]
func (h *DMTHandler) AdvanceWorkflow(c *gin.Context) {
	record, err := h.dmtService.AdvanceWorkflow(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, record))
}

// CloseDMT closes a record
// @Summary      Close DMT record
// @Description  Freezes the record for non-override roles; requires Engineer, Inspector, or Admin
// @Tags         dmts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Record ID"
// @Success      200  {object}  response.Response{data=model.DMTRecord}
// @Failure      403  {object}  response.Response
// @Router       /api/dmts/{id}/close [post]
func (h *DMTHandler) CloseDMT(c *gin.Context) {
	record, err := h.dmtService.CloseDMT(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, record))
}

// ReopenDMT reopens a closed record
// @Summary      Reopen DMT record
// @Description  Reopens a closed record without touching its workflow stage; Admin or Inspector only
// @Tags         dmts
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Record ID"
// @Success      200  {object}  response.Response{data=model.DMTRecord}
// @Failure      403  {object}  response.Response
// @Router       /api/dmts/{id}/reopen [post]
func (h *DMTHandler) ReopenDMT(c *gin.Context) {
	record, err := h.dmtService.ReopenDMT(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, record))
}

// ExportDMTs exports visible records as JSON or CSV
// @Summary      Export DMT records
// @Tags         dmts
// @Produce      json
// @Security     BearerAuth
// @Param        format  path   string  true   "json or csv"
// @Param        days    query  int     false  "Only records created in the last N days"
// @Success      200  {file}  file
// @Router       /api/dmts/export/{format} [get]
func (h *DMTHandler) ExportDMTs(c *gin.Context) {
	format := c.Param("format")
	if format != "json" && format != "csv" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "format must be json or csv"))
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", "0"))

	records, err := h.dmtService.ExportDMTs(c.Request.Context(), currentActor(c), days)
	if err != nil {
		respondError(c, err)
		return
	}

	var export *service.Export
	if format == "csv" {
		export, err = service.ExportCSV(records)
	} else {
		export, err = service.ExportJSON(records)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+export.Filename)
	c.Data(http.StatusOK, export.ContentType, export.Data)
}
