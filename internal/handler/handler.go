package handler

import (
	"errors"
	"net/http"

	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

// currentActor reads the acting user's id and role injected by the auth
// middleware.
func currentActor(c *gin.Context) service.Actor {
	id, _ := c.Get("userID")
	role, _ := c.Get("userRole")
	idStr, _ := id.(string)
	roleStr, _ := role.(string)
	return service.Actor{ID: idStr, Role: model.Role(roleStr)}
}

// errorStatus maps the service error taxonomy onto HTTP statuses.
func errorStatus(err error) int {
	var validation *service.ValidationError
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := errorStatus(err)
	c.JSON(status, response.Error(status, err.Error()))
}
