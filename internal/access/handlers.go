package access

import (
	"github.com/cardex/market-api/pkg/response"
	"github.com/gin-gonic/gin"
)

// GinHandlers contains HTTP handlers for the pause gate and role registry
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// PauseHandler handles POST requests to stop all mutating operations
func (h *GinHandlers) PauseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString("clientID")
		if err := h.service.Pause(caller); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"paused": true})
	}
}

// UnpauseHandler handles POST requests to resume mutating operations
func (h *GinHandlers) UnpauseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString("clientID")
		if err := h.service.Unpause(caller); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"paused": false})
	}
}

type roleRequest struct {
	Role      string `json:"role" binding:"required"`
	Principal string `json:"principal" binding:"required"`
}

// GrantRoleHandler handles POST requests to assign a role
func (h *GinHandlers) GrantRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString("clientID")

		var req roleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.service.GrantRole(caller, req.Role, req.Principal); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"role": req.Role, "principal": req.Principal})
	}
}

// RevokeRoleHandler handles DELETE requests to remove a role
func (h *GinHandlers) RevokeRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString("clientID")

		var req roleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.service.RevokeRole(caller, req.Role, req.Principal); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"role": req.Role, "principal": req.Principal, "revoked": true})
	}
}
