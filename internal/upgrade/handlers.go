package upgrade

import (
	"github.com/cardex/market-api/pkg/response"
	"github.com/gin-gonic/gin"
)

// GinHandlers contains HTTP handlers for upgrade administration
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// SwitchHandler handles POST requests to replace the active engine
func (h *GinHandlers) SwitchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString("clientID")

		var req struct {
			Version string `json:"version" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.service.Switch(caller, req.Version); err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{"active_version": h.service.ActiveVersion()})
	}
}

// VersionHandler handles GET requests for the active engine version
func (h *GinHandlers) VersionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, gin.H{"active_version": h.service.ActiveVersion()})
	}
}
