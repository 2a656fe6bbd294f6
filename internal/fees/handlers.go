package fees

import (
	"github.com/cardex/market-api/pkg/response"
	"github.com/gin-gonic/gin"
)

// GinHandlers contains HTTP handlers for fee policy administration
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// SetPercentageHandler handles PUT requests to change the trade fee
func (h *GinHandlers) SetPercentageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString("clientID")

		var req struct {
			Percentage int64 `json:"percentage" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.service.SetPercentage(caller, req.Percentage); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"fee_percentage": req.Percentage})
	}
}

// GetPolicyHandler handles GET requests for the current fee policy
func (h *GinHandlers) GetPolicyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := h.service.state()
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{
			"fee_percentage":   state.FeePercentage,
			"min_fee":          state.MinFee,
			"max_fee":          state.MaxFee,
			"flat_service_fee": state.FlatServiceFee,
			"fee_receiver_a":   state.FeeReceiverA,
			"fee_receiver_b":   state.FeeReceiverB,
		})
	}
}
