package market

import (
	"strconv"

	"github.com/cardex/market-api/internal/types"
	"github.com/cardex/market-api/pkg/response"
	"github.com/gin-gonic/gin"
)

// GinHandlers contains HTTP handlers for the market surface. They dispatch
// through an EngineSource so an implementation swap takes effect on the
// next request without restarting the server.
type GinHandlers struct {
	source EngineSource
}

func NewGinHandlers(source EngineSource) *GinHandlers {
	return &GinHandlers{source: source}
}

// CreateOfferHandler handles POST requests to list an asset for sale
func (h *GinHandlers) CreateOfferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString("clientID")
		if caller == "" {
			response.Unauthorized(c, "Missing caller identity")
			return
		}

		var req types.CreateOfferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		listing, err := h.source.Current().CreateOffer(caller, req)
		response.Handle(c, listing, err)
	}
}

// ChangeOfferHandler handles PUT requests to mutate a listing in place
func (h *GinHandlers) ChangeOfferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString("clientID")
		assetID, ok := assetIDParam(c)
		if !ok {
			return
		}

		var req types.ChangeOfferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		listing, err := h.source.Current().ChangeOffer(caller, assetID, req)
		response.Handle(c, listing, err)
	}
}

// RetireOfferHandler handles DELETE requests to soft-retire a listing
func (h *GinHandlers) RetireOfferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString("clientID")
		assetID, ok := assetIDParam(c)
		if !ok {
			return
		}

		var req types.ServiceFeeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		err := h.source.Current().RetireOffer(caller, assetID, req.ServicePayment)
		response.Handle(c, gin.H{"asset_id": assetID, "retired": err == nil}, err)
	}
}

// ReOfferHandler handles POST requests to restore a retired listing
func (h *GinHandlers) ReOfferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString("clientID")
		assetID, ok := assetIDParam(c)
		if !ok {
			return
		}

		var req types.ServiceFeeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		err := h.source.Current().ReOffer(caller, assetID, req.ServicePayment)
		response.Handle(c, gin.H{"asset_id": assetID, "active": err == nil}, err)
	}
}

// SellOfferHandler handles POST requests to purchase a listing
func (h *GinHandlers) SellOfferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString("clientID")
		assetID, ok := assetIDParam(c)
		if !ok {
			return
		}

		var req types.PurchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		listing, err := h.source.Current().SellOffer(caller, assetID, req.AmountSent, req.ServicePayment)
		response.Handle(c, listing, err)
	}
}

// ReturnCardHandler handles POST requests for the administrative return
func (h *GinHandlers) ReturnCardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString("clientID")
		assetID, ok := assetIDParam(c)
		if !ok {
			return
		}

		var req types.ServiceFeeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		err := h.source.Current().ReturnCard(caller, assetID, req.ServicePayment)
		response.Handle(c, gin.H{"asset_id": assetID, "returned": err == nil}, err)
	}
}

// ListActiveHandler handles GET requests for the active-listing index
func (h *GinHandlers) ListActiveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, err := h.source.Current().ListActive()
		response.Handle(c, gin.H{"asset_ids": ids}, err)
	}
}

// ListAllHandler handles GET requests for every listing ever created
func (h *GinHandlers) ListAllHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		all, err := h.source.Current().ListAllDetailed()
		response.Handle(c, all, err)
	}
}

// GetListingHandler handles GET requests for a single listing
func (h *GinHandlers) GetListingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		assetID, ok := assetIDParam(c)
		if !ok {
			return
		}

		listing, err := h.source.Current().GetListing(assetID)
		response.Handle(c, listing, err)
	}
}

// QuoteHandler handles GET requests for the exact purchase total
func (h *GinHandlers) QuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		assetID, ok := assetIDParam(c)
		if !ok {
			return
		}

		quote, err := h.source.Current().Quote(assetID)
		response.Handle(c, quote, err)
	}
}

// EventsHandler handles GET requests for the market event feed
func (h *GinHandlers) EventsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 100
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				response.BadRequest(c, "Invalid limit")
				return
			}
			limit = parsed
		}

		events, err := h.source.Current().Events(limit)
		response.Handle(c, events, err)
	}
}

func assetIDParam(c *gin.Context) (int64, bool) {
	assetID, err := strconv.ParseInt(c.Param("asset_id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid asset ID")
		return 0, false
	}
	return assetID, true
}
