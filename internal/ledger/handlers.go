package ledger

import (
	"strconv"

	"github.com/cardex/market-api/pkg/response"
	"github.com/gin-gonic/gin"
)

// GinHandlers contains HTTP handlers for the in-process asset registry and
// currency ledger: minting, approvals, deposits and balance queries. These
// stand in for the externally-owned ledgers in a full deployment.
type GinHandlers struct {
	registry *Registry
	currency *Currency
}

func NewGinHandlers(registry *Registry, currency *Currency) *GinHandlers {
	return &GinHandlers{registry: registry, currency: currency}
}

// MintHandler handles POST requests to register a new asset to the caller
func (h *GinHandlers) MintHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString("clientID")

		var req struct {
			AssetID int64 `json:"asset_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.registry.Mint(req.AssetID, caller); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"asset_id": req.AssetID, "owner": caller})
	}
}

// ApproveAssetHandler handles POST requests to grant the market a standing
// transfer authorization for one asset
func (h *GinHandlers) ApproveAssetHandler(operator string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString("clientID")
		assetID, ok := assetIDParam(c)
		if !ok {
			return
		}

		if err := h.registry.Approve(caller, operator, assetID); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"asset_id": assetID, "approved": operator})
	}
}

// GetAssetHandler handles GET requests for asset ownership details
func (h *GinHandlers) GetAssetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		assetID, ok := assetIDParam(c)
		if !ok {
			return
		}

		owner, err := h.registry.OwnerOf(assetID)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"asset_id": assetID, "owner": owner})
	}
}

// DepositHandler handles POST requests to credit trade currency
func (h *GinHandlers) DepositHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString("clientID")

		var req struct {
			Amount int64 `json:"amount" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.currency.Deposit(caller, req.Amount); err != nil {
			response.Handle(c, nil, err)
			return
		}

		balance, err := h.currency.BalanceOf(caller)
		response.Handle(c, gin.H{"balance": balance}, err)
	}
}

// SetAllowanceHandler handles POST requests to authorize market spending
func (h *GinHandlers) SetAllowanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString("clientID")

		var req struct {
			Amount int64 `json:"amount" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.currency.SetAllowance(caller, req.Amount); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"allowance": req.Amount})
	}
}

// DepositServiceCreditsHandler handles POST requests to credit the
// service-fee currency
func (h *GinHandlers) DepositServiceCreditsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString("clientID")

		var req struct {
			Amount int64 `json:"amount" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.currency.DepositServiceCredits(caller, req.Amount); err != nil {
			response.Handle(c, nil, err)
			return
		}

		balance, err := h.currency.ServiceCreditBalance(caller)
		response.Handle(c, gin.H{"service_credits": balance}, err)
	}
}

// WalletHandler handles GET requests for the caller's balances
func (h *GinHandlers) WalletHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString("clientID")

		balance, err := h.currency.BalanceOf(caller)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		credits, err := h.currency.ServiceCreditBalance(caller)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{
			"principal":       caller,
			"balance":         balance,
			"service_credits": credits,
		})
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
