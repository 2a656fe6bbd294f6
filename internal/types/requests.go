package types

// CreateOfferRequest is the body for listing creation. ServicePayment is
// the amount of service credits offered against the flat service fee.
type CreateOfferRequest struct {
	AssetID         int64  `json:"asset_id"`
	Price           int64  `json:"price" binding:"required"`
	Expiry          int64  `json:"expiry"`
	RestrictedBuyer string `json:"restricted_buyer"`
	ServicePayment  int64  `json:"service_payment"`
}

// ChangeOfferRequest mutates price, expiry and buyer restriction in place.
type ChangeOfferRequest struct {
	Price           int64  `json:"price" binding:"required"`
	Expiry          int64  `json:"expiry"`
	RestrictedBuyer string `json:"restricted_buyer"`
	ServicePayment  int64  `json:"service_payment"`
}

// PurchaseRequest carries the exact total the buyer is sending.
type PurchaseRequest struct {
	AmountSent     int64 `json:"amount_sent" binding:"required"`
	ServicePayment int64 `json:"service_payment"`
}

// ServiceFeeRequest covers mutating operations whose only payment is the
// flat service fee (retire, relist, return).
type ServiceFeeRequest struct {
	ServicePayment int64 `json:"service_payment"`
}

// QuoteResponse is the exact amount a buyer must send for a listing.
type QuoteResponse struct {
	AssetID   int64 `json:"asset_id"`
	Price     int64 `json:"price"`
	FeeAmount int64 `json:"fee_amount"`
	Total     int64 `json:"total"`
}
