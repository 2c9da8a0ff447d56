package domain

import "github.com/shopspring/decimal"

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type StockItem struct {
	Identity
	Quantity int `json:"quantity" validate:"gt=0"`
}

type ReceiveStockRequest struct {
	Items    []StockItem     `json:"items" validate:"required,min=1,dive"`
	UnitCost decimal.Decimal `json:"unit_cost"`
	Group    string          `json:"group"`
}

type ReceiveStockResponse struct {
	Recomputed []string        `json:"recomputed"`
	Lines      []InventoryLine `json:"lines"`
}

type SetQuantityRequest struct {
	Identity
	Quantity int `json:"quantity" validate:"gte=0"`
}

type PurgeRequest struct {
	ZeroQuantity bool `json:"zero_quantity"`
}

type PurgeResponse struct {
	Removed int `json:"removed"`
}

type GroupCostRequest struct {
	Cost decimal.Decimal `json:"cost"`
}

type GroupCostResponse struct {
	Group   string          `json:"group"`
	Cost    decimal.Decimal `json:"cost"`
	Updated int             `json:"updated"`
	Changed bool            `json:"changed"`
}

type OrderLineInput struct {
	Brand     string          `json:"brand"`
	Type      string          `json:"type"`
	Group     string          `json:"group"`
	Pieces    int             `json:"pieces" validate:"gte=0"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

type CreateOrderRequest struct {
	Supplier     string           `json:"supplier" validate:"required"`
	Date         string           `json:"date"`
	DeliveryDate string           `json:"delivery_date"`
	Lines        []OrderLineInput `json:"lines" validate:"required,min=1,dive"`
	AmountPaid   decimal.Decimal  `json:"amount_paid"`
}

type PriceWarning struct {
	Group       string          `json:"group"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	AverageCost decimal.Decimal `json:"average_cost"`
}

type CreateOrderResponse struct {
	Order    OrderSummary   `json:"order"`
	Warnings []PriceWarning `json:"warnings"`
}

type OrderSummary struct {
	OrderID       int                 `json:"order_id"`
	Date          string              `json:"date"`
	DeliveryDate  string              `json:"delivery_date"`
	Supplier      string              `json:"supplier"`
	Lines         []PurchaseOrderLine `json:"lines"`
	TotalPieces   int                 `json:"total_pieces"`
	TotalCost     decimal.Decimal     `json:"total_cost"`
	AmountPaid    decimal.Decimal     `json:"amount_paid"`
	BalanceDue    decimal.Decimal     `json:"balance_due"`
	PaymentStatus string              `json:"payment_status"`
	Status        string              `json:"status"`
}

type ReceiveLineRequest struct {
	Items []StockItem `json:"items" validate:"required,min=1,dive"`
	Close bool        `json:"close"`
}

type ReceiveLineResponse struct {
	Line       PurchaseOrderLine `json:"line"`
	Recomputed []string          `json:"recomputed"`
	Lines      []InventoryLine   `json:"lines"`
}

type AdjustPaymentRequest struct {
	AmountPaid decimal.Decimal `json:"amount_paid"`
}

type SaleItem struct {
	Identity
	Quantity int             `json:"quantity" validate:"gt=0"`
	Price    decimal.Decimal `json:"price"`
}

type RecordSaleRequest struct {
	Items  []SaleItem `json:"items" validate:"required,min=1,dive"`
	Status string     `json:"status" validate:"omitempty,oneof=Completed Pending"`
}

type RecordSaleResponse struct {
	Sales []SaleRecord    `json:"sales"`
	Total decimal.Decimal `json:"total"`
	Cash  decimal.Decimal `json:"cash_on_hand"`
}

type EditSalePriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

type DeleteOrderResponse struct {
	OrderID      int             `json:"order_id"`
	LinesRemoved int             `json:"lines_removed"`
	Refunded     decimal.Decimal `json:"refunded"`
}
