package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the persisted calendar date format (month/day/year).
const DateLayout = "01/02/2006"

const (
	GroupUnknown = "UNKNOWN"

	OrderStatusOrdered   = "Ordered"
	OrderStatusReceived  = "Received"
	OrderStatusCancelled = "Cancelled"

	PaymentPaid    = "Paid"
	PaymentPartial = "Partial"
	PaymentUnpaid  = "Unpaid"

	SaleCompleted = "Completed"
	SalePending   = "Pending"

	DefaultDeliveryDate = "N/A"
)

// Identity is the natural key of an inventory line.
type Identity struct {
	Brand string `json:"brand" validate:"required"`
	Type  string `json:"type" validate:"required"`
	Color string `json:"color" validate:"required"`
	Size  string `json:"size" validate:"required"`
}

func (i Identity) Normalize() Identity {
	return Identity{
		Brand: NormalizeKey(i.Brand),
		Type:  NormalizeKey(i.Type),
		Color: NormalizeKey(i.Color),
		Size:  NormalizeKey(i.Size),
	}
}

func (i Identity) String() string {
	return i.Brand + " " + i.Type + " " + i.Color + " " + i.Size
}

func NormalizeKey(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

type InventoryLine struct {
	Brand    string          `json:"brand"`
	Type     string          `json:"type"`
	Color    string          `json:"color"`
	Size     string          `json:"size"`
	Quantity int             `json:"quantity"`
	WACCost  decimal.Decimal `json:"wac_cost"`
	WACGroup string          `json:"wac_group"`
}

func (l InventoryLine) Identity() Identity {
	return Identity{Brand: l.Brand, Type: l.Type, Color: l.Color, Size: l.Size}
}

// Value is quantity times the current average cost.
func (l InventoryLine) Value() decimal.Decimal {
	return l.WACCost.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type PurchaseOrderLine struct {
	OrderID       int             `json:"order_id"`
	Date          string          `json:"date"`
	DeliveryDate  string          `json:"delivery_date"`
	WACGroup      string          `json:"wac_group"`
	Supplier      string          `json:"supplier"`
	TotalPieces   int             `json:"total_pieces"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	PaymentStatus string          `json:"payment_status"`
	Status        string          `json:"status"`
}

// Open reports whether the line still counts as stock in transit.
func (l PurchaseOrderLine) Open() bool {
	return l.Status != OrderStatusReceived && l.Status != OrderStatusCancelled
}

type SaleRecord struct {
	ID        int             `json:"id"`
	Date      string          `json:"date"`
	Brand     string          `json:"brand"`
	Type      string          `json:"type"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	SalePrice decimal.Decimal `json:"sale_price"`
	Profit    decimal.Decimal `json:"profit"`
	WACGroup  string          `json:"wac_group"`
	Status    string          `json:"status"`
}

func (s SaleRecord) Identity() Identity {
	return Identity{Brand: s.Brand, Type: s.Type, Color: s.Color, Size: s.Size}
}

func (s SaleRecord) Completed() bool {
	return s.Status == "" || s.Status == SaleCompleted
}

// CostBasis is the total cost recognised when the sale was booked.
func (s SaleRecord) CostBasis() decimal.Decimal {
	return s.SalePrice.Sub(s.Profit)
}

type FinancialLedger struct {
	CashOnHand          decimal.Decimal `json:"cash_on_hand"`
	OutstandingPayables decimal.Decimal `json:"outstanding_payables"`
}

const (
	LedgerOpeningBalance    = "opening_balance"
	LedgerOrderPayment      = "order_payment"
	LedgerPaymentAdjustment = "payment_adjustment"
	LedgerOrderRefund       = "order_refund"
	LedgerSale              = "sale"
	LedgerSalePriceEdit     = "sale_price_edit"
	LedgerSaleCompleted     = "sale_completed"
	LedgerSaleReturn        = "sale_return"
	LedgerManualAdjustment  = "manual_adjustment"
)

// LedgerEvent is one signed movement of cash. The stored cash figure is the
// running sum of all events.
type LedgerEvent struct {
	ID           string          `json:"id"`
	At           time.Time       `json:"at"`
	Kind         string          `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	Reference    string          `json:"reference"`
	Note         string          `json:"note,omitempty"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
}

type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate accepts the persisted layout and ISO dates. A blank or
// unparseable value reports false.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{DateLayout, "2006-01-02", "1/2/2006"} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
