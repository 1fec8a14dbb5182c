package models

import (
	"time"

	"github.com/google/uuid"
)

// Fulfillment statuses.
const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
	StatusRefunded   = "refunded"
)

// Payment statuses.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
)

// Order is a placed storefront order. Monetary fields are integral toman;
// Total is authoritative and is never re-derived from Items downstream.
type Order struct {
	BaseModel
	OrderNumber     string      `gorm:"uniqueIndex" json:"order_number"`
	UserID          uuid.UUID   `gorm:"type:uuid;index" json:"user_id"`
	User            *User       `json:"user,omitempty"`
	SellerID        uuid.UUID   `gorm:"type:uuid;index" json:"seller_id"`
	Status          string      `gorm:"default:pending" json:"status"`
	PaymentStatus   string      `gorm:"default:pending" json:"payment_status"`
	PaidAt          *time.Time  `json:"paid_at"`
	Subtotal        int64       `json:"subtotal"`
	Discount        int64       `json:"discount"`
	Tax             int64       `json:"tax"`
	ShippingCost    int64       `json:"shipping_cost"`
	Total           int64       `json:"total"`
	CustomerName    string      `json:"customer_name"`
	CustomerPhone   string      `json:"customer_phone"`
	CustomerEmail   string      `json:"customer_email"`
	CustomerAddress string      `json:"customer_address"`
	Notes           string      `json:"notes"`
	CancelReason    string      `json:"cancel_reason"`
	Items           []OrderItem `json:"items,omitempty"`
}

// OrderItem is one product line within an order.
type OrderItem struct {
	BaseModel
	OrderID     uuid.UUID  `gorm:"type:uuid;index" json:"order_id"`
	ProductID   *uuid.UUID `gorm:"type:uuid" json:"product_id"`
	ProductName string     `json:"product_name"`
	Quantity    int        `json:"quantity"`
	UnitPrice   int64      `json:"unit_price"`
	Discount    int64      `json:"discount"`
	LineTotal   int64      `json:"line_total"`
}

// statusFlow lists the legal next statuses for each fulfillment status.
// Forward-only along the delivery path; cancellation is possible until the
// order enters processing, refunds only after delivery or a paid cancellation.
var statusFlow = map[string][]string{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {StatusRefunded},
	StatusCancelled:  nil,
	StatusRefunded:   nil,
}

// ValidStatus reports whether s names a known fulfillment status.
func ValidStatus(s string) bool {
	_, ok := statusFlow[s]
	return ok
}

// CanTransition reports whether an order may move from one fulfillment
// status to another. A paid cancelled order may still be refunded.
func CanTransition(from, to string, paid bool) bool {
	if from == StatusCancelled && to == StatusRefunded {
		return paid
	}
	for _, next := range statusFlow[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Cancellable reports whether a cancellation request is still acceptable.
func (o *Order) Cancellable() bool {
	return o.Status == StatusPending || o.Status == StatusConfirmed
}
