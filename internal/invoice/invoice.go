// Package invoice turns order records into laid-out, printable invoice
// documents. Mapping is pure; rendering goes through the DocumentRenderer
// interface so the layout can be tested without a PDF engine.
package invoice

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// DueAfter is how long after issue an invoice falls due.
const DueAfter = 7 * 24 * time.Hour

var (
	// ErrBadIssueDate is returned when the order carries no usable
	// creation timestamp. The formatter refuses to render rather than
	// print a bogus date.
	ErrBadIssueDate = errors.New("invoice: order has no valid creation timestamp")

	// ErrMissingPaidAt is returned when an order claims to be paid but
	// carries no payment timestamp.
	ErrMissingPaidAt = errors.New("invoice: paid order has no payment timestamp")
)

// Item is one product line within an order. Amounts are integral toman.
type Item struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	Discount    int64  `json:"discount"`
	LineTotal   int64  `json:"line_total"`
}

// Order is the raw order record as delivered by the orders API. Totals are
// authoritative; this package never re-derives them from Items.
type Order struct {
	OrderNumber     string     `json:"order_number"`
	Status          string     `json:"status"`
	PaymentStatus   string     `json:"payment_status"`
	PaidAt          *time.Time `json:"paid_at"`
	Subtotal        int64      `json:"subtotal"`
	Discount        int64      `json:"discount"`
	Tax             int64      `json:"tax"`
	ShippingCost    int64      `json:"shipping_cost"`
	Total           int64      `json:"total"`
	CustomerName    string     `json:"customer_name"`
	CustomerPhone   string     `json:"customer_phone"`
	CustomerEmail   string     `json:"customer_email"`
	CustomerAddress string     `json:"customer_address"`
	Notes           string     `json:"notes"`
	Items           []Item     `json:"items"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Party identifies one side of the invoice.
type Party struct {
	Name    string
	Phone   string
	Email   string
	Address string
	TaxID   string
}

// ViewModel is the display-ready invoice shape.
type ViewModel struct {
	InvoiceNumber string
	IssueDate     time.Time
	DueDate       time.Time
	Subtotal      int64
	Discount      int64
	Tax           int64
	ShippingCost  int64
	Total         int64
	Customer      Party
	Seller        Party
	Items         []Item
	Notes         string
	IsPaid        bool
	PaidAt        *time.Time
}

// DocumentRenderer lays a view model out as a finished document.
type DocumentRenderer interface {
	Render(vm ViewModel) ([]byte, error)
}

// Formatter maps orders to view models and drives a DocumentRenderer.
type Formatter struct {
	renderer DocumentRenderer
	seller   Party
}

// NewFormatter constructs a Formatter issuing invoices on behalf of seller.
func NewFormatter(renderer DocumentRenderer, seller Party) *Formatter {
	return &Formatter{renderer: renderer, seller: seller}
}

// FromOrder maps an order record to an invoice view model. Totals are taken
// from the order verbatim, even when Items is empty.
func (f *Formatter) FromOrder(order Order) (ViewModel, error) {
	if order.CreatedAt.IsZero() {
		return ViewModel{}, ErrBadIssueDate
	}

	isPaid := order.PaymentStatus == "paid"
	var paidAt *time.Time
	if isPaid {
		if order.PaidAt == nil {
			return ViewModel{}, ErrMissingPaidAt
		}
		paidAt = order.PaidAt
	}

	return ViewModel{
		InvoiceNumber: invoiceNumber(order.OrderNumber),
		IssueDate:     order.CreatedAt,
		DueDate:       order.CreatedAt.Add(DueAfter),
		Subtotal:      order.Subtotal,
		Discount:      order.Discount,
		Tax:           order.Tax,
		ShippingCost:  order.ShippingCost,
		Total:         order.Total,
		Customer: Party{
			Name:    order.CustomerName,
			Phone:   order.CustomerPhone,
			Email:   order.CustomerEmail,
			Address: order.CustomerAddress,
		},
		Seller: f.seller,
		Items:  order.Items,
		Notes:  order.Notes,
		IsPaid: isPaid,
		PaidAt: paidAt,
	}, nil
}

// Render produces the finished document.
func (f *Formatter) Render(vm ViewModel) ([]byte, error) {
	return f.renderer.Render(vm)
}

// Filename is the deterministic download name for an invoice.
func Filename(vm ViewModel) string {
	return fmt.Sprintf("Invoice-%s.pdf", vm.InvoiceNumber)
}

// Download renders the invoice into w and returns the filename it should be
// saved under. It does not depend on any preview having been opened.
func (f *Formatter) Download(vm ViewModel, w io.Writer) (string, error) {
	doc, err := f.renderer.Render(vm)
	if err != nil {
		return "", err
	}
	if _, err := w.Write(doc); err != nil {
		return "", err
	}
	return Filename(vm), nil
}

// invoiceNumber derives the invoice number from the order number, keeping
// the year/sequence tail: ORD-2025-000123 becomes INV-2025-000123.
func invoiceNumber(orderNumber string) string {
	if rest, ok := strings.CutPrefix(orderNumber, "ORD-"); ok {
		return "INV-" + rest
	}
	return "INV-" + orderNumber
}
