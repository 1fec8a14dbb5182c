package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/golestan/internal/invoice"
	"github.com/example/golestan/internal/models"
)

// InvoiceHandler serves rendered order invoices.
type InvoiceHandler struct {
	orders    *OrderHandler
	formatter *invoice.Formatter
}

// NewInvoiceHandler constructs InvoiceHandler.
func NewInvoiceHandler(db *gorm.DB, formatter *invoice.Formatter) *InvoiceHandler {
	return &InvoiceHandler{orders: NewOrderHandler(db), formatter: formatter}
}

// GetInvoice renders the invoice PDF for an order the authenticated user can
// see. disposition=inline serves the on-screen preview; disposition=attachment
// (the default) triggers a download under the deterministic filename. The two
// paths share the same rendering and neither depends on the other.
func (h *InvoiceHandler) GetInvoice(c *fiber.Ctx) error {
	order, err := h.orders.loadVisibleOrder(c)
	if err != nil {
		return err
	}

	vm, err := h.formatter.FromOrder(toInvoiceOrder(order))
	if err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}

	doc, err := h.formatter.Render(vm)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	if c.Query("disposition") == "inline" {
		c.Set(fiber.HeaderContentDisposition, "inline")
	} else {
		c.Set(fiber.HeaderContentDisposition,
			fmt.Sprintf("attachment; filename=%q", invoice.Filename(vm)))
	}

	return c.Send(doc)
}

// toInvoiceOrder projects a stored order onto the formatter's input shape.
func toInvoiceOrder(order *models.Order) invoice.Order {
	items := make([]invoice.Item, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, invoice.Item{
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Discount:    item.Discount,
			LineTotal:   item.LineTotal,
		})
	}

	return invoice.Order{
		OrderNumber:     order.OrderNumber,
		Status:          order.Status,
		PaymentStatus:   order.PaymentStatus,
		PaidAt:          order.PaidAt,
		Subtotal:        order.Subtotal,
		Discount:        order.Discount,
		Tax:             order.Tax,
		ShippingCost:    order.ShippingCost,
		Total:           order.Total,
		CustomerName:    order.CustomerName,
		CustomerPhone:   order.CustomerPhone,
		CustomerEmail:   order.CustomerEmail,
		CustomerAddress: order.CustomerAddress,
		Notes:           order.Notes,
		Items:           items,
		CreatedAt:       order.CreatedAt,
	}
}
