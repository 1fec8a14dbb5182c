package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/golestan/internal/middleware"
	"github.com/example/golestan/internal/models"
	"github.com/example/golestan/internal/utils"
)

// sellerOrderSort whitelists sortBy values for the seller order listing.
var sellerOrderSort = map[string]string{
	"created_at": "created_at",
	"total":      "total",
	"status":     "status",
}

// OrderHandler manages order endpoints.
type OrderHandler struct {
	db *gorm.DB
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB) *OrderHandler {
	return &OrderHandler{db: db}
}

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	SellerID        string             `json:"seller_id"`
	Items           []orderItemRequest `json:"items"`
	ShippingCost    int64              `json:"shipping_cost"`
	CustomerName    string             `json:"customer_name"`
	CustomerEmail   string             `json:"customer_email"`
	CustomerAddress string             `json:"customer_address"`
	Notes           string             `json:"notes"`
}

// taxPermille is the VAT rate applied to the discounted subtotal, in permille.
const taxPermille = 90

// CreateOrder places an order for the authenticated buyer. Line prices are
// read from the catalog, never from the request.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if len(req.Items) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "order has no items")
	}

	sellerID, err := uuid.Parse(req.SellerID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid seller_id")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		return err
	}

	order := models.Order{
		UserID:          userID,
		SellerID:        sellerID,
		Status:          models.StatusPending,
		PaymentStatus:   models.PaymentPending,
		ShippingCost:    req.ShippingCost,
		CustomerName:    req.CustomerName,
		CustomerPhone:   user.Phone,
		CustomerEmail:   req.CustomerEmail,
		CustomerAddress: req.CustomerAddress,
		Notes:           req.Notes,
		OrderNumber:     generateOrderNumber(),
	}

	if order.CustomerName == "" {
		order.CustomerName = user.DisplayName
	}

	var subtotal, discount int64
	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid product_id")
		}
		if item.Quantity <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid quantity")
		}

		var product models.Product
		if err := h.db.First(&product, "id = ? AND seller_id = ? AND is_active = true", productID, sellerID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fiber.NewError(fiber.StatusBadRequest, "product not available")
			}
			return err
		}

		qty := int64(item.Quantity)
		lineDiscount := product.Discount * qty
		lineTotal := product.Price*qty - lineDiscount

		order.Items = append(order.Items, models.OrderItem{
			ProductID:   &product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   product.Price,
			Discount:    lineDiscount,
			LineTotal:   lineTotal,
		})

		subtotal += product.Price * qty
		discount += lineDiscount
	}

	order.Subtotal = subtotal
	order.Discount = discount
	order.Tax = (subtotal - discount) * taxPermille / 1000
	order.Total = subtotal - discount + order.Tax + order.ShippingCost

	if err := h.db.Create(&order).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    order,
	})
}

// ListSellerOrders returns the authenticated seller's orders, paginated and
// sorted by a whitelisted column.
func (h *OrderHandler) ListSellerOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c, sellerOrderSort, "created_at")
	query := h.db.Model(&models.Order{}).Where("seller_id = ?", userID)

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order(pg.OrderClause()).
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       orders,
		"total":      total,
		"totalPages": pg.TotalPages(total),
	})
}

// ListOrders returns orders placed by the authenticated buyer.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c, sellerOrderSort, "created_at")
	query := h.db.Model(&models.Order{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order(pg.OrderClause()).
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       orders,
		"total":      total,
		"totalPages": pg.TotalPages(total),
	})
}

// GetOrder returns a single order visible to the authenticated user.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.loadVisibleOrder(c)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus moves an order along the fulfillment flow. Only the owning
// seller may change status, and only along legal transitions.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if !models.ValidStatus(req.Status) {
		return fiber.NewError(fiber.StatusBadRequest, "unknown status")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var order models.Order
	if err := h.db.Preload("Items").
		First(&order, "id = ? AND seller_id = ?", id, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	paid := order.PaymentStatus == models.PaymentPaid
	if !models.CanTransition(order.Status, req.Status, paid) {
		return fiber.NewError(fiber.StatusConflict,
			fmt.Sprintf("cannot move order from %s to %s", order.Status, req.Status))
	}

	order.Status = req.Status
	if err := h.db.Model(&order).Update("status", req.Status).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

// CancelOrder cancels a pending or confirmed order. Both the buyer who
// placed it and the owning seller may cancel.
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	order, err := h.loadVisibleOrder(c)
	if err != nil {
		return err
	}

	var req cancelOrderRequest
	// Reason is optional; an empty body is fine.
	_ = c.BodyParser(&req)

	if !order.Cancellable() {
		return fiber.NewError(fiber.StatusConflict, "order can no longer be cancelled")
	}

	updates := map[string]any{
		"status":        models.StatusCancelled,
		"cancel_reason": req.Reason,
	}
	if err := h.db.Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "order cancelled",
	})
}

// loadVisibleOrder fetches the order in :id if the authenticated user is its
// buyer or its seller.
func (h *OrderHandler) loadVisibleOrder(c *fiber.Ctx) (*models.Order, error) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var order models.Order
	if err := h.db.Preload("Items").
		First(&order, "id = ? AND (user_id = ? OR seller_id = ?)", id, userID, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return nil, err
	}

	return &order, nil
}

func generateOrderNumber() string {
	return fmt.Sprintf("ORD-%d-%09d", time.Now().Year(), time.Now().UnixNano()%1000000000)
}
