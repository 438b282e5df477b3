package api

import (
	"net/http"

	"github.com/dukerupert/gamersmart/internal/domain"
	"github.com/dukerupert/gamersmart/internal/handler"
)

// OrderHandler serves the order endpoints. Routes require a verified user.
type OrderHandler struct {
	orderService domain.OrderService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService domain.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

type createOrderRequest struct {
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod" validate:"required,oneof=card paypal bank_transfer"`
}

// Create handles POST /order
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "order.create"
	user := domain.MustUser(r.Context())

	var req createOrderRequest
	if err := handler.DecodeAndValidate(r, op, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orderService.CreateOrder(r.Context(), user.ID, domain.CreateOrderParams{
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   domain.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.Created(w, r, "Order created", order)
}

// List handles GET /order?status=&page=&limit=
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	const op = "order.list"
	user := domain.MustUser(r.Context())

	page, err := queryInt(r, "page", op)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", op)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	result, err := h.orderService.ListOrders(r.Context(), user.ID, domain.ListOrdersParams{
		Status: domain.OrderStatus(r.URL.Query().Get("status")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.OK(w, r, "Orders retrieved", result)
}

// Get handles GET /order/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "order.get"
	user := domain.MustUser(r.Context())

	orderID, err := pathID(r, "id", op)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), user.ID, orderID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.OK(w, r, "Order retrieved", order)
}

// Cancel handles PUT /order/{id}
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	const op = "order.cancel"
	user := domain.MustUser(r.Context())

	orderID, err := pathID(r, "id", op)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orderService.CancelOrder(r.Context(), user.ID, orderID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.OK(w, r, "Order cancelled", order)
}
