package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dukerupert/gamersmart/internal/domain"
	"github.com/dukerupert/gamersmart/internal/handler"
)

// CartHandler serves the cart endpoints. Every route requires an
// authenticated user.
type CartHandler struct {
	cartService domain.CartService
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService domain.CartService) *CartHandler {
	return &CartHandler{cartService: cartService}
}

type addItemRequest struct {
	GameID   string `json:"gameId" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"min=1,max=1000"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"min=1,max=1000"`
}

// View handles GET /cart
func (h *CartHandler) View(w http.ResponseWriter, r *http.Request) {
	user := domain.MustUser(r.Context())

	detail, err := h.cartService.GetCart(r.Context(), user.ID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.OK(w, r, "Cart retrieved", detail)
}

// Add handles POST /cart/add
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	const op = "cart.add_item"
	user := domain.MustUser(r.Context())

	var req addItemRequest
	if err := handler.DecodeAndValidate(r, op, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	// Validated as a UUID above.
	gameID := uuid.MustParse(req.GameID)

	mutation, err := h.cartService.AddItem(r.Context(), user.ID, gameID, req.Quantity)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if mutation.Inserted {
		handler.Created(w, r, "Item added to cart", mutation)
		return
	}
	handler.OK(w, r, "Cart item quantity updated", mutation)
}

// Update handles PUT /cart/update/{itemId}
func (h *CartHandler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "cart.update_item"
	user := domain.MustUser(r.Context())

	itemID, err := pathID(r, "itemId", op)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	var req updateItemRequest
	if err := handler.DecodeAndValidate(r, op, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	mutation, err := h.cartService.UpdateItemQuantity(r.Context(), user.ID, itemID, req.Quantity)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.OK(w, r, "Cart item updated", mutation)
}

// Remove handles DELETE /cart/remove/{itemId}
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	const op = "cart.remove_item"
	user := domain.MustUser(r.Context())

	itemID, err := pathID(r, "itemId", op)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	mutation, err := h.cartService.RemoveItem(r.Context(), user.ID, itemID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.OK(w, r, "Item removed from cart", mutation)
}

// Clear handles DELETE /cart/clear
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	user := domain.MustUser(r.Context())

	cart, err := h.cartService.Clear(r.Context(), user.ID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.OK(w, r, "Cart cleared", cart)
}
