package handler

import (
	"errors"
	"net/http"
	"strconv"

	"pos-backend/internal/cart"
	"pos-backend/internal/config"
	"pos-backend/internal/middleware"
	"pos-backend/internal/repository"

	"github.com/labstack/echo/v4"
)

type AddCartRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity int64 `json:"quantity"`
}

// 丸めが起きたときはnoticeに理由が入る
type CartResponse struct {
	Items  []cart.Item  `json:"items"`
	Total  int64        `json:"total"`
	Notice *cart.Notice `json:"notice,omitempty"`
}

// /cartのHTTP
type CartHandler struct {
	rec *cart.Reconciler
}

// DI
func NewCartHandler(rec *cart.Reconciler) *CartHandler {
	return &CartHandler{rec: rec}
}

// /cart, /cart/{product_id} を登録
func (h *CartHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/cart")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))

	g.GET("", h.getCart)
	g.POST("", h.addToCart)
	g.PATCH("/:product_id", h.patchItem)
	g.DELETE("/:product_id", h.deleteItem)
}

func (h *CartHandler) getCart(c echo.Context) error {
	return c.JSON(http.StatusOK, CartResponse{
		Items: h.rec.Items(),
		Total: h.rec.TotalQuantity(),
	})
}

func (h *CartHandler) addToCart(c echo.Context) error {
	var req AddCartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	notice, err := h.rec.Add(c.Request().Context(), req.ProductID, req.Quantity)
	if err != nil {
		return writeCartError(c, err)
	}

	return c.JSON(http.StatusOK, cartResponseWith(h.rec, notice))
}

func (h *CartHandler) patchItem(c echo.Context) error {
	productID, err := strconv.ParseInt(c.Param("product_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product_id"})
	}

	var req UpdateCartItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	notice, err := h.rec.UpdateQuantity(c.Request().Context(), productID, req.Quantity)
	if err != nil {
		return writeCartError(c, err)
	}

	return c.JSON(http.StatusOK, cartResponseWith(h.rec, notice))
}

func (h *CartHandler) deleteItem(c echo.Context) error {
	productID, err := strconv.ParseInt(c.Param("product_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product_id"})
	}

	if err := h.rec.Remove(productID); err != nil {
		return writeCartError(c, err)
	}

	return c.JSON(http.StatusOK, cartResponseWith(h.rec, cart.Notice{}))
}

func cartResponseWith(rec *cart.Reconciler, notice cart.Notice) CartResponse {
	resp := CartResponse{
		Items: rec.Items(),
		Total: rec.TotalQuantity(),
	}
	if notice.Code != cart.NoticeNone {
		resp.Notice = &notice
	}
	return resp
}

func writeCartError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, cart.ErrNotAvailable):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "product not available"})
	case errors.Is(err, cart.ErrCartFull):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, cart.ErrItemNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	}
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
