package handler

import (
	"net/http"

	"marketplace-order-api/internal/apperr"
	"marketplace-order-api/internal/dto"
	"marketplace-order-api/internal/middleware"
	"marketplace-order-api/internal/model"
	"marketplace-order-api/internal/service"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	orderService service.OrderService
}

func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

func (h *OrderHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	claims := middleware.ClaimsFrom(c)

	var req dto.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validationf("invalid req body")
	}

	idempotencyKey := c.Request().Header.Get("Idempotency-Key")

	order, created, err := h.orderService.CreateOrder(ctx, claims.UserID, &req, idempotencyKey)
	if err != nil {
		return err
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}

	return c.JSON(status, toOrderResponse(order))
}

func (h *OrderHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	claims := middleware.ClaimsFrom(c)

	order, err := h.orderService.GetOrder(ctx, claims, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) ListMine(c echo.Context) error {
	ctx := c.Request().Context()
	claims := middleware.ClaimsFrom(c)

	orders, err := h.orderService.ListOrders(ctx, claims.UserID)
	if err != nil {
		return err
	}

	resp := make([]*dto.OrderResponse, len(orders))
	for i, order := range orders {
		resp[i] = toOrderResponse(order)
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *OrderHandler) ConfirmPayment(c echo.Context) error {
	ctx := c.Request().Context()

	order, err := h.orderService.ConfirmPayment(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) MarkDelivered(c echo.Context) error {
	ctx := c.Request().Context()

	order, err := h.orderService.MarkDelivered(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toOrderResponse(order))
}

func toOrderResponse(order *model.Order) *dto.OrderResponse {
	items := make([]*dto.OrderItemResponse, len(order.Items))
	for i, item := range order.Items {
		items[i] = &dto.OrderItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     item.Image,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	return &dto.OrderResponse{
		ID:      order.ID,
		BuyerID: order.BuyerID,
		Items:   items,
		ShippingAddress: dto.ShippingAddress{
			Address:    order.ShippingAddress.Address,
			City:       order.ShippingAddress.City,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
		},
		PaymentMethod: order.PaymentMethod,
		ItemsPrice:    order.ItemsPrice,
		TaxPrice:      order.TaxPrice,
		ShippingPrice: order.ShippingPrice,
		TotalPrice:    order.TotalPrice,
		IsPaid:        order.IsPaid,
		PaidAt:        order.PaidAt,
		IsDelivered:   order.IsDelivered,
		DeliveredAt:   order.DeliveredAt,
		CreatedAt:     order.CreatedAt,
	}
}
