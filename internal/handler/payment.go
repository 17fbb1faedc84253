package handler

import (
	"io"
	"net/http"

	"marketplace-order-api/internal/apperr"
	"marketplace-order-api/internal/middleware"
	"marketplace-order-api/internal/service"

	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	paymentService service.PaymentService
}

func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

func (h *PaymentHandler) CreateIntent(c echo.Context) error {
	ctx := c.Request().Context()
	claims := middleware.ClaimsFrom(c)

	resp, err := h.paymentService.CreateIntent(ctx, claims, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) Callback(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return apperr.Validationf("read callback body")
	}

	if err := h.paymentService.HandleCallback(ctx, c.Request().Header, body); err != nil {
		return err
	}

	return c.NoContent(http.StatusOK)
}
