package handler

import (
	"net/http"

	"marketplace-order-api/internal/apperr"
	"marketplace-order-api/internal/dto"
	"marketplace-order-api/internal/service"

	"github.com/labstack/echo/v4"
)

type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

func (h *UserHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validationf("invalid req body")
	}

	resp, err := h.userService.Register(ctx, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, resp)
}

func (h *UserHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validationf("invalid req body")
	}

	resp, err := h.userService.Login(ctx, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}
