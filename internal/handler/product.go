package handler

import (
	"errors"
	"net/http"

	"marketplace-order-api/internal/apperr"
	"marketplace-order-api/internal/dto"
	"marketplace-order-api/internal/repository"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type ProductHandler struct {
	productRepo repository.ProductRepository
}

func NewProductHandler(productRepo repository.ProductRepository) *ProductHandler {
	return &ProductHandler{
		productRepo: productRepo,
	}
}

func (h *ProductHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	products, err := h.productRepo.List(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	productID := c.Param("id")

	product, err := h.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFoundf("product %s not found", productID)
		}
		return err
	}

	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) UpdateStock(c echo.Context) error {
	ctx := c.Request().Context()
	productID := c.Param("id")

	var req dto.UpdateStockRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validationf("invalid req body")
	}
	if req.Stock < 0 {
		return apperr.Validationf("stock must not be negative")
	}

	if err := h.productRepo.SetStock(ctx, productID, req.Stock); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFoundf("product %s not found", productID)
		}
		return err
	}

	product, err := h.productRepo.FindByID(ctx, productID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, product)
}
