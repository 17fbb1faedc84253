package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-order-api/internal/apperr"
	"marketplace-order-api/internal/auth"
	"marketplace-order-api/internal/dto"
	"marketplace-order-api/internal/model"
	"marketplace-order-api/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderService interface {
	// CreateOrder persists the order and reserves stock in one transaction.
	// The returned bool is false when an idempotency-key replay matched an
	// existing order instead of creating a new one.
	CreateOrder(ctx context.Context, buyerID string, req *dto.CreateOrderRequest, idempotencyKey string) (*model.Order, bool, error)
	GetOrder(ctx context.Context, principal *auth.Claims, orderID string) (*model.Order, error)
	ListOrders(ctx context.Context, buyerID string) ([]*model.Order, error)
	ConfirmPayment(ctx context.Context, orderID string) (*model.Order, error)
	MarkDelivered(ctx context.Context, orderID string) (*model.Order, error)
}

type orderServiceImpl struct {
	db          *gorm.DB
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
}

func NewOrderService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
) OrderService {
	return &orderServiceImpl{
		db:          db,
		orderRepo:   orderRepo,
		productRepo: productRepo,
	}
}

func (s *orderServiceImpl) CreateOrder(ctx context.Context, buyerID string, req *dto.CreateOrderRequest, idempotencyKey string) (*model.Order, bool, error) {
	if len(req.Items) == 0 {
		return nil, false, apperr.Validationf("no order items")
	}

	productIDs := make([]string, len(req.Items))
	itemQuantityMap := make(map[string]int)
	for i, item := range req.Items {
		if item.Quantity < 1 {
			return nil, false, apperr.Validationf("item quantity must be at least 1")
		}
		if item.ProductID == "" {
			return nil, false, apperr.Validationf("item product id is required")
		}
		productIDs[i] = item.ProductID
		itemQuantityMap[item.ProductID] += item.Quantity
	}

	if req.ItemsPrice.IsNegative() || req.TaxPrice.IsNegative() ||
		req.ShippingPrice.IsNegative() || req.TotalPrice.IsNegative() {
		return nil, false, apperr.Validationf("prices must not be negative")
	}

	if idempotencyKey != "" {
		existing, err := s.orderRepo.FindByIdempotencyKey(ctx, buyerID, idempotencyKey)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, mapDBError(err, "find order by idempotency key")
		}
	}

	products, err := s.productRepo.FindMany(ctx, productIDs)
	if err != nil {
		return nil, false, mapDBError(err, "get products for order")
	}
	productMap := make(map[string]*model.Product, len(products))
	for _, product := range products {
		productMap[product.ID] = product
	}
	for _, id := range productIDs {
		if _, ok := productMap[id]; !ok {
			return nil, false, apperr.NotFoundf("product %s not found", id)
		}
	}

	order := &model.Order{
		ID:      uuid.NewString(),
		BuyerID: buyerID,
		ShippingAddress: model.ShippingAddress{
			Address:    req.ShippingAddress.Address,
			City:       req.ShippingAddress.City,
			PostalCode: req.ShippingAddress.PostalCode,
			Country:    req.ShippingAddress.Country,
		},
		PaymentMethod: req.PaymentMethod,
		ItemsPrice:    req.ItemsPrice.Round(2),
		TaxPrice:      req.TaxPrice.Round(2),
		ShippingPrice: req.ShippingPrice.Round(2),
		TotalPrice:    req.TotalPrice.Round(2),
	}
	if idempotencyKey != "" {
		order.IdempotencyKey = &idempotencyKey
	}

	orderItems := make([]*model.OrderItem, len(req.Items))
	for i, item := range req.Items {
		product := productMap[item.ProductID]
		orderItems[i] = &model.OrderItem{
			OrderID:   order.ID,
			ProductID: product.ID,
			Name:      product.Name,
			Image:     product.Image,
			Quantity:  item.Quantity,
			UnitPrice: product.Price.Round(2),
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("store order in db: %w", err)
		}

		if err := s.orderRepo.CreateOrderItems(ctx, tx, orderItems); err != nil {
			return fmt.Errorf("store order items in db: %w", err)
		}

		// Stock reservation is part of the same transaction: any failed
		// decrement rolls back the order and every prior decrement.
		for productID, qty := range itemQuantityMap {
			ok, err := s.productRepo.DecrementStock(ctx, tx, productID, qty)
			if err != nil {
				return fmt.Errorf("decrement stock: %w", err)
			}
			if !ok {
				return apperr.Conflictf("insufficient stock for product %s", productID)
			}
		}

		return nil
	})
	if err != nil {
		// A concurrent retry with the same idempotency key loses the unique
		// index race; surface the order the winner created.
		if idempotencyKey != "" && errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, findErr := s.orderRepo.FindByIdempotencyKey(ctx, buyerID, idempotencyKey)
			if findErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, mapDBError(err, "create order")
	}

	order.Items = make([]model.OrderItem, len(orderItems))
	for i, item := range orderItems {
		order.Items[i] = *item
	}

	return order, true, nil
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, principal *auth.Claims, orderID string) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("order %s not found", orderID)
		}
		return nil, mapDBError(err, "find order")
	}

	if order.BuyerID != principal.UserID && !auth.RoleAllows(principal.Role, auth.CapabilityViewAnyOrder) {
		return nil, apperr.Forbiddenf("order %s does not belong to you", orderID)
	}

	return order, nil
}

func (s *orderServiceImpl) ListOrders(ctx context.Context, buyerID string) ([]*model.Order, error) {
	orders, err := s.orderRepo.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, mapDBError(err, "list orders")
	}

	return orders, nil
}

func (s *orderServiceImpl) ConfirmPayment(ctx context.Context, orderID string) (*model.Order, error) {
	var order *model.Order

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		transitioned, err := s.orderRepo.MarkPaid(ctx, tx, orderID, time.Now())
		if err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}

		if !transitioned {
			// Either the order is unknown or this is a replay. Replays are
			// no-ops: sold counts were already incremented on the first call.
			var existing model.Order
			err := tx.WithContext(ctx).Preload("Items").
				Where("id = ?", orderID).
				First(&existing).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFoundf("order %s not found", orderID)
				}
				return fmt.Errorf("find order: %w", err)
			}
			order = &existing
			return nil
		}

		items, err := s.orderRepo.GetOrderItems(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("get order items: %w", err)
		}

		for _, item := range items {
			qty := item.Quantity
			if qty <= 0 {
				qty = 1
			}
			if err := s.productRepo.IncrementSold(ctx, tx, item.ProductID, qty); err != nil {
				return fmt.Errorf("increment sold count: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, mapDBError(err, "confirm payment")
	}

	if order == nil {
		order, err = s.orderRepo.FindByID(ctx, orderID)
		if err != nil {
			return nil, mapDBError(err, "reload order")
		}
	}

	return order, nil
}

func (s *orderServiceImpl) MarkDelivered(ctx context.Context, orderID string) (*model.Order, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		transitioned, err := s.orderRepo.MarkDelivered(ctx, tx, orderID, time.Now())
		if err != nil {
			return fmt.Errorf("mark order delivered: %w", err)
		}
		if !transitioned {
			var count int64
			if err := tx.Model(&model.Order{}).Where("id = ?", orderID).Count(&count).Error; err != nil {
				return fmt.Errorf("find order: %w", err)
			}
			if count == 0 {
				return apperr.NotFoundf("order %s not found", orderID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapDBError(err, "mark delivered")
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapDBError(err, "reload order")
	}

	return order, nil
}

// mapDBError keeps the application error taxonomy intact while wrapping
// everything else with context for the log line.
func mapDBError(err error, msg string) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Wrap(apperr.KindNotFound, err, msg)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Wrap(apperr.KindTransient, err, msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
