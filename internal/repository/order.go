package repository

import (
	"context"
	"time"

	"marketplace-order-api/internal/model"

	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	CreateOrderItems(ctx context.Context, tx *gorm.DB, items []*model.OrderItem) error
	FindByID(ctx context.Context, orderID string) (*model.Order, error)
	FindByIdempotencyKey(ctx context.Context, buyerID, key string) (*model.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]*model.Order, error)
	// MarkPaid flips is_paid false -> true and reports whether this call did
	// the transition. A replay finds zero rows and reports false.
	MarkPaid(ctx context.Context, tx *gorm.DB, orderID string, paidAt time.Time) (bool, error)
	MarkDelivered(ctx context.Context, tx *gorm.DB, orderID string, deliveredAt time.Time) (bool, error)
	GetOrderItems(ctx context.Context, tx *gorm.DB, orderID string) ([]*model.OrderItem, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return tx.WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) CreateOrderItems(ctx context.Context, tx *gorm.DB, items []*model.OrderItem) error {
	return tx.WithContext(ctx).Create(&items).Error
}

func (r *orderRepoImpl) FindByID(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", orderID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) FindByIdempotencyKey(ctx context.Context, buyerID, key string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("buyer_id = ? AND idempotency_key = ?", buyerID, key).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) ListByBuyer(ctx context.Context, buyerID string) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepoImpl) MarkPaid(ctx context.Context, tx *gorm.DB, orderID string, paidAt time.Time) (bool, error) {
	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND is_paid = ?", orderID, false).
		Updates(map[string]interface{}{
			"is_paid":    true,
			"paid_at":    paidAt,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *orderRepoImpl) MarkDelivered(ctx context.Context, tx *gorm.DB, orderID string, deliveredAt time.Time) (bool, error) {
	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND is_delivered = ?", orderID, false).
		Updates(map[string]interface{}{
			"is_delivered": true,
			"delivered_at": deliveredAt,
			"updated_at":   time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *orderRepoImpl) GetOrderItems(ctx context.Context, tx *gorm.DB, orderID string) ([]*model.OrderItem, error) {
	var items []*model.OrderItem
	err := tx.WithContext(ctx).Where("order_id = ?", orderID).
		Find(&items).Error

	if err != nil {
		return nil, err
	}

	return items, nil
}
