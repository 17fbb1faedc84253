package repository

import (
	"context"
	"time"

	"marketplace-order-api/internal/model"

	"gorm.io/gorm"
)

type PaymentEventRepository interface {
	Exists(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, tx *gorm.DB, eventID, eventType, orderID string) error
}

type paymentEventRepoImpl struct {
	db *gorm.DB
}

func NewPaymentEventRepository(db *gorm.DB) PaymentEventRepository {
	return &paymentEventRepoImpl{db: db}
}

func (r *paymentEventRepoImpl) Exists(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.PaymentEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error

	return count > 0, err
}

func (r *paymentEventRepoImpl) MarkProcessed(ctx context.Context, tx *gorm.DB, eventID, eventType, orderID string) error {
	return tx.WithContext(ctx).Create(&model.PaymentEvent{
		EventID:     eventID,
		EventType:   eventType,
		OrderID:     orderID,
		ProcessedAt: time.Now(),
	}).Error
}
