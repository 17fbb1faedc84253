package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"marketplace-order-api/internal/apperr"
	"marketplace-order-api/internal/auth"
	"marketplace-order-api/internal/client"
	"marketplace-order-api/internal/dto"
	"marketplace-order-api/internal/repository"

	"gorm.io/gorm"
)

const eventTypePaymentCaptured = "payment.captured"

type PaymentService interface {
	// CreateIntent registers a payment intent with the processor for an
	// unpaid order owned by the caller.
	CreateIntent(ctx context.Context, principal *auth.Claims, orderID string) (*dto.CreatePaymentResponse, error)
	// HandleCallback is the only unattended path that marks an order paid.
	// The processor signs the body; events are deduplicated by event id.
	HandleCallback(ctx context.Context, headers http.Header, body []byte) error
}

type paymentServiceImpl struct {
	db            *gorm.DB
	paymentClient client.PaymentClient
	orderService  OrderService
	eventRepo     repository.PaymentEventRepository
}

func NewPaymentService(
	db *gorm.DB,
	paymentClient client.PaymentClient,
	orderService OrderService,
	eventRepo repository.PaymentEventRepository,
) PaymentService {
	return &paymentServiceImpl{
		db:            db,
		paymentClient: paymentClient,
		orderService:  orderService,
		eventRepo:     eventRepo,
	}
}

func (s *paymentServiceImpl) CreateIntent(ctx context.Context, principal *auth.Claims, orderID string) (*dto.CreatePaymentResponse, error) {
	order, err := s.orderService.GetOrder(ctx, principal, orderID)
	if err != nil {
		return nil, err
	}

	if order.IsPaid {
		return nil, apperr.Conflictf("order %s is already paid", orderID)
	}

	resp, err := s.paymentClient.CreateIntent(ctx, order.ID, order.TotalPrice, "USD")
	if err != nil {
		return nil, fmt.Errorf("processor create intent: %w", err)
	}

	return &dto.CreatePaymentResponse{
		PaymentID:   resp.PaymentID,
		ApprovalURL: resp.ApprovalURL,
	}, nil
}

func (s *paymentServiceImpl) HandleCallback(ctx context.Context, headers http.Header, body []byte) error {
	if err := s.paymentClient.VerifyCallbackSignature(headers, body); err != nil {
		return apperr.Wrap(apperr.KindAuth, err, "verify callback signature")
	}

	var event dto.PaymentCallbackEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "decode callback payload")
	}
	if event.EventID == "" {
		return apperr.Validationf("callback event id is required")
	}

	processed, err := s.eventRepo.Exists(ctx, event.EventID)
	if err != nil {
		return mapDBError(err, "check callback event")
	}
	if processed {
		return nil
	}

	switch event.EventType {
	case eventTypePaymentCaptured:
		if event.OrderID == "" {
			return apperr.Validationf("callback order id is required")
		}
		// ConfirmPayment is a compare-and-set, so even a duplicate event that
		// slips past the dedupe check cannot double-count a sale.
		if _, err := s.orderService.ConfirmPayment(ctx, event.OrderID); err != nil {
			return err
		}
	default:
		// Unknown event types are acknowledged and recorded, not retried.
	}

	if err := s.eventRepo.MarkProcessed(ctx, s.db, event.EventID, event.EventType, event.OrderID); err != nil {
		return mapDBError(err, "record callback event")
	}

	return nil
}
