package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type OrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type ShippingAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type CreateOrderRequest struct {
	Items           []*OrderItemRequest `json:"items"`
	ShippingAddress ShippingAddress     `json:"shipping_address"`
	PaymentMethod   string              `json:"payment_method"`
	ItemsPrice      decimal.Decimal     `json:"items_price"`
	TaxPrice        decimal.Decimal     `json:"tax_price"`
	ShippingPrice   decimal.Decimal     `json:"shipping_price"`
	TotalPrice      decimal.Decimal     `json:"total_price"`
}

type OrderItemResponse struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderResponse struct {
	ID              string               `json:"id"`
	BuyerID         string               `json:"buyer_id"`
	Items           []*OrderItemResponse `json:"items"`
	ShippingAddress ShippingAddress      `json:"shipping_address"`
	PaymentMethod   string               `json:"payment_method"`
	ItemsPrice      decimal.Decimal      `json:"items_price"`
	TaxPrice        decimal.Decimal      `json:"tax_price"`
	ShippingPrice   decimal.Decimal      `json:"shipping_price"`
	TotalPrice      decimal.Decimal      `json:"total_price"`
	IsPaid          bool                 `json:"is_paid"`
	PaidAt          *time.Time           `json:"paid_at,omitempty"`
	IsDelivered     bool                 `json:"is_delivered"`
	DeliveredAt     *time.Time           `json:"delivered_at,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

type CreatePaymentResponse struct {
	PaymentID   string `json:"payment_id"`
	ApprovalURL string `json:"approval_url,omitempty"`
}

type UpdateStockRequest struct {
	Stock int `json:"stock"`
}

// PaymentCallbackEvent is the processor's callback payload.
type PaymentCallbackEvent struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	OrderID   string `json:"order_id"`
}
