package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           string `gorm:"primaryKey;size:36;not null"`
	Email        string `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:128;not null"`
	Name         string `gorm:"size:128"`
	Role         string `gorm:"size:16;not null"` // buyer, admin
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Product struct {
	ID        string          `gorm:"primaryKey;size:64;not null"` // product sku
	StoreID   string          `gorm:"size:36;index"`
	Name      string          `gorm:"size:255;not null"`
	Image     string          `gorm:"size:512"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Stock     int             `gorm:"not null"`
	SoldCount int             `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Order struct {
	ID      string `gorm:"primaryKey;size:36;not null"`
	BuyerID string `gorm:"size:36;index;not null;uniqueIndex:uq_buyer_idem"`
	// IdempotencyKey is optional; when the client retries a checkout with the
	// same key the unique index guarantees a single order per attempt.
	IdempotencyKey *string `gorm:"size:64;uniqueIndex:uq_buyer_idem"`

	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:ship_"`
	PaymentMethod   string          `gorm:"size:32;not null"`

	ItemsPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TaxPrice      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ShippingPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TotalPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	IsPaid      bool `gorm:"not null;default:false"`
	PaidAt      *time.Time
	IsDelivered bool `gorm:"not null;default:false"`
	DeliveredAt *time.Time

	Items []OrderItem `gorm:"foreignKey:OrderID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type ShippingAddress struct {
	Address    string `gorm:"size:255"`
	City       string `gorm:"size:128"`
	PostalCode string `gorm:"size:32"`
	Country    string `gorm:"size:64"`
}

// OrderItem snapshots the product name, image and unit price at purchase time
// so later catalog edits never alter historical orders.
type OrderItem struct {
	ID        uint            `gorm:"primaryKey"`
	OrderID   string          `gorm:"size:36;index;not null"`
	ProductID string          `gorm:"size:64;index;not null"`
	Name      string          `gorm:"size:255;not null"`
	Image     string          `gorm:"size:512"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt time.Time
}

// PaymentEvent records processed processor callbacks so replays are no-ops.
type PaymentEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	EventType   string `gorm:"size:64;index"`
	OrderID     string `gorm:"size:36;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}
