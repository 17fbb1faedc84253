package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"marketplace-order-api/internal/apperr"
	"marketplace-order-api/internal/auth"
	"marketplace-order-api/internal/dto"
	"marketplace-order-api/internal/model"
	"marketplace-order-api/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection serializes transactions the way the production pool's
	// row locks would.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.Order{},
		&model.OrderItem{},
		&model.PaymentEvent{},
	))

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newOrderService(db *gorm.DB) OrderService {
	return NewOrderService(db,
		repository.NewOrderRepository(db),
		repository.NewProductRepository(db),
	)
}

func seedProduct(t *testing.T, db *gorm.DB, id string, price float64, stock int) {
	t.Helper()
	require.NoError(t, db.Create(&model.Product{
		ID:    id,
		Name:  "Product " + id,
		Price: decimal.NewFromFloat(price),
		Stock: stock,
	}).Error)
}

func fetchProduct(t *testing.T, db *gorm.DB, id string) *model.Product {
	t.Helper()
	var product model.Product
	require.NoError(t, db.Where("id = ?", id).First(&product).Error)
	return &product
}

func buyerClaims(userID string) *auth.Claims {
	return &auth.Claims{UserID: userID, Role: auth.RoleBuyer}
}

func cartRequest(items ...*dto.OrderItemRequest) *dto.CreateOrderRequest {
	itemsPrice := decimal.Zero
	for _, item := range items {
		itemsPrice = itemsPrice.Add(decimal.NewFromInt(int64(item.Quantity)).Mul(decimal.NewFromFloat(50)))
	}
	return &dto.CreateOrderRequest{
		Items: items,
		ShippingAddress: dto.ShippingAddress{
			Address: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US",
		},
		PaymentMethod: "card",
		ItemsPrice:    itemsPrice,
		TaxPrice:      decimal.NewFromFloat(5),
		ShippingPrice: decimal.NewFromFloat(10),
		TotalPrice:    itemsPrice.Add(decimal.NewFromFloat(15)),
	}
}

func TestCreateOrder_DecrementsStock(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(db)
	seedProduct(t, db, "P1", 50.00, 5)

	order, created, err := svc.CreateOrder(context.Background(), "buyer-1",
		cartRequest(&dto.OrderItemRequest{ProductID: "P1", Quantity: 2}), "")

	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, order.ID)
	assert.False(t, order.IsPaid)
	assert.True(t, order.ItemsPrice.Equal(decimal.NewFromFloat(100)), "items price %s", order.ItemsPrice)
	assert.True(t, order.TotalPrice.Equal(decimal.NewFromFloat(115)), "total price %s", order.TotalPrice)

	require.Len(t, order.Items, 1)
	assert.Equal(t, "P1", order.Items[0].ProductID)
	assert.True(t, order.Items[0].UnitPrice.Equal(decimal.NewFromFloat(50)))

	assert.Equal(t, 3, fetchProduct(t, db, "P1").Stock)
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	svc := newOrderService(newTestDB(t))

	_, _, err := svc.CreateOrder(context.Background(), "buyer-1", cartRequest(), "")

	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCreateOrder_QuantityBelowOne(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(db)
	seedProduct(t, db, "P1", 50.00, 5)

	_, _, err := svc.CreateOrder(context.Background(), "buyer-1",
		cartRequest(&dto.OrderItemRequest{ProductID: "P1", Quantity: 0}), "")

	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(db)

	_, _, err := svc.CreateOrder(context.Background(), "buyer-1",
		cartRequest(&dto.OrderItemRequest{ProductID: "ghost", Quantity: 1}), "")

	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(db)
	seedProduct(t, db, "P1", 50.00, 1)

	_, _, err := svc.CreateOrder(context.Background(), "buyer-1",
		cartRequest(&dto.OrderItemRequest{ProductID: "P1", Quantity: 2}), "")

	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, 1, fetchProduct(t, db, "P1").Stock)
}

func TestCreateOrder_AllOrNothing(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(db)
	seedProduct(t, db, "P1", 50.00, 10)
	seedProduct(t, db, "P2", 50.00, 1)

	_, _, err := svc.CreateOrder(context.Background(), "buyer-1",
		cartRequest(
			&dto.OrderItemRequest{ProductID: "P1", Quantity: 2},
			&dto.OrderItemRequest{ProductID: "P2", Quantity: 5},
		), "")

	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// The whole transaction rolled back: no stock mutated, no order persisted.
	assert.Equal(t, 10, fetchProduct(t, db, "P1").Stock)
	assert.Equal(t, 1, fetchProduct(t, db, "P2").Stock)

	var orderCount int64
	require.NoError(t, db.Model(&model.Order{}).Count(&orderCount).Error)
	assert.Zero(t, orderCount)
}

func TestCreateOrder_RoundsMonetaryInputs(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(db)
	seedProduct(t, db, "P1", 50.00, 5)

	req := cartRequest(&dto.OrderItemRequest{ProductID: "P1", Quantity: 2})
	req.ItemsPrice = decimal.RequireFromString("99.995")
	req.TotalPrice = decimal.RequireFromString("114.995")

	order, _, err := svc.CreateOrder(context.Background(), "buyer-1", req, "")
	require.NoError(t, err)

	assert.True(t, order.ItemsPrice.Equal(decimal.NewFromFloat(100)), "items price %s", order.ItemsPrice)
	assert.True(t, order.TotalPrice.Equal(decimal.NewFromFloat(115)), "total price %s", order.TotalPrice)

	var stored model.Order
	require.NoError(t, db.Where("id = ?", order.ID).First(&stored).Error)
	assert.True(t, stored.ItemsPrice.Equal(decimal.NewFromFloat(100)), "stored items price %s", stored.ItemsPrice)
}

func TestCreateOrder_NegativePrice(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(db)
	seedProduct(t, db, "P1", 50.00, 5)

	req := cartRequest(&dto.OrderItemRequest{ProductID: "P1", Quantity: 1})
	req.TaxPrice = decimal.NewFromFloat(-1)

	_, _, err := svc.CreateOrder(context.Background(), "buyer-1", req, "")

	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCreateOrder_IdempotencyKeyReplay(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(db)
	seedProduct(t, db, "P1", 50.00, 5)

	req := cartRequest(&dto.OrderItemRequest{ProductID: "P1", Quantity: 2})

	first, created, err := svc.CreateOrder(context.Background(), "buyer-1", req, "checkout-1")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := svc.CreateOrder(context.Background(), "buyer-1", req, "checkout-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	// Stock was reserved once, not twice.
	assert.Equal(t, 3, fetchProduct(t, db, "P1").Stock)
}

func TestCreateOrder_ConcurrentSharedStock(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(db)
	seedProduct(t, db, "P1", 50.00, 3)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.CreateOrder(context.Background(),
				fmt.Sprintf("buyer-%d", i),
				cartRequest(&dto.OrderItemRequest{ProductID: "P1", Quantity: 2}), "")
		}(i)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperr.KindOf(err) == apperr.KindConflict:
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)

	stock := fetchProduct(t, db, "P1").Stock
	assert.Equal(t, 1, stock)
	assert.GreaterOrEqual(t, stock, 0)
}

func TestConfirmPayment_IncrementsSoldOnce(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(db)
	seedProduct(t, db, "P1", 50.00, 5)

	order, _, err := svc.CreateOrder(context.Background(), "buyer-1",
		cartRequest(&dto.OrderItemRequest{ProductID: "P1", Quantity: 2}), "")
	require.NoError(t, err)

	paid, err := svc.ConfirmPayment(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, 2, fetchProduct(t, db, "P1").SoldCount)

	// Replay: still paid, sold count unchanged.
	replayed, err := svc.ConfirmPayment(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, replayed.IsPaid)
	assert.Equal(t, paid.PaidAt.Unix(), replayed.PaidAt.Unix())
	assert.Equal(t, 2, fetchProduct(t, db, "P1").SoldCount)
}

func TestConfirmPayment_UnknownOrder(t *testing.T) {
	svc := newOrderService(newTestDB(t))

	_, err := svc.ConfirmPayment(context.Background(), "missing-order")

	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestGetOrder_Ownership(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(db)
	seedProduct(t, db, "P1", 50.00, 5)

	order, _, err := svc.CreateOrder(context.Background(), "buyer-1",
		cartRequest(&dto.OrderItemRequest{ProductID: "P1", Quantity: 1}), "")
	require.NoError(t, err)

	got, err := svc.GetOrder(context.Background(), buyerClaims("buyer-1"), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = svc.GetOrder(context.Background(), buyerClaims("buyer-2"), order.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	admin := &auth.Claims{UserID: "admin-1", Role: auth.RoleAdmin}
	_, err = svc.GetOrder(context.Background(), admin, order.ID)
	assert.NoError(t, err)

	_, err = svc.GetOrder(context.Background(), buyerClaims("buyer-1"), "missing")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestMarkDelivered(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(db)
	seedProduct(t, db, "P1", 50.00, 5)

	order, _, err := svc.CreateOrder(context.Background(), "buyer-1",
		cartRequest(&dto.OrderItemRequest{ProductID: "P1", Quantity: 1}), "")
	require.NoError(t, err)

	delivered, err := svc.MarkDelivered(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, delivered.IsDelivered)
	assert.NotNil(t, delivered.DeliveredAt)

	_, err = svc.MarkDelivered(context.Background(), "missing-order")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestListOrders(t *testing.T) {
	db := newTestDB(t)
	svc := newOrderService(db)
	seedProduct(t, db, "P1", 50.00, 10)

	for i := 0; i < 2; i++ {
		_, _, err := svc.CreateOrder(context.Background(), "buyer-1",
			cartRequest(&dto.OrderItemRequest{ProductID: "P1", Quantity: 1}), "")
		require.NoError(t, err)
	}
	_, _, err := svc.CreateOrder(context.Background(), "buyer-2",
		cartRequest(&dto.OrderItemRequest{ProductID: "P1", Quantity: 1}), "")
	require.NoError(t, err)

	orders, err := svc.ListOrders(context.Background(), "buyer-1")
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}
