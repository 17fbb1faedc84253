package repository

import (
	"context"
	"time"

	"marketplace-order-api/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository interface {
	Seed(ctx context.Context) error
	FindByID(ctx context.Context, productID string) (*model.Product, error)
	FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error)
	List(ctx context.Context) ([]*model.Product, error)
	// DecrementStock applies "stock = stock - qty" only while stock >= qty and
	// reports whether a row was updated. This is the single mutation path for
	// stock, so it can never go negative.
	DecrementStock(ctx context.Context, tx *gorm.DB, productID string, qty int) (bool, error)
	IncrementSold(ctx context.Context, tx *gorm.DB, productID string, qty int) error
	SetStock(ctx context.Context, productID string, stock int) error
}

type productRepoImpl struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepoImpl{
		db: db,
	}
}

func (r *productRepoImpl) Seed(ctx context.Context) error {
	products := []model.Product{
		{ID: "sku_mug", StoreID: "store-001", Name: "Stoneware Mug", Price: decimal.NewFromFloat(12.50), Stock: 40},
		{ID: "sku_tee", StoreID: "store-001", Name: "Logo T-Shirt", Price: decimal.NewFromFloat(19.99), Stock: 25},
		{ID: "sku_poster", StoreID: "store-002", Name: "Art Print Poster", Price: decimal.NewFromFloat(8.00), Stock: 60},
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&products).Error
}

func (r *productRepoImpl) FindByID(ctx context.Context, productID string) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", productID).
		First(&product).Error

	if err != nil {
		return nil, err
	}

	return &product, nil
}

func (r *productRepoImpl) FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Where("id IN ?", productIDs).
		Find(&products).
		Error

	if err != nil {
		return nil, err
	}

	return products, nil
}

func (r *productRepoImpl) List(ctx context.Context) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).Find(&products).Error
	if err != nil {
		return nil, err
	}

	return products, nil
}

func (r *productRepoImpl) DecrementStock(ctx context.Context, tx *gorm.DB, productID string, qty int) (bool, error) {
	result := tx.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		Updates(map[string]interface{}{
			"stock":      gorm.Expr("stock - ?", qty),
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *productRepoImpl) IncrementSold(ctx context.Context, tx *gorm.DB, productID string, qty int) error {
	return tx.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", productID).
		Updates(map[string]interface{}{
			"sold_count": gorm.Expr("sold_count + ?", qty),
			"updated_at": time.Now(),
		}).Error
}

func (r *productRepoImpl) SetStock(ctx context.Context, productID string, stock int) error {
	result := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", productID).
		Updates(map[string]interface{}{
			"stock":      stock,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
