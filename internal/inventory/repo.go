package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/velostore/storefront-backend/pkg/db/models"
)

// Repository manages persistence for stock rows and reservation holds.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	FindProductForUpdate(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	SumActiveReservations(ctx context.Context, productID uuid.UUID, now time.Time) (int, error)
	CreateReservations(ctx context.Context, reservations []models.InventoryReservation) error
	FindReservationsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryReservation, error)
	DeleteReservationsByOrder(ctx context.Context, orderID uuid.UUID) error
	DeleteExpiredReservations(ctx context.Context, cutoff time.Time) (int64, error)
	DecrementStock(ctx context.Context, productID uuid.UUID, qty int) error
	IncrementStock(ctx context.Context, productID uuid.UUID, qty int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Where("id = ?", productID).
		First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindProductForUpdate(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	query := r.db.WithContext(ctx)
	// sqlite serializes writers on its own and cannot parse FOR UPDATE
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var product models.Product
	if err := query.Where("id = ?", productID).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) SumActiveReservations(ctx context.Context, productID uuid.UUID, now time.Time) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.InventoryReservation{}).
		Where("product_id = ? AND expires_at > ?", productID, now).
		Select("COALESCE(SUM(qty), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return int(total), nil
}

func (r *repository) CreateReservations(ctx context.Context, reservations []models.InventoryReservation) error {
	if len(reservations) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&reservations).Error
}

// FindReservationsByOrder returns holds in product id order. Deduction locks
// product rows while iterating, and reservation locks them sorted by product
// id; both sides must walk the same way or concurrent multi-product checkouts
// and webhooks can deadlock.
func (r *repository) FindReservationsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryReservation, error) {
	var reservations []models.InventoryReservation
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("product_id ASC").
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repository) DeleteReservationsByOrder(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Delete(&models.InventoryReservation{}).Error
}

func (r *repository) DeleteExpiredReservations(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", cutoff).
		Delete(&models.InventoryReservation{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repository) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock_on_hand", gorm.Expr("stock_on_hand - ?", qty)).Error
}

func (r *repository) IncrementStock(ctx context.Context, productID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock_on_hand", gorm.Expr("stock_on_hand + ?", qty)).Error
}
