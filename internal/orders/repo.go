package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velostore/storefront-backend/pkg/db/models"
	"github.com/velostore/storefront-backend/pkg/enums"
	"github.com/velostore/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for the order aggregate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByIDForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params, filters ListFilters) (*List, error)
	FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
	Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, orderID uuid.UUID) error
	CreateReturn(ctx context.Context, ret *models.OrderReturn) error
	FindReturnByOrder(ctx context.Context, orderID uuid.UUID) (*models.OrderReturn, error)
	MarkReturnRestocked(ctx context.Context, returnID uuid.UUID, at time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payment").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIDForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payment").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params, filters ListFilters) (*List, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Preload("Items").
		Where("user_id = ?", userID)

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filters.PaymentStatus)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	limit := pagination.NormalizeLimit(params.Limit)
	var rows []models.Order
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(limit + 1).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	list := &List{Orders: make([]Summary, 0, len(rows))}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	for _, row := range rows {
		totalItems := 0
		for _, item := range row.Items {
			totalItems += item.Qty
		}
		list.Orders = append(list.Orders, Summary{
			ID:            row.ID,
			CreatedAt:     row.CreatedAt,
			Status:        row.Status,
			PaymentStatus: row.PaymentStatus,
			TotalMinor:    row.TotalMinor,
			Currency:      row.Currency,
			TotalItems:    totalItems,
		})
	}
	if hasMore && len(rows) > 0 {
		last := rows[len(rows)-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return list, nil
}

// FindPendingBefore returns stale unpaid orders for the TTL job. Orders whose
// payment row is already paid or refunded are excluded even while the order
// itself still says pending: the money moved and only the webhook reconciler
// may decide what happens next.
func (r *repository) FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	settled := r.db.
		Model(&models.Payment{}).
		Select("order_id").
		Where("status IN ?", []enums.PaymentStatus{enums.PaymentStatusPaid, enums.PaymentStatusRefunded})

	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_status = ? AND created_at < ?",
			enums.OrderStatusPending, enums.PaymentStatusPending, cutoff).
		Where("id NOT IN (?)", settled).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("status", status).Error
}

func (r *repository) Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) Delete(ctx context.Context, orderID uuid.UUID) error {
	// compensating delete during checkout; drop children explicitly so the
	// behavior does not depend on FK cascade being enforced
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Delete(&models.OrderLineItem{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("id = ?", orderID).
		Delete(&models.Order{}).Error
}

func (r *repository) CreateReturn(ctx context.Context, ret *models.OrderReturn) error {
	return r.db.WithContext(ctx).Create(ret).Error
}

func (r *repository) FindReturnByOrder(ctx context.Context, orderID uuid.UUID) (*models.OrderReturn, error) {
	var ret models.OrderReturn
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&ret).Error
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

func (r *repository) MarkReturnRestocked(ctx context.Context, returnID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderReturn{}).
		Where("id = ?", returnID).
		Update("restocked_at", at).Error
}
