package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velostore/storefront-backend/pkg/db/models"
	pkgerrors "github.com/velostore/storefront-backend/pkg/errors"
	"github.com/velostore/storefront-backend/pkg/logger"
)

// DefaultHold is how long a reservation shields stock before it lapses.
const DefaultHold = 15 * time.Minute

// ReservationRequest asks for a quantity of one product to be held.
type ReservationRequest struct {
	ProductID uuid.UUID
	Qty       int
}

// ShortfallDetail reports one product that could not be reserved.
type ShortfallDetail struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// Service owns the stock arithmetic. Available stock is always derived, never
// stored: stock_on_hand minus the sum of live reservation holds.
type Service interface {
	Available(ctx context.Context, productID uuid.UUID) (int, error)
	Reserve(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, requests []ReservationRequest) error
	ConfirmDeduction(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	Restock(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) error
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
	hold time.Duration
	now  func() time.Time
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
	Hold   time.Duration
	Now    func() time.Time
}

// NewService wires an inventory service with the provided repository.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	hold := params.Hold
	if hold <= 0 {
		hold = DefaultHold
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo: params.Repo,
		logg: params.Logger,
		hold: hold,
		now:  now,
	}, nil
}

func (s *service) Available(ctx context.Context, productID uuid.UUID) (int, error) {
	if productID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	reserved, err := s.repo.SumActiveReservations(ctx, productID, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum reservations")
	}

	available := product.StockOnHand - reserved
	if available < 0 {
		available = 0
	}
	return available, nil
}

// Reserve places holds for every request or none of them. Requests are checked
// against derived availability under row locks, in product id order so two
// concurrent checkouts lock rows the same way.
func (s *service) Reserve(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, requests []ReservationRequest) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if len(requests) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one reservation is required")
	}

	merged := map[uuid.UUID]int{}
	for _, req := range requests {
		if req.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if req.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "reservation qty must be positive")
		}
		merged[req.ProductID] += req.Qty
	}

	productIDs := make([]uuid.UUID, 0, len(merged))
	for id := range merged {
		productIDs = append(productIDs, id)
	}
	sort.Slice(productIDs, func(i, j int) bool {
		return productIDs[i].String() < productIDs[j].String()
	})

	repo := s.repo.WithTx(tx)
	now := s.now()
	expiresAt := now.Add(s.hold)

	var shortfalls []ShortfallDetail
	reservations := make([]models.InventoryReservation, 0, len(productIDs))

	for _, productID := range productIDs {
		qty := merged[productID]

		product, err := repo.FindProductForUpdate(ctx, productID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
					WithDetails(map[string]any{"product_id": productID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock product")
		}
		if !product.Active {
			return pkgerrors.New(pkgerrors.CodeValidation, "product is not purchasable").
				WithDetails(map[string]any{"product_id": productID})
		}

		reserved, err := repo.SumActiveReservations(ctx, productID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum reservations")
		}

		// the raw signed value decides; clamping is display-only
		available := product.StockOnHand - reserved
		if qty > available {
			shown := available
			if shown < 0 {
				shown = 0
			}
			shortfalls = append(shortfalls, ShortfallDetail{
				ProductID: productID,
				Requested: qty,
				Available: shown,
			})
			continue
		}

		reservations = append(reservations, models.InventoryReservation{
			ProductID: productID,
			OrderID:   orderID,
			Qty:       qty,
			ExpiresAt: expiresAt,
		})
	}

	if len(shortfalls) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "insufficient stock").
			WithDetails(map[string]any{"shortfalls": shortfalls})
	}

	if err := repo.CreateReservations(ctx, reservations); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservations")
	}
	return nil
}

// ConfirmDeduction burns an order's holds into real stock decrements once its
// payment is confirmed. The reservation rows drive the deduction. Zero
// surviving rows is tolerated with a warning: the hold lapsed before the
// webhook arrived, and payment truth wins over the lost shield.
func (s *service) ConfirmDeduction(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)

	reservations, err := repo.FindReservationsByOrder(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservations")
	}
	if len(reservations) == 0 {
		wctx := s.logg.WithFields(ctx, map[string]any{"order_id": orderID.String()})
		s.logg.Warn(wctx, "deduction confirmed with no surviving reservations, hold lapsed before payment")
		return nil
	}

	for _, reservation := range reservations {
		product, err := repo.FindProductForUpdate(ctx, reservation.ProductID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
					WithDetails(map[string]any{"product_id": reservation.ProductID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock product")
		}

		qty := reservation.Qty
		if qty > product.StockOnHand {
			wctx := s.logg.WithFields(ctx, map[string]any{
				"order_id":   orderID.String(),
				"product_id": reservation.ProductID.String(),
				"reserved":   reservation.Qty,
				"on_hand":    product.StockOnHand,
			})
			s.logg.Warn(wctx, "deduction exceeds stock on hand, clamping to zero")
			qty = product.StockOnHand
		}
		if qty == 0 {
			continue
		}
		if err := repo.DecrementStock(ctx, reservation.ProductID, qty); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
	}

	if err := repo.DeleteReservationsByOrder(ctx, orderID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete reservations")
	}
	return nil
}

// Release drops an order's holds without touching stock. Used by cancellation
// and by checkout compensation when a later step fails.
func (s *service) Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	if err := repo.DeleteReservationsByOrder(ctx, orderID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete reservations")
	}
	return nil
}

// Restock puts returned quantities back on hand. The caller decides when a
// return qualifies; this only does the increments.
func (s *service) Restock(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if len(requests) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one restock line is required")
	}

	repo := s.repo.WithTx(tx)
	for _, req := range requests {
		if req.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if req.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "restock qty must be positive")
		}
		if err := repo.IncrementStock(ctx, req.ProductID, req.Qty); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment stock")
		}
	}
	return nil
}

// SweepExpired hard-deletes lapsed holds so derived availability recovers even
// though expired rows are already excluded from the availability sum.
func (s *service) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	if now.IsZero() {
		now = s.now()
	}
	count, err := s.repo.DeleteExpiredReservations(ctx, now)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete expired reservations")
	}
	return count, nil
}
