package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velostore/storefront-backend/pkg/db/models"
	pkgerrors "github.com/velostore/storefront-backend/pkg/errors"
)

// ProductFinder checks that a product can be carted; satisfied by products.Repository.
type ProductFinder interface {
	FindByID(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}

// ItemView is one cart line with its current catalog price.
type ItemView struct {
	ProductID      uuid.UUID `json:"product_id"`
	Title          string    `json:"title"`
	Qty            int       `json:"qty"`
	UnitPriceMinor int64     `json:"unit_price_minor"`
	LineTotalMinor int64     `json:"line_total_minor"`
}

// View is the whole cart as returned to the client.
type View struct {
	Items         []ItemView `json:"items"`
	SubtotalMinor int64      `json:"subtotal_minor"`
}

// Service manages the persisted cart.
type Service interface {
	SetItem(ctx context.Context, userID, productID uuid.UUID, qty int) error
	Get(ctx context.Context, userID uuid.UUID) (*View, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
	Items(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
}

type service struct {
	repo     Repository
	products ProductFinder
}

// NewService wires a cart service with the provided dependencies.
func NewService(repo Repository, products ProductFinder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product finder required")
	}
	return &service{repo: repo, products: products}, nil
}

func (s *service) SetItem(ctx context.Context, userID, productID uuid.UUID, qty int) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.Active {
		return pkgerrors.New(pkgerrors.CodeValidation, "product is not purchasable")
	}

	if err := s.repo.Upsert(ctx, &models.CartItem{
		UserID:    userID,
		ProductID: productID,
		Qty:       qty,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert cart item")
	}
	return nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	items, err := s.Items(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &View{Items: make([]ItemView, 0, len(items))}
	for _, item := range items {
		product, err := s.products.FindByID(ctx, item.ProductID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		lineTotal := product.UnitPriceMinor * int64(item.Qty)
		view.Items = append(view.Items, ItemView{
			ProductID:      item.ProductID,
			Title:          product.Title,
			Qty:            item.Qty,
			UnitPriceMinor: product.UnitPriceMinor,
			LineTotalMinor: lineTotal,
		})
		view.SubtotalMinor += lineTotal
	}
	return view, nil
}

func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if err := s.repo.DeleteByUserAndProduct(ctx, userID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
	}
	return nil
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := s.repo.ClearByUser(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) Items(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}
	return items, nil
}
