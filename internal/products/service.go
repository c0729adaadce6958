package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velostore/storefront-backend/pkg/db"
	"github.com/velostore/storefront-backend/pkg/db/models"
	pkgerrors "github.com/velostore/storefront-backend/pkg/errors"
	"github.com/velostore/storefront-backend/pkg/pagination"
)

// CreateInput carries the fields for a new catalog product.
type CreateInput struct {
	SKU            string  `json:"sku" validate:"required"`
	Title          string  `json:"title" validate:"required"`
	Description    *string `json:"description,omitempty"`
	UnitPriceMinor int64   `json:"unit_price_minor" validate:"gte=0"`
	StockOnHand    int     `json:"stock_on_hand" validate:"gte=0"`
	Active         *bool   `json:"active,omitempty"`
}

// UpdateInput carries partial updates for a product.
type UpdateInput struct {
	Title          *string `json:"title,omitempty"`
	Description    *string `json:"description,omitempty"`
	UnitPriceMinor *int64  `json:"unit_price_minor,omitempty" validate:"omitempty,gte=0"`
	StockOnHand    *int    `json:"stock_on_hand,omitempty" validate:"omitempty,gte=0"`
	Active         *bool   `json:"active,omitempty"`
}

// PageResult wraps a catalog page plus the next cursor.
type PageResult struct {
	Products   []models.Product `json:"products"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// Service manages the catalog.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Product, error)
	Get(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	List(ctx context.Context, params pagination.Params, activeOnly bool) (*PageResult, error)
	Update(ctx context.Context, productID uuid.UUID, input UpdateInput) (*models.Product, error)
	Delete(ctx context.Context, productID uuid.UUID) error
}

type service struct {
	repo Repository
}

// NewService wires a products service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Product, error) {
	sku := strings.TrimSpace(input.SKU)
	if sku == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if input.UnitPriceMinor < 0 || input.StockOnHand < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price and stock must not be negative")
	}

	active := true
	if input.Active != nil {
		active = *input.Active
	}
	product := &models.Product{
		SKU:            sku,
		Title:          strings.TrimSpace(input.Title),
		UnitPriceMinor: input.UnitPriceMinor,
		StockOnHand:    input.StockOnHand,
		Active:         active,
	}
	product.Description = input.Description

	created, err := s.repo.Create(ctx, product)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "sku already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, activeOnly bool) (*PageResult, error) {
	rows, next, err := s.repo.List(ctx, params, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return &PageResult{Products: rows, NextCursor: next}, nil
}

func (s *service) Update(ctx context.Context, productID uuid.UUID, input UpdateInput) (*models.Product, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	updates := map[string]any{}
	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title must not be empty")
		}
		updates["title"] = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.UnitPriceMinor != nil {
		if *input.UnitPriceMinor < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
		}
		updates["unit_price_minor"] = *input.UnitPriceMinor
	}
	if input.StockOnHand != nil {
		if *input.StockOnHand < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must not be negative")
		}
		updates["stock_on_hand"] = *input.StockOnHand
	}
	if input.Active != nil {
		updates["active"] = *input.Active
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	if err := s.repo.Update(ctx, productID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return s.Get(ctx, productID)
}

func (s *service) Delete(ctx context.Context, productID uuid.UUID) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if _, err := s.Get(ctx, productID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}
