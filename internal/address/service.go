package address

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velostore/storefront-backend/pkg/db/models"
	pkgerrors "github.com/velostore/storefront-backend/pkg/errors"
)

// Input carries the raw fields of a shipping or billing address.
type Input struct {
	Line1      string  `json:"line1" validate:"required"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city" validate:"required"`
	State      string  `json:"state" validate:"required"`
	PostalCode string  `json:"postal_code" validate:"required"`
	Country    string  `json:"country,omitempty"`
	Phone      *string `json:"phone,omitempty"`
}

// Service manages the per-user address book.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input Input) (*models.Address, error)
	CreateInTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, input Input) (*models.Address, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	Resolve(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
	Delete(ctx context.Context, userID, addressID uuid.UUID) error
}

type service struct {
	db *gorm.DB
}

// NewService wires an address service over the provided DB.
func NewService(db *gorm.DB) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &service{db: db}, nil
}

// WithTx rebinds the service to a transaction.
func (s *service) withConn(tx *gorm.DB) *service {
	if tx == nil {
		return s
	}
	return &service{db: tx}
}

func validateInput(input Input) error {
	missing := []string{}
	if strings.TrimSpace(input.Line1) == "" {
		missing = append(missing, "line1")
	}
	if strings.TrimSpace(input.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(input.State) == "" {
		missing = append(missing, "state")
	}
	if strings.TrimSpace(input.PostalCode) == "" {
		missing = append(missing, "postal_code")
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "address is missing required fields").
			WithDetails(map[string]any{"missing": missing})
	}
	return nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input Input) (*models.Address, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	country := strings.ToUpper(strings.TrimSpace(input.Country))
	if country == "" {
		country = "IN"
	}
	address := &models.Address{
		UserID:     userID,
		Line1:      strings.TrimSpace(input.Line1),
		Line2:      input.Line2,
		City:       strings.TrimSpace(input.City),
		State:      strings.TrimSpace(input.State),
		PostalCode: strings.TrimSpace(input.PostalCode),
		Country:    country,
		Phone:      input.Phone,
	}
	if err := s.db.WithContext(ctx).Create(address).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create address")
	}
	return address, nil
}

// CreateInTx persists an address inside an existing transaction; used by
// checkout when the request supplies raw fields instead of an address id.
func (s *service) CreateInTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, input Input) (*models.Address, error) {
	return s.withConn(tx).Create(ctx, userID, input)
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	var addresses []models.Address
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&addresses).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	return addresses, nil
}

// Resolve loads an address and enforces that it belongs to the user.
func (s *service) Resolve(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if addressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id required")
	}
	var address models.Address
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", addressID, userID).
		First(&address).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "address does not belong to the user")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	return &address, nil
}

func (s *service) Delete(ctx context.Context, userID, addressID uuid.UUID) error {
	if _, err := s.Resolve(ctx, userID, addressID); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", addressID, userID).
		Delete(&models.Address{}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete address")
	}
	return nil
}
