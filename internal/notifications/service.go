package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velostore/storefront-backend/pkg/db/models"
	"github.com/velostore/storefront-backend/pkg/enums"
	pkgerrors "github.com/velostore/storefront-backend/pkg/errors"
)

// CreateInput captures the fields of a new in-app notification.
type CreateInput struct {
	UserID  uuid.UUID
	Type    enums.NotificationType
	Title   string
	Message string
}

// Service manages in-app notifications.
type Service interface {
	Create(ctx context.Context, input CreateInput) error
	CreateInTx(ctx context.Context, tx *gorm.DB, input CreateInput) error
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error
}

type service struct {
	repo Repository
}

// NewService wires a notifications service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) error {
	return s.create(ctx, s.repo, input)
}

func (s *service) CreateInTx(ctx context.Context, tx *gorm.DB, input CreateInput) error {
	return s.create(ctx, s.repo.WithTx(tx), input)
}

func (s *service) create(ctx context.Context, repo Repository, input CreateInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.Title == "" || input.Message == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "title and message required")
	}
	if err := repo.Create(ctx, &models.Notification{
		UserID:  input.UserID,
		Type:    input.Type,
		Title:   input.Title,
		Message: input.Message,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	notifications, err := s.repo.ListByUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	return notifications, nil
}

func (s *service) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	affected, err := s.repo.MarkRead(ctx, notificationID, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found or already read")
	}
	return nil
}
