package repository

import (
	"context"
	"time"

	"tenant-platform/backend/internal/invitation/domain"
)

// Repository defines persistence for invitations.
type Repository interface {
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Invitation, error)
	GetPendingByOrgAndEmail(ctx context.Context, orgID, email string) (*domain.Invitation, error)
	ListByOrg(ctx context.Context, orgID string) ([]*domain.Invitation, error)
	Create(ctx context.Context, i *domain.Invitation) error
	MarkAccepted(ctx context.Context, id string, at time.Time) error
}
