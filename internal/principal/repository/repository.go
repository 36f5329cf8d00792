package repository

import (
	"context"

	"tenant-platform/backend/internal/principal/domain"
)

// Repository defines persistence for principals. Session-control fields
// (token_version, current_refresh_hash) are read here but written only by the
// session store.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Principal, error)
	GetByEmail(ctx context.Context, email string) (*domain.Principal, error)
	Create(ctx context.Context, p *domain.Principal) error
	Update(ctx context.Context, p *domain.Principal) error
}
