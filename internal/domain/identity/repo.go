package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no active row matches.
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken is returned by Create when the email is already in use.
	ErrEmailTaken = errors.New("email already registered")
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetActiveByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetActiveByEmail(ctx context.Context, email string) (*Patient, error)
	// EmailExists matches case-insensitively and includes inactive patients.
	EmailExists(ctx context.Context, email string) (bool, error)
}

type ProviderRepository interface {
	Create(ctx context.Context, p *Provider) error
	GetActive(ctx context.Context, id uuid.UUID) (*Provider, error)
	ListActive(ctx context.Context) ([]*Provider, error)
}
