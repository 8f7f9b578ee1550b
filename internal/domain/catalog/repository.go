package catalog

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Service, error)
	GetByCode(ctx context.Context, serviceCode string) (*Service, error)
}

// ClinicalRules answers prerequisite questions about catalog services.
type ClinicalRules interface {
	HasPrerequisites(ctx context.Context, serviceID uuid.UUID) (bool, error)
}
