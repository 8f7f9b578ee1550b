package plan

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Transact runs fn inside one transaction; every mutating service
	// operation goes through it so financial recomputes commit atomically
	// with the status changes they accompany.
	Transact(ctx context.Context, fn func(Repository) error) error

	Create(ctx context.Context, p *TreatmentPlan) error
	// GetByCode loads a plan with its phases and items, ordered by phase
	// number and item sequence number.
	GetByCode(ctx context.Context, planCode string) (*TreatmentPlan, error)
	GetByID(ctx context.Context, id uuid.UUID) (*TreatmentPlan, error)
	// GetPhase loads a phase with its plan and sibling items.
	GetPhase(ctx context.Context, phaseID uuid.UUID) (*Phase, *TreatmentPlan, error)
	// GetItem loads an item together with its owning phase and plan.
	GetItem(ctx context.Context, itemID uuid.UUID) (*Item, *Phase, *TreatmentPlan, error)

	Save(ctx context.Context, p *TreatmentPlan) error
	SavePhase(ctx context.Context, ph *Phase) error
	SaveItem(ctx context.Context, item *Item) error
	SaveItems(ctx context.Context, items []*Item) error
	DeleteItem(ctx context.Context, item *Item) error

	// ItemsByStatus returns a plan's items with the given status, ordered
	// by phase number then sequence number.
	ItemsByStatus(ctx context.Context, planID uuid.UUID, status ItemStatus) ([]*Item, error)

	AppendAudit(ctx context.Context, entry *AuditLog) error
	AuditTrail(ctx context.Context, planID uuid.UUID) ([]*AuditLog, error)
}
