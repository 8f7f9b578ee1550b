package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/planflow/planflow/internal/domain/plan"
)

// PlanStore is the gorm-backed plan.Repository. Saves omit associations so
// a stale preloaded child is never written back over a row another part of
// the same transaction just updated.
type PlanStore struct {
	db *gorm.DB
}

func NewPlanStore(db *gorm.DB) *PlanStore {
	return &PlanStore{db: db}
}

func (s *PlanStore) Transact(ctx context.Context, fn func(plan.Repository) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PlanStore{db: tx})
	})
}

func (s *PlanStore) Create(ctx context.Context, p *plan.TreatmentPlan) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *PlanStore) GetByCode(ctx context.Context, planCode string) (*plan.TreatmentPlan, error) {
	var p plan.TreatmentPlan
	err := s.withPhases(ctx).Where("plan_code = ?", planCode).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, plan.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading plan %s: %w", planCode, err)
	}
	return &p, nil
}

func (s *PlanStore) GetByID(ctx context.Context, id uuid.UUID) (*plan.TreatmentPlan, error) {
	var p plan.TreatmentPlan
	err := s.withPhases(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, plan.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading plan %s: %w", id, err)
	}
	return &p, nil
}

func (s *PlanStore) withPhases(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Phases", func(db *gorm.DB) *gorm.DB {
			return db.Order("phase_number ASC")
		}).
		Preload("Phases.Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence_number ASC")
		})
}

func (s *PlanStore) GetPhase(ctx context.Context, phaseID uuid.UUID) (*plan.Phase, *plan.TreatmentPlan, error) {
	var ph plan.Phase
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence_number ASC")
		}).
		Where("id = ?", phaseID).First(&ph).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, plan.ErrPhaseNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading phase %s: %w", phaseID, err)
	}

	// The plan row is loaded bare: callers mutate totals on it and read
	// items through the phase, never both through the same pointer.
	var p plan.TreatmentPlan
	if err := s.db.WithContext(ctx).Where("id = ?", ph.PlanID).First(&p).Error; err != nil {
		return nil, nil, fmt.Errorf("loading plan for phase %s: %w", phaseID, err)
	}
	return &ph, &p, nil
}

func (s *PlanStore) GetItem(ctx context.Context, itemID uuid.UUID) (*plan.Item, *plan.Phase, *plan.TreatmentPlan, error) {
	var row plan.Item
	err := s.db.WithContext(ctx).Where("id = ?", itemID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil, plan.ErrItemNotFound
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading item %s: %w", itemID, err)
	}

	ph, p, err := s.GetPhase(ctx, row.PhaseID)
	if err != nil {
		return nil, nil, nil, err
	}

	// Return the element inside ph.Items so status cascades observe the
	// caller's mutation of the item.
	for _, item := range ph.Items {
		if item.ID == itemID {
			return item, ph, p, nil
		}
	}
	return nil, nil, nil, plan.ErrItemNotFound
}

func (s *PlanStore) Save(ctx context.Context, p *plan.TreatmentPlan) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Save(p).Error
}

func (s *PlanStore) SavePhase(ctx context.Context, ph *plan.Phase) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Save(ph).Error
}

func (s *PlanStore) SaveItem(ctx context.Context, item *plan.Item) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Save(item).Error
}

func (s *PlanStore) SaveItems(ctx context.Context, items []*plan.Item) error {
	if len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(items).Error
}

func (s *PlanStore) DeleteItem(ctx context.Context, item *plan.Item) error {
	return s.db.WithContext(ctx).Delete(item).Error
}

func (s *PlanStore) ItemsByStatus(ctx context.Context, planID uuid.UUID, status plan.ItemStatus) ([]*plan.Item, error) {
	var items []*plan.Item
	err := s.db.WithContext(ctx).
		Joins("JOIN treatment.plan_phases ON plan_phases.id = plan_items.phase_id").
		Where("plan_phases.plan_id = ? AND plan_items.status = ?", planID, status).
		Order("plan_phases.phase_number ASC, plan_items.sequence_number ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("loading %s items for plan %s: %w", status, planID, err)
	}
	return items, nil
}

func (s *PlanStore) AppendAudit(ctx context.Context, entry *plan.AuditLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *PlanStore) AuditTrail(ctx context.Context, planID uuid.UUID) ([]*plan.AuditLog, error) {
	var entries []*plan.AuditLog
	err := s.db.WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("loading audit trail for plan %s: %w", planID, err)
	}
	return entries, nil
}
