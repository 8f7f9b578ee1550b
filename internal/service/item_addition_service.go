package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/planflow/planflow/internal/domain/catalog"
	"github.com/planflow/planflow/internal/domain/plan"
)

// ItemAdditionService appends billable items to a phase of a draft plan.
// Any cost change sends the plan back through the review gate.
type ItemAdditionService struct {
	planRepo    plan.Repository
	catalogRepo catalog.Repository
	log         *zap.Logger
}

func NewItemAdditionService(planRepo plan.Repository, catalogRepo catalog.Repository, log *zap.Logger) *ItemAdditionService {
	return &ItemAdditionService{planRepo: planRepo, catalogRepo: catalogRepo, log: log}
}

type AddItemsResult struct {
	Items           []*plan.Item
	TotalCostAdded  int64
	TotalPriceAfter int64
	FinalCostAfter  int64
	// ApprovalStatusAfter is always pending_review: a cost change requires
	// re-approval regardless of its size.
	ApprovalStatusAfter plan.ApprovalStatus
}

// AddItems expands each requested line by its quantity into items with
// strictly increasing sequence numbers, adds their prices to the plan
// totals, and moves the plan back to pending_review.
func (s *ItemAdditionService) AddItems(ctx context.Context, phaseID uuid.UUID, actorID uuid.UUID, lines []plan.AddItemLine) (*AddItemsResult, error) {
	if len(lines) == 0 {
		return nil, validationf("at least one item line is required")
	}
	for i, line := range lines {
		if line.Quantity <= 0 {
			return nil, validationf("line %d: quantity must be positive", i+1)
		}
		if line.ServiceCode == "" {
			return nil, validationf("line %d: service code is required", i+1)
		}
	}

	var result *AddItemsResult

	err := s.planRepo.Transact(ctx, func(repo plan.Repository) error {
		phase, p, err := repo.GetPhase(ctx, phaseID)
		if err != nil {
			return err
		}

		if phase.Status == plan.PhaseCompleted {
			return conflictf("cannot add items to completed phase %d (%s)", phase.PhaseNumber, phase.PhaseName)
		}
		if p.ApprovalStatus == plan.ApprovalApproved || p.ApprovalStatus == plan.ApprovalPendingReview {
			return conflictf("cannot add items to plan %s in approval status %q; reject the plan back to draft first", p.PlanCode, p.ApprovalStatus)
		}
		if p.Status == plan.StatusCompleted || p.Status == plan.StatusCancelled {
			return conflictf("cannot add items to %s plan %s", p.Status, p.PlanCode)
		}

		nextSeq := phase.NextSequenceNumber()
		var (
			newItems   []*plan.Item
			totalAdded int64
		)

		for _, line := range lines {
			svc, err := s.catalogRepo.GetByCode(ctx, line.ServiceCode)
			if err != nil {
				return err
			}
			if !svc.IsActive {
				return validationf("service %s is not active", line.ServiceCode)
			}
			if !svc.PriceWithinBand(line.Price) {
				return validationf("price %d for service %s is outside the allowed band around the catalog price %d",
					line.Price, line.ServiceCode, svc.Price)
			}

			for n := 1; n <= line.Quantity; n++ {
				item := &plan.Item{
					PhaseID:               phase.ID,
					ServiceID:             svc.ID,
					SequenceNumber:        nextSeq,
					ItemName:              itemName(svc.ServiceName, line.Quantity, n),
					Price:                 line.Price,
					EstimatedDurationMins: svc.DefaultDurationMins,
					Status:                plan.ItemPending,
				}
				nextSeq++
				newItems = append(newItems, item)
				totalAdded += line.Price
			}
		}

		if err := repo.SaveItems(ctx, newItems); err != nil {
			return fmt.Errorf("inserting items: %w", err)
		}

		p.AddToTotal(totalAdded)

		oldStatus := p.ApprovalStatus
		p.ApprovalStatus = plan.ApprovalPendingReview

		if err := repo.Save(ctx, p); err != nil {
			return fmt.Errorf("saving plan: %w", err)
		}

		notes := fmt.Sprintf("added %d item(s): +%d", len(newItems), totalAdded)
		if err := repo.AppendAudit(ctx, plan.NewAuditLog(
			p.ID, plan.ActionItemAdded, actorID, oldStatus, p.ApprovalStatus, notes,
		)); err != nil {
			return fmt.Errorf("appending audit entry: %w", err)
		}

		result = &AddItemsResult{
			Items:               newItems,
			TotalCostAdded:      totalAdded,
			TotalPriceAfter:     p.TotalPrice,
			FinalCostAfter:      p.FinalCost,
			ApprovalStatusAfter: p.ApprovalStatus,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("items added to phase",
		zap.String("phase_id", phaseID.String()),
		zap.Int("count", len(result.Items)),
		zap.Int64("cost_added", result.TotalCostAdded),
		zap.String("actor_id", actorID.String()),
	)
	return result, nil
}

// itemName suffixes multi-quantity expansions so each row stays readable
// on invoices.
func itemName(serviceName string, quantity, index int) string {
	if quantity > 1 {
		return fmt.Sprintf("%s (%d/%d)", serviceName, index, quantity)
	}
	return serviceName
}
