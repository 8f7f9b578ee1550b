package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/planflow/planflow/internal/domain/plan"
)

// ItemDeletionService removes items from plans that have not yet passed
// the approval gate.
type ItemDeletionService struct {
	planRepo plan.Repository
	log      *zap.Logger
}

func NewItemDeletionService(planRepo plan.Repository, log *zap.Logger) *ItemDeletionService {
	return &ItemDeletionService{planRepo: planRepo, log: log}
}

type DeleteItemResult struct {
	PriceRemoved    int64
	TotalPriceAfter int64
	FinalCostAfter  int64
}

// DeleteItem removes an uncommitted item from a draft plan. The item's
// price is subtracted from the plan totals and the plan persisted before
// the row is deleted; the discount is a fixed amount and is not
// re-proportioned.
func (s *ItemDeletionService) DeleteItem(ctx context.Context, itemID uuid.UUID, actorID uuid.UUID) (*DeleteItemResult, error) {
	var result *DeleteItemResult

	err := s.planRepo.Transact(ctx, func(repo plan.Repository) error {
		item, _, p, err := repo.GetItem(ctx, itemID)
		if err != nil {
			return err
		}

		if item.IsCommitted() {
			return conflictf("cannot delete item %q in status %s; it is already tied to an appointment", item.ItemName, item.Status)
		}
		if p.ApprovalStatus == plan.ApprovalApproved || p.ApprovalStatus == plan.ApprovalPendingReview {
			return conflictf("cannot delete items from plan %s in approval status %q; reject the plan back to draft first", p.PlanCode, p.ApprovalStatus)
		}

		price := item.Price
		name := item.ItemName

		p.AddToTotal(-price)
		if err := repo.Save(ctx, p); err != nil {
			return fmt.Errorf("saving plan: %w", err)
		}
		if err := repo.DeleteItem(ctx, item); err != nil {
			return fmt.Errorf("deleting item: %w", err)
		}

		notes := fmt.Sprintf("Item %s (%s): -%d", item.ID, name, price)
		if err := repo.AppendAudit(ctx, plan.NewAuditLog(
			p.ID, plan.ActionItemDeleted, actorID, p.ApprovalStatus, p.ApprovalStatus, notes,
		)); err != nil {
			return fmt.Errorf("appending audit entry: %w", err)
		}

		result = &DeleteItemResult{
			PriceRemoved:    price,
			TotalPriceAfter: p.TotalPrice,
			FinalCostAfter:  p.FinalCost,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("item deleted",
		zap.String("item_id", itemID.String()),
		zap.Int64("price_removed", result.PriceRemoved),
		zap.String("actor_id", actorID.String()),
	)
	return result, nil
}
