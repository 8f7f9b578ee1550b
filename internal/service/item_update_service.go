package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/planflow/planflow/internal/domain/billing"
	"github.com/planflow/planflow/internal/domain/plan"
)

// ItemUpdateService patches individual items and keeps plan totals and
// external invoices in step with price changes.
type ItemUpdateService struct {
	planRepo plan.Repository
	invoicer billing.Invoicer
	log      *zap.Logger
}

func NewItemUpdateService(planRepo plan.Repository, invoicer billing.Invoicer, log *zap.Logger) *ItemUpdateService {
	return &ItemUpdateService{planRepo: planRepo, invoicer: invoicer, log: log}
}

type UpdateItemResult struct {
	Item            *plan.Item
	PriceDelta      int64
	TotalPriceAfter int64
	FinalCostAfter  int64
}

// UpdateItem applies the non-empty fields of cmd to an item. A price change
// adjusts the plan totals by the delta; on an approved plan it also
// synchronizes billing: an unpaid invoice is cancelled and reissued, a
// partially-paid one is left untouched and a supplemental invoice covers
// the delta. Fully-paid plans reject item edits outright.
func (s *ItemUpdateService) UpdateItem(ctx context.Context, itemID uuid.UUID, actorID uuid.UUID, cmd plan.UpdateItemCommand) (*UpdateItemResult, error) {
	if !cmd.HasAnyUpdate() {
		return nil, validationf("no fields to update")
	}
	if cmd.Price != nil && *cmd.Price <= 0 {
		return nil, validationf("price must be positive")
	}
	if cmd.EstimatedDurationMins != nil && *cmd.EstimatedDurationMins <= 0 {
		return nil, validationf("estimated duration must be positive")
	}

	var (
		result   *UpdateItemResult
		syncPlan *plan.TreatmentPlan
	)

	err := s.planRepo.Transact(ctx, func(repo plan.Repository) error {
		item, _, p, err := repo.GetItem(ctx, itemID)
		if err != nil {
			return err
		}

		if item.IsCommitted() {
			return conflictf("cannot update item %q in status %s", item.ItemName, item.Status)
		}
		if p.ApprovalStatus == plan.ApprovalPendingReview {
			return conflictf("plan %s is pending review; reject it back to draft before editing items", p.PlanCode)
		}

		invoices, err := s.invoicer.FindForPlan(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("looking up invoices: %w", err)
		}
		if p.ApprovalStatus == plan.ApprovalApproved && billing.AnyPaid(invoices) {
			return conflictf("plan %s has a fully paid invoice; existing items are locked, add new items instead", p.PlanCode)
		}

		var priceDelta int64
		if cmd.ItemName != nil {
			item.ItemName = *cmd.ItemName
		}
		if cmd.EstimatedDurationMins != nil {
			item.EstimatedDurationMins = *cmd.EstimatedDurationMins
		}
		if cmd.Price != nil && *cmd.Price != item.Price {
			priceDelta = *cmd.Price - item.Price
			item.Price = *cmd.Price
		}

		if err := repo.SaveItem(ctx, item); err != nil {
			return fmt.Errorf("saving item: %w", err)
		}

		if priceDelta != 0 {
			p.AddToTotal(priceDelta)
			if err := repo.Save(ctx, p); err != nil {
				return fmt.Errorf("saving plan: %w", err)
			}
			if p.ApprovalStatus == plan.ApprovalApproved {
				regenerate, err := s.syncInvoices(ctx, p, invoices, priceDelta, item.ItemName)
				if err != nil {
					return err
				}
				if regenerate {
					syncPlan = p
				}
			}
		}

		notes := fmt.Sprintf("Item %s (%s)", item.ID, item.ItemName)
		if priceDelta != 0 {
			notes = fmt.Sprintf("%s: %+d", notes, priceDelta)
		}
		if err := repo.AppendAudit(ctx, plan.NewAuditLog(
			p.ID, plan.ActionItemUpdated, actorID, p.ApprovalStatus, p.ApprovalStatus, notes,
		)); err != nil {
			return fmt.Errorf("appending audit entry: %w", err)
		}

		result = &UpdateItemResult{
			Item:            item,
			PriceDelta:      priceDelta,
			TotalPriceAfter: p.TotalPrice,
			FinalCostAfter:  p.FinalCost,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Regeneration runs outside the transaction: a billing outage must not
	// roll back an already-applied edit.
	if syncPlan != nil {
		if err := s.invoicer.IssueForApprovedPlan(ctx, syncPlan); err != nil {
			s.log.Error("reissuing invoice after item update failed",
				zap.String("plan_code", syncPlan.PlanCode), zap.Error(err))
		}
	}

	s.log.Info("item updated",
		zap.String("item_id", itemID.String()),
		zap.Int64("price_delta", result.PriceDelta),
		zap.String("actor_id", actorID.String()),
	)
	return result, nil
}

// syncInvoices cancels unpaid invoices so they can be regenerated with the
// new total; partially-paid invoices stay as issued and the delta is billed
// through a supplemental invoice.
func (s *ItemUpdateService) syncInvoices(ctx context.Context, p *plan.TreatmentPlan, invoices []*billing.Invoice, priceDelta int64, itemName string) (regenerate bool, err error) {
	reason := fmt.Sprintf("price change on item %q: %+d", itemName, priceDelta)

	needsSupplemental := false
	for _, inv := range invoices {
		switch inv.Status {
		case billing.StatusPendingPayment:
			if err := s.invoicer.CancelInvoice(ctx, inv.ID, reason); err != nil {
				return false, fmt.Errorf("cancelling invoice %s: %w", inv.InvoiceCode, err)
			}
			regenerate = true
		case billing.StatusPartialPaid:
			needsSupplemental = true
		}
	}
	if needsSupplemental {
		if err := s.invoicer.CreateSupplemental(ctx, p, priceDelta, reason); err != nil {
			return false, fmt.Errorf("creating supplemental invoice: %w", err)
		}
	}
	return regenerate, nil
}
