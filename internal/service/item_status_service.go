package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/planflow/planflow/internal/domain/catalog"
	"github.com/planflow/planflow/internal/domain/plan"
	"github.com/planflow/planflow/internal/domain/schedule"
)

// ItemStatusService drives the per-item state machine and the cascades
// hanging off it: skip/unskip finance adjustments, next-item activation on
// completion, and phase auto-completion.
type ItemStatusService struct {
	planRepo plan.Repository
	rules    catalog.ClinicalRules
	bookings schedule.BookingLedger
	log      *zap.Logger
}

func NewItemStatusService(
	planRepo plan.Repository,
	rules catalog.ClinicalRules,
	bookings schedule.BookingLedger,
	log *zap.Logger,
) *ItemStatusService {
	return &ItemStatusService{planRepo: planRepo, rules: rules, bookings: bookings, log: log}
}

type UpdateItemStatusResult struct {
	Item *plan.Item
	// NextItemActivated is the sibling promoted out of pending by this
	// completion, if any.
	NextItemActivated *plan.Item
	PhaseCompleted    bool
	FinalCostAfter    int64
}

// UpdateItemStatus moves an item to the requested status after validating
// the transition. Skipping subtracts the item's price from the plan totals
// and undoing a skip adds it back; completing an item stamps a completion
// time, activates the next pending sibling, and closes the phase once no
// actionable item remains.
func (s *ItemStatusService) UpdateItemStatus(ctx context.Context, itemID uuid.UUID, actorID uuid.UUID, cmd plan.UpdateItemStatusCommand) (*UpdateItemStatusResult, error) {
	if !cmd.Status.IsValid() {
		return nil, validationf("unknown item status %q", cmd.Status)
	}

	var result *UpdateItemStatusResult

	err := s.planRepo.Transact(ctx, func(repo plan.Repository) error {
		item, phase, p, err := repo.GetItem(ctx, itemID)
		if err != nil {
			return err
		}

		if item.Status == cmd.Status {
			result = &UpdateItemStatusResult{Item: item, FinalCostAfter: p.FinalCost}
			return nil
		}
		if !item.CanTransitionTo(cmd.Status) {
			return conflictf("item %q cannot move from %s to %s; allowed: %v",
				item.ItemName, item.Status, cmd.Status, item.AllowedTransitions())
		}

		if cmd.Status == plan.ItemSkipped {
			active, err := s.bookings.ActiveBookingsForItem(ctx, item.ID)
			if err != nil {
				return fmt.Errorf("checking linked bookings: %w", err)
			}
			if active > 0 {
				return conflictf("item %q has %d active appointment(s); cancel them before skipping", item.ItemName, active)
			}
		}

		oldStatus := item.Status

		switch {
		case cmd.Status == plan.ItemSkipped:
			p.AddToTotal(-item.Price)
		case oldStatus == plan.ItemSkipped && cmd.Status == plan.ItemReadyForBooking:
			p.AddToTotal(item.Price)
		}

		item.Status = cmd.Status
		if cmd.Status == plan.ItemCompleted {
			completedAt := time.Now()
			if cmd.CompletedAt != nil {
				completedAt = *cmd.CompletedAt
			}
			item.CompletedAt = &completedAt
		}

		if err := repo.SaveItem(ctx, item); err != nil {
			return fmt.Errorf("saving item: %w", err)
		}

		result = &UpdateItemStatusResult{Item: item}

		if cmd.Status == plan.ItemCompleted || cmd.Status == plan.ItemSkipped {
			next, phaseClosed, err := s.cascade(ctx, repo, item, phase, cmd.Status == plan.ItemCompleted)
			if err != nil {
				return err
			}
			result.NextItemActivated = next
			result.PhaseCompleted = phaseClosed
		}

		if err := repo.Save(ctx, p); err != nil {
			return fmt.Errorf("saving plan: %w", err)
		}

		notes := cmd.Notes
		if notes == "" {
			notes = fmt.Sprintf("Item %s (%s): %s -> %s", item.ID, item.ItemName, oldStatus, cmd.Status)
		}
		if err := repo.AppendAudit(ctx, plan.NewAuditLog(
			p.ID, plan.ActionStatusChanged, actorID, p.ApprovalStatus, p.ApprovalStatus, notes,
		)); err != nil {
			return fmt.Errorf("appending audit entry: %w", err)
		}

		result.FinalCostAfter = p.FinalCost
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("item status updated",
		zap.String("item_id", itemID.String()),
		zap.String("status", string(cmd.Status)),
		zap.Bool("phase_completed", result.PhaseCompleted),
		zap.String("actor_id", actorID.String()),
	)
	return result, nil
}

// cascade runs the post-transition effects inside the same transaction:
// on completion the next pending sibling in sequence order is promoted,
// and once every item in the phase is completed or skipped the phase is
// closed with today's date.
func (s *ItemStatusService) cascade(ctx context.Context, repo plan.Repository, item *plan.Item, phase *plan.Phase, completed bool) (*plan.Item, bool, error) {
	var activated *plan.Item

	if completed {
		next := phase.ItemAfter(item.SequenceNumber)
		if next != nil && next.Status == plan.ItemPending {
			hasPrereq, err := s.rules.HasPrerequisites(ctx, next.ServiceID)
			if err != nil {
				return nil, false, fmt.Errorf("checking prerequisites for next item: %w", err)
			}
			if hasPrereq {
				next.Status = plan.ItemWaitingForPrereq
			} else {
				next.Status = plan.ItemReadyForBooking
			}
			if err := repo.SaveItem(ctx, next); err != nil {
				return nil, false, fmt.Errorf("activating next item: %w", err)
			}
			activated = next
		}
	}

	if phase.Status != plan.PhaseCompleted && phase.AllItemsDone() {
		now := time.Now()
		phase.Status = plan.PhaseCompleted
		phase.CompletionDate = &now
		if err := repo.SavePhase(ctx, phase); err != nil {
			return nil, false, fmt.Errorf("completing phase: %w", err)
		}
		return activated, true, nil
	}
	return activated, false, nil
}
