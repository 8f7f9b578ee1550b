package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/planflow/planflow/internal/domain/billing"
	"github.com/planflow/planflow/internal/domain/catalog"
	"github.com/planflow/planflow/internal/domain/plan"
)

// ApprovalService owns the plan-level review gate:
// draft → pending_review → approved, with rejection returning to draft.
type ApprovalService struct {
	planRepo plan.Repository
	rules    catalog.ClinicalRules
	invoicer billing.Invoicer
	log      *zap.Logger
}

func NewApprovalService(
	planRepo plan.Repository,
	rules catalog.ClinicalRules,
	invoicer billing.Invoicer,
	log *zap.Logger,
) *ApprovalService {
	return &ApprovalService{planRepo: planRepo, rules: rules, invoicer: invoicer, log: log}
}

type DecideCommand struct {
	Approve bool
	Notes   string
}

// SubmitForReview moves a draft plan into the review queue. The plan must
// have at least one phase and one item.
func (s *ApprovalService) SubmitForReview(ctx context.Context, planCode string, actorID uuid.UUID, notes string) (*plan.TreatmentPlan, error) {
	var updated *plan.TreatmentPlan

	err := s.planRepo.Transact(ctx, func(repo plan.Repository) error {
		p, err := repo.GetByCode(ctx, planCode)
		if err != nil {
			return err
		}

		if p.ApprovalStatus != plan.ApprovalDraft {
			return conflictf("plan %s cannot be submitted in approval status %q; only draft plans can be submitted for review", planCode, p.ApprovalStatus)
		}
		if len(p.Phases) == 0 {
			return validationf("plan %s has no phases; add at least one phase before submitting for review", planCode)
		}
		if !p.HasItems() {
			return validationf("plan %s has no items; add at least one item before submitting for review", planCode)
		}

		oldStatus := p.ApprovalStatus
		p.ApprovalStatus = plan.ApprovalPendingReview
		if err := repo.Save(ctx, p); err != nil {
			return fmt.Errorf("saving plan: %w", err)
		}

		auditNotes := notes
		if auditNotes == "" {
			auditNotes = "submitted for review"
		}
		if err := repo.AppendAudit(ctx, plan.NewAuditLog(
			p.ID, plan.ActionSubmittedForReview, actorID, oldStatus, p.ApprovalStatus, auditNotes,
		)); err != nil {
			return fmt.Errorf("appending audit entry: %w", err)
		}

		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("plan submitted for review",
		zap.String("plan_code", planCode),
		zap.String("actor_id", actorID.String()),
	)
	return updated, nil
}

// Decide approves or rejects a plan in pending_review. Rejection requires
// notes and returns the plan to draft for revision. Approval requires every
// item to carry a positive price; it stamps the approver, cascades item
// activation, and hands the plan to the billing collaborator.
func (s *ApprovalService) Decide(ctx context.Context, planCode string, actorID uuid.UUID, cmd DecideCommand) (*plan.TreatmentPlan, error) {
	var updated *plan.TreatmentPlan

	err := s.planRepo.Transact(ctx, func(repo plan.Repository) error {
		p, err := repo.GetByCode(ctx, planCode)
		if err != nil {
			return err
		}

		if p.ApprovalStatus != plan.ApprovalPendingReview {
			return conflictf("plan %s is in approval status %q; only plans pending review can be approved or rejected", planCode, p.ApprovalStatus)
		}
		if !cmd.Approve && cmd.Notes == "" {
			return validationf("rejection notes are required when rejecting a plan")
		}
		if cmd.Approve && p.HasUnpricedItem() {
			return validationf("cannot approve plan %s while any item is unpriced; update item prices first", planCode)
		}

		oldStatus := p.ApprovalStatus
		now := time.Now()
		action := plan.ActionRejected
		if cmd.Approve {
			p.ApprovalStatus = plan.ApprovalApproved
			action = plan.ActionApproved
		} else {
			p.ApprovalStatus = plan.ApprovalDraft
		}
		p.ApprovedBy = &actorID
		p.ApprovedAt = &now
		if cmd.Notes != "" {
			p.ApprovalNotes = cmd.Notes
		}

		if cmd.Approve {
			if err := s.activateItems(ctx, repo, p); err != nil {
				return err
			}
		}

		if err := repo.Save(ctx, p); err != nil {
			return fmt.Errorf("saving plan: %w", err)
		}

		if err := repo.AppendAudit(ctx, plan.NewAuditLog(
			p.ID, action, actorID, oldStatus, p.ApprovalStatus, cmd.Notes,
		)); err != nil {
			return fmt.Errorf("appending audit entry: %w", err)
		}

		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cmd.Approve {
		// Invoice issuance happens after the approval commits; a billing
		// failure must not roll back the decision and can be retried by
		// the billing side.
		if err := s.invoicer.IssueForApprovedPlan(ctx, updated); err != nil {
			s.log.Error("failed to issue invoices for approved plan",
				zap.String("plan_code", planCode),
				zap.Error(err),
			)
		}
	}

	s.log.Info("plan decision recorded",
		zap.String("plan_code", planCode),
		zap.Bool("approved", cmd.Approve),
		zap.String("actor_id", actorID.String()),
	)
	return updated, nil
}

// activateItems runs the approval cascade: every pending item moves to
// ready_for_booking, or to waiting_for_prerequisite when its service has
// unmet clinical prerequisites.
func (s *ApprovalService) activateItems(ctx context.Context, repo plan.Repository, p *plan.TreatmentPlan) error {
	activated, waiting := 0, 0

	for _, phase := range p.Phases {
		for _, item := range phase.Items {
			if item.Status != plan.ItemPending {
				continue
			}

			hasPrereqs, err := s.rules.HasPrerequisites(ctx, item.ServiceID)
			if err != nil {
				return fmt.Errorf("checking prerequisites for service %s: %w", item.ServiceID, err)
			}

			if hasPrereqs {
				item.Status = plan.ItemWaitingForPrereq
				waiting++
			} else {
				item.Status = plan.ItemReadyForBooking
				activated++
			}

			if err := repo.SaveItem(ctx, item); err != nil {
				return fmt.Errorf("saving item %s: %w", item.ID, err)
			}
		}
	}

	s.log.Info("approval cascade activated items",
		zap.String("plan_code", p.PlanCode),
		zap.Int("ready", activated),
		zap.Int("waiting_for_prerequisite", waiting),
	)
	return nil
}

// AuditTrail returns the append-only history of approval decisions and
// item mutations for a plan.
func (s *ApprovalService) AuditTrail(ctx context.Context, planCode string) ([]*plan.AuditLog, error) {
	p, err := s.planRepo.GetByCode(ctx, planCode)
	if err != nil {
		return nil, err
	}
	return s.planRepo.AuditTrail(ctx, p.ID)
}

// GetPlan loads a plan with phases and items.
func (s *ApprovalService) GetPlan(ctx context.Context, planCode string) (*plan.TreatmentPlan, error) {
	return s.planRepo.GetByCode(ctx, planCode)
}
