package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/planflow/planflow/internal/domain/plan"
)

func TestDeleteItem(t *testing.T) {
	actor := uuid.New()

	t.Run("subtracts price before deleting and keeps the fixed discount", func(t *testing.T) {
		keep := testItem(1, 100000, plan.ItemPending)
		doomed := testItem(2, 200000, plan.ItemPending)
		p := testPlan(plan.ApprovalDraft, keep, doomed)
		p.DiscountAmount = 50000
		p.Recalculate()

		repo := &fakePlanRepo{plans: []*plan.TreatmentPlan{p}}
		svc := NewItemDeletionService(repo, zap.NewNop())

		result, err := svc.DeleteItem(context.Background(), doomed.ID, actor)
		if err != nil {
			t.Fatalf("DeleteItem: %v", err)
		}

		if result.TotalPriceAfter != 100000 {
			t.Errorf("total price = %d, want 100000", result.TotalPriceAfter)
		}
		if result.FinalCostAfter != 50000 {
			t.Errorf("final cost = %d, want 50000", result.FinalCostAfter)
		}
		if len(p.Phases[0].Items) != 1 || p.Phases[0].Items[0].ID != keep.ID {
			t.Errorf("wrong item deleted")
		}

		if len(repo.audits) != 1 {
			t.Fatalf("audit entries = %d, want 1", len(repo.audits))
		}
		wantNotes := fmt.Sprintf("Item %s (Item): -200000", doomed.ID)
		if repo.audits[0].Notes != wantNotes {
			t.Errorf("audit notes = %q, want %q", repo.audits[0].Notes, wantNotes)
		}
	})

	t.Run("committed item cannot be deleted", func(t *testing.T) {
		for _, status := range []plan.ItemStatus{plan.ItemScheduled, plan.ItemInProgress, plan.ItemCompleted} {
			item := testItem(1, 100000, status)
			p := testPlan(plan.ApprovalDraft, item)
			repo := &fakePlanRepo{plans: []*plan.TreatmentPlan{p}}
			svc := NewItemDeletionService(repo, zap.NewNop())

			_, err := svc.DeleteItem(context.Background(), item.ID, actor)
			var conflict *ConflictError
			if !errors.As(err, &conflict) {
				t.Errorf("status %s: err = %v, want ConflictError", status, err)
			}
		}
	})

	t.Run("approved and pending review plans reject deletion", func(t *testing.T) {
		for _, approval := range []plan.ApprovalStatus{plan.ApprovalApproved, plan.ApprovalPendingReview} {
			item := testItem(1, 100000, plan.ItemPending)
			p := testPlan(approval, item)
			repo := &fakePlanRepo{plans: []*plan.TreatmentPlan{p}}
			svc := NewItemDeletionService(repo, zap.NewNop())

			_, err := svc.DeleteItem(context.Background(), item.ID, actor)
			var conflict *ConflictError
			if !errors.As(err, &conflict) {
				t.Errorf("approval %s: err = %v, want ConflictError", approval, err)
			}
		}
	})

	t.Run("unknown item is not found", func(t *testing.T) {
		repo := &fakePlanRepo{}
		svc := NewItemDeletionService(repo, zap.NewNop())

		_, err := svc.DeleteItem(context.Background(), uuid.New(), actor)
		if !errors.Is(err, plan.ErrItemNotFound) {
			t.Fatalf("err = %v, want ErrItemNotFound", err)
		}
	})
}
