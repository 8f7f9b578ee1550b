package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/planflow/planflow/internal/domain/catalog"
	"github.com/planflow/planflow/internal/domain/plan"
)

func TestAddItems(t *testing.T) {
	actor := uuid.New()
	cat := &fakeCatalog{services: []*catalog.Service{
		{ID: uuid.New(), ServiceCode: "CLEAN", ServiceName: "Cleaning", Price: 200000, DefaultDurationMins: 30, IsActive: true},
		{ID: uuid.New(), ServiceCode: "FILL", ServiceName: "Filling", Price: 500000, DefaultDurationMins: 45, IsActive: true},
		{ID: uuid.New(), ServiceCode: "OLD", ServiceName: "Retired", Price: 100000, IsActive: false},
	}}

	t.Run("quantity expands into sequenced pending items and forces re-review", func(t *testing.T) {
		existing := testItem(3, 100000, plan.ItemPending)
		p := testPlan(plan.ApprovalDraft, existing)
		repo := &fakePlanRepo{plans: []*plan.TreatmentPlan{p}}
		svc := NewItemAdditionService(repo, cat, zap.NewNop())

		result, err := svc.AddItems(context.Background(), p.Phases[0].ID, actor, []plan.AddItemLine{
			{ServiceCode: "CLEAN", Price: 200000, Quantity: 2},
			{ServiceCode: "FILL", Price: 450000, Quantity: 1},
		})
		if err != nil {
			t.Fatalf("AddItems: %v", err)
		}

		if len(result.Items) != 3 {
			t.Fatalf("items created = %d, want 3", len(result.Items))
		}
		for i, want := range []int{4, 5, 6} {
			if got := result.Items[i].SequenceNumber; got != want {
				t.Errorf("item %d sequence = %d, want %d", i, got, want)
			}
			if result.Items[i].Status != plan.ItemPending {
				t.Errorf("item %d status = %s, want %s", i, result.Items[i].Status, plan.ItemPending)
			}
		}
		if result.TotalCostAdded != 850000 {
			t.Errorf("cost added = %d, want 850000", result.TotalCostAdded)
		}
		if result.TotalPriceAfter != 950000 {
			t.Errorf("total price = %d, want 950000", result.TotalPriceAfter)
		}
		if result.ApprovalStatusAfter != plan.ApprovalPendingReview {
			t.Errorf("approval status = %s, want %s", result.ApprovalStatusAfter, plan.ApprovalPendingReview)
		}
		if len(p.Phases[0].Items) != 4 {
			t.Errorf("phase items = %d, want 4", len(p.Phases[0].Items))
		}
	})

	t.Run("price outside the band is rejected", func(t *testing.T) {
		p := testPlan(plan.ApprovalDraft, testItem(1, 100000, plan.ItemPending))
		repo := &fakePlanRepo{plans: []*plan.TreatmentPlan{p}}
		svc := NewItemAdditionService(repo, cat, zap.NewNop())

		// Catalog price for CLEAN is 200000; 50000 is below half of it.
		_, err := svc.AddItems(context.Background(), p.Phases[0].ID, actor, []plan.AddItemLine{
			{ServiceCode: "CLEAN", Price: 50000, Quantity: 1},
		})
		var valid *ValidationError
		if !errors.As(err, &valid) {
			t.Fatalf("err = %v, want ValidationError", err)
		}
	})

	t.Run("inactive service is rejected", func(t *testing.T) {
		p := testPlan(plan.ApprovalDraft, testItem(1, 100000, plan.ItemPending))
		repo := &fakePlanRepo{plans: []*plan.TreatmentPlan{p}}
		svc := NewItemAdditionService(repo, cat, zap.NewNop())

		_, err := svc.AddItems(context.Background(), p.Phases[0].ID, actor, []plan.AddItemLine{
			{ServiceCode: "OLD", Price: 100000, Quantity: 1},
		})
		var valid *ValidationError
		if !errors.As(err, &valid) {
			t.Fatalf("err = %v, want ValidationError", err)
		}
	})

	t.Run("adding to a pending review plan points back to draft", func(t *testing.T) {
		p := testPlan(plan.ApprovalPendingReview, testItem(1, 100000, plan.ItemPending))
		repo := &fakePlanRepo{plans: []*plan.TreatmentPlan{p}}
		svc := NewItemAdditionService(repo, cat, zap.NewNop())

		_, err := svc.AddItems(context.Background(), p.Phases[0].ID, actor, []plan.AddItemLine{
			{ServiceCode: "CLEAN", Price: 200000, Quantity: 1},
		})
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("err = %v, want ConflictError", err)
		}
	})

	t.Run("completed phase rejects additions", func(t *testing.T) {
		p := testPlan(plan.ApprovalDraft, testItem(1, 100000, plan.ItemCompleted))
		p.Phases[0].Status = plan.PhaseCompleted
		repo := &fakePlanRepo{plans: []*plan.TreatmentPlan{p}}
		svc := NewItemAdditionService(repo, cat, zap.NewNop())

		_, err := svc.AddItems(context.Background(), p.Phases[0].ID, actor, []plan.AddItemLine{
			{ServiceCode: "CLEAN", Price: 200000, Quantity: 1},
		})
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("err = %v, want ConflictError", err)
		}
	})
}
