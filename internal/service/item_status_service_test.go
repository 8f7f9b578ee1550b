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

func newStatusService(repo *fakePlanRepo, cat *fakeCatalog, ledger *fakeLedger) *ItemStatusService {
	return NewItemStatusService(repo, cat, ledger, zap.NewNop())
}

func TestUpdateItemStatus(t *testing.T) {
	actor := uuid.New()

	t.Run("illegal transition is a conflict", func(t *testing.T) {
		item := testItem(1, 100000, plan.ItemPending)
		p := testPlan(plan.ApprovalApproved, item)
		repo := &fakePlanRepo{plans: []*plan.TreatmentPlan{p}}
		svc := newStatusService(repo, &fakeCatalog{}, &fakeLedger{})

		_, err := svc.UpdateItemStatus(context.Background(), item.ID, actor, plan.UpdateItemStatusCommand{
			Status: plan.ItemInProgress,
		})
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("err = %v, want ConflictError", err)
		}
	})

	t.Run("same status is idempotent", func(t *testing.T) {
		item := testItem(1, 100000, plan.ItemReadyForBooking)
		p := testPlan(plan.ApprovalApproved, item)
		repo := &fakePlanRepo{plans: []*plan.TreatmentPlan{p}}
		svc := newStatusService(repo, &fakeCatalog{}, &fakeLedger{})

		result, err := svc.UpdateItemStatus(context.Background(), item.ID, actor, plan.UpdateItemStatusCommand{
			Status: plan.ItemReadyForBooking,
		})
		if err != nil {
			t.Fatalf("UpdateItemStatus: %v", err)
		}
		if len(repo.audits) != 0 {
			t.Errorf("idempotent update wrote %d audit entries", len(repo.audits))
		}
		if result.Item.Status != plan.ItemReadyForBooking {
			t.Errorf("status = %s", result.Item.Status)
		}
	})

	t.Run("skip with an active linked appointment is blocked", func(t *testing.T) {
		item := testItem(1, 100000, plan.ItemReadyForBooking)
		p := testPlan(plan.ApprovalApproved, item)
		repo := &fakePlanRepo{plans: []*plan.TreatmentPlan{p}}
		ledger := &fakeLedger{activeByItem: map[uuid.UUID]int{item.ID: 1}}
		svc := newStatusService(repo, &fakeCatalog{}, ledger)

		_, err := svc.UpdateItemStatus(context.Background(), item.ID, actor, plan.UpdateItemStatusCommand{
			Status: plan.ItemSkipped,
		})
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("err = %v, want ConflictError", err)
		}
	})

	t.Run("skip and undo round-trip the plan totals", func(t *testing.T) {
		item := testItem(1, 100000, plan.ItemReadyForBooking)
		other := testItem(2, 300000, plan.ItemReadyForBooking)
		p := testPlan(plan.ApprovalApproved, item, other)
		repo := &fakePlanRepo{plans: []*plan.TreatmentPlan{p}}
		svc := newStatusService(repo, &fakeCatalog{}, &fakeLedger{})

		skipped, err := svc.UpdateItemStatus(context.Background(), item.ID, actor, plan.UpdateItemStatusCommand{
			Status: plan.ItemSkipped,
		})
		if err != nil {
			t.Fatalf("skip: %v", err)
		}
		if skipped.FinalCostAfter != 300000 {
			t.Errorf("final cost after skip = %d, want 300000", skipped.FinalCostAfter)
		}

		restored, err := svc.UpdateItemStatus(context.Background(), item.ID, actor, plan.UpdateItemStatusCommand{
			Status: plan.ItemReadyForBooking,
		})
		if err != nil {
			t.Fatalf("undo skip: %v", err)
		}
		if restored.FinalCostAfter != 400000 {
			t.Errorf("final cost after undo = %d, want 400000", restored.FinalCostAfter)
		}
	})

	t.Run("completion stamps time and activates the next pending item", func(t *testing.T) {
		first := testItem(1, 100000, plan.ItemInProgress)
		second := testItem(2, 200000, plan.ItemPending)
		p := testPlan(plan.ApprovalApproved, first, second)
		repo := &fakePlanRepo{plans: []*plan.TreatmentPlan{p}}
		svc := newStatusService(repo, &fakeCatalog{}, &fakeLedger{})

		result, err := svc.UpdateItemStatus(context.Background(), first.ID, actor, plan.UpdateItemStatusCommand{
			Status: plan.ItemCompleted,
		})
		if err != nil {
			t.Fatalf("UpdateItemStatus: %v", err)
		}
		if first.CompletedAt == nil {
			t.Errorf("completion time not stamped")
		}
		if result.NextItemActivated == nil || result.NextItemActivated.ID != second.ID {
			t.Fatalf("next item not activated")
		}
		if second.Status != plan.ItemReadyForBooking {
			t.Errorf("next item status = %s, want %s", second.Status, plan.ItemReadyForBooking)
		}
		if result.PhaseCompleted {
			t.Errorf("phase completed with a pending sibling")
		}
	})

	t.Run("next item with prerequisites parks in waiting", func(t *testing.T) {
		first := testItem(1, 100000, plan.ItemInProgress)
		second := testItem(2, 200000, plan.ItemPending)
		p := testPlan(plan.ApprovalApproved, first, second)
		repo := &fakePlanRepo{plans: []*plan.TreatmentPlan{p}}
		cat := &fakeCatalog{services: []*catalog.Service{
			{ID: second.ServiceID, ServiceCode: "IMPLANT", RequiresPrerequisite: true},
		}}
		svc := newStatusService(repo, cat, &fakeLedger{})

		_, err := svc.UpdateItemStatus(context.Background(), first.ID, actor, plan.UpdateItemStatusCommand{
			Status: plan.ItemCompleted,
		})
		if err != nil {
			t.Fatalf("UpdateItemStatus: %v", err)
		}
		if second.Status != plan.ItemWaitingForPrereq {
			t.Errorf("next item status = %s, want %s", second.Status, plan.ItemWaitingForPrereq)
		}
	})

	t.Run("last completion closes the phase", func(t *testing.T) {
		first := testItem(1, 100000, plan.ItemCompleted)
		second := testItem(2, 200000, plan.ItemSkipped)
		third := testItem(3, 300000, plan.ItemInProgress)
		p := testPlan(plan.ApprovalApproved, first, second, third)
		repo := &fakePlanRepo{plans: []*plan.TreatmentPlan{p}}
		svc := newStatusService(repo, &fakeCatalog{}, &fakeLedger{})

		result, err := svc.UpdateItemStatus(context.Background(), third.ID, actor, plan.UpdateItemStatusCommand{
			Status: plan.ItemCompleted,
		})
		if err != nil {
			t.Fatalf("UpdateItemStatus: %v", err)
		}
		if !result.PhaseCompleted {
			t.Fatalf("phase not completed")
		}
		if p.Phases[0].Status != plan.PhaseCompleted || p.Phases[0].CompletionDate == nil {
			t.Errorf("phase status = %s, completion date = %v", p.Phases[0].Status, p.Phases[0].CompletionDate)
		}
	})
}

func TestItemTransitionTable(t *testing.T) {
	cases := []struct {
		from    plan.ItemStatus
		to      plan.ItemStatus
		allowed bool
	}{
		{plan.ItemPending, plan.ItemReadyForBooking, true},
		{plan.ItemPending, plan.ItemSkipped, true},
		{plan.ItemPending, plan.ItemCompleted, true},
		{plan.ItemPending, plan.ItemInProgress, false},
		{plan.ItemWaitingForPrereq, plan.ItemReadyForBooking, true},
		{plan.ItemWaitingForPrereq, plan.ItemSkipped, true},
		{plan.ItemWaitingForPrereq, plan.ItemCompleted, false},
		{plan.ItemReadyForBooking, plan.ItemScheduled, true},
		{plan.ItemReadyForBooking, plan.ItemSkipped, true},
		{plan.ItemReadyForBooking, plan.ItemCompleted, true},
		{plan.ItemScheduled, plan.ItemInProgress, true},
		{plan.ItemScheduled, plan.ItemCompleted, true},
		{plan.ItemScheduled, plan.ItemSkipped, false},
		{plan.ItemInProgress, plan.ItemCompleted, true},
		{plan.ItemInProgress, plan.ItemSkipped, false},
		{plan.ItemSkipped, plan.ItemReadyForBooking, true},
		{plan.ItemSkipped, plan.ItemCompleted, true},
		{plan.ItemCompleted, plan.ItemReadyForBooking, false},
		{plan.ItemCompleted, plan.ItemSkipped, false},
		// Self-transitions are always allowed.
		{plan.ItemCompleted, plan.ItemCompleted, true},
		{plan.ItemPending, plan.ItemPending, true},
	}

	for _, tc := range cases {
		item := &plan.Item{Status: tc.from}
		if got := item.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: allowed = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}
