package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/planflow/planflow/internal/domain/billing"
	"github.com/planflow/planflow/internal/domain/plan"
)

// InvoiceStore is the billing.Invoicer backed by the billing schema. It
// issues, cancels, and supplements invoices but never marks them paid;
// payment state arrives from the payments side of the system.
type InvoiceStore struct {
	db *gorm.DB
}

func NewInvoiceStore(db *gorm.DB) *InvoiceStore {
	return &InvoiceStore{db: db}
}

func (s *InvoiceStore) IssueForApprovedPlan(ctx context.Context, p *plan.TreatmentPlan) error {
	due := time.Now().AddDate(0, 0, 14)
	inv := &billing.Invoice{
		InvoiceCode: invoiceCode(),
		Type:        billing.TypeTreatmentPlan,
		PlanID:      p.ID,
		PatientID:   p.PatientID,
		TotalAmount: p.FinalCost,
		Status:      billing.StatusPendingPayment,
		Notes:       fmt.Sprintf("treatment plan %s", p.PlanCode),
		DueDate:     &due,
	}
	if err := s.db.WithContext(ctx).Create(inv).Error; err != nil {
		return fmt.Errorf("issuing invoice for plan %s: %w", p.PlanCode, err)
	}
	return nil
}

func (s *InvoiceStore) CancelInvoice(ctx context.Context, invoiceID uuid.UUID, reason string) error {
	res := s.db.WithContext(ctx).Model(&billing.Invoice{}).
		Where("id = ? AND status = ?", invoiceID, billing.StatusPendingPayment).
		Updates(map[string]any{
			"status": billing.StatusCancelled,
			"notes":  gorm.Expr("notes || ?", "; cancelled: "+reason),
		})
	if res.Error != nil {
		return fmt.Errorf("cancelling invoice %s: %w", invoiceID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("invoice %s is not cancellable", invoiceID)
	}
	return nil
}

func (s *InvoiceStore) CreateSupplemental(ctx context.Context, p *plan.TreatmentPlan, amountDelta int64, reason string) error {
	due := time.Now().AddDate(0, 0, 14)
	inv := &billing.Invoice{
		InvoiceCode: invoiceCode(),
		Type:        billing.TypeSupplemental,
		PlanID:      p.ID,
		PatientID:   p.PatientID,
		TotalAmount: amountDelta,
		Status:      billing.StatusPendingPayment,
		Notes:       reason,
		DueDate:     &due,
	}
	if err := s.db.WithContext(ctx).Create(inv).Error; err != nil {
		return fmt.Errorf("creating supplemental invoice for plan %s: %w", p.PlanCode, err)
	}
	return nil
}

func (s *InvoiceStore) FindForPlan(ctx context.Context, planID uuid.UUID) ([]*billing.Invoice, error) {
	var invoices []*billing.Invoice
	err := s.db.WithContext(ctx).
		Where("plan_id = ? AND status <> ?", planID, billing.StatusCancelled).
		Order("created_at ASC").
		Find(&invoices).Error
	if err != nil {
		return nil, fmt.Errorf("loading invoices for plan %s: %w", planID, err)
	}
	return invoices, nil
}

func invoiceCode() string {
	return fmt.Sprintf("INV-%s-%s", time.Now().Format("20060102"), uuid.NewString()[:8])
}
