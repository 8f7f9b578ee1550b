package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/planflow/planflow/internal/domain/plan"
)

type InvoiceStatus string

const (
	StatusPendingPayment InvoiceStatus = "pending_payment"
	StatusPartialPaid    InvoiceStatus = "partial_paid"
	StatusPaid           InvoiceStatus = "paid"
	StatusCancelled      InvoiceStatus = "cancelled"
)

type InvoiceType string

const (
	TypeTreatmentPlan InvoiceType = "treatment_plan"
	TypeSupplemental  InvoiceType = "supplemental"
)

// Invoice is the billing collaborator's view of a plan's charges. This core
// never computes payment state; it only reads Status and asks the Invoicer
// to issue, cancel, or supplement.
type Invoice struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	InvoiceCode string      `gorm:"column:invoice_code;type:varchar(30);uniqueIndex;not null"`
	Type        InvoiceType `gorm:"column:type;type:varchar(20);not null"`

	PlanID    uuid.UUID `gorm:"column:plan_id;type:uuid;not null;index"`
	PatientID uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index"`

	TotalAmount int64         `gorm:"column:total_amount;not null"`
	PaidAmount  int64         `gorm:"column:paid_amount;not null;default:0"`
	Status      InvoiceStatus `gorm:"column:status;type:varchar(20);not null;index"`

	Notes   string     `gorm:"column:notes;type:text"`
	DueDate *time.Time `gorm:"column:due_date"`
}

func (Invoice) TableName() string {
	return "billing.invoices"
}

// Invoicer is the external billing collaborator.
type Invoicer interface {
	IssueForApprovedPlan(ctx context.Context, p *plan.TreatmentPlan) error
	CancelInvoice(ctx context.Context, invoiceID uuid.UUID, reason string) error
	// CreateSupplemental records a price delta against an already-paid or
	// partially-paid plan; amountDelta may be negative.
	CreateSupplemental(ctx context.Context, p *plan.TreatmentPlan, amountDelta int64, reason string) error
	FindForPlan(ctx context.Context, planID uuid.UUID) ([]*Invoice, error)
}

// AnyPaid reports whether any invoice has reached the fully-paid state,
// which locks existing items against edits and deletion.
func AnyPaid(invoices []*Invoice) bool {
	for _, inv := range invoices {
		if inv.Status == StatusPaid {
			return true
		}
	}
	return false
}
