package plan

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalStatus is the review gate that controls when a plan's costs are
// locked and billing begins. It is independent from the business Status.
//
// State transitions possibilities:
//
//	draft → pending_review → approved
//	pending_review → draft (rejection returns the plan for revision)
type ApprovalStatus string

const (
	ApprovalDraft         ApprovalStatus = "draft"
	ApprovalPendingReview ApprovalStatus = "pending_review"
	ApprovalApproved      ApprovalStatus = "approved"
)

func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalDraft, ApprovalPendingReview, ApprovalApproved:
		return true
	}
	return false
}

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type PhaseStatus string

const (
	PhaseActive    PhaseStatus = "active"
	PhaseCompleted PhaseStatus = "completed"
)

// TreatmentPlan is the root of the phase/item tree for one patient.
// Monetary amounts are whole currency units (VND).
type TreatmentPlan struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`

	PlanCode string `gorm:"column:plan_code;type:varchar(30);uniqueIndex;not null"`
	PlanName string `gorm:"column:plan_name;type:varchar(255);not null"`

	PatientID uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index"`
	// CreatedBy is the authoring doctor; the auto-scheduler falls back to it
	// when no doctor is named in the request.
	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null;index"`

	Status         Status         `gorm:"column:status;type:varchar(20);not null;default:'active';index"`
	ApprovalStatus ApprovalStatus `gorm:"column:approval_status;type:varchar(20);not null;default:'draft';index"`

	TotalPrice     int64 `gorm:"column:total_price;not null;default:0"`
	DiscountAmount int64 `gorm:"column:discount_amount;not null;default:0"`
	// FinalCost is derived; Recalculate is the only writer.
	FinalCost int64 `gorm:"column:final_cost;not null;default:0"`

	ApprovedBy    *uuid.UUID `gorm:"column:approved_by;type:uuid"`
	ApprovedAt    *time.Time `gorm:"column:approved_at"`
	ApprovalNotes string     `gorm:"column:approval_notes;type:text"`

	StartDate       *time.Time `gorm:"column:start_date"`
	ExpectedEndDate *time.Time `gorm:"column:expected_end_date"`

	Phases []*Phase `gorm:"foreignKey:PlanID"`
}

func (TreatmentPlan) TableName() string {
	return "treatment.plans"
}

// Recalculate rederives FinalCost from TotalPrice and the fixed discount.
// Every financial mutation must go through this; FinalCost is never stored
// independently.
func (p *TreatmentPlan) Recalculate() {
	p.FinalCost = p.TotalPrice - p.DiscountAmount
}

// AddToTotal adjusts TotalPrice by delta (negative to subtract) and
// rederives FinalCost.
func (p *TreatmentPlan) AddToTotal(delta int64) {
	p.TotalPrice += delta
	p.Recalculate()
}

func (p *TreatmentPlan) AllItems() []*Item {
	var items []*Item
	for _, phase := range p.Phases {
		items = append(items, phase.Items...)
	}
	return items
}

// HasUnpricedItem reports whether any item across all phases has a price
// of zero or less. Approval is blocked while this holds.
func (p *TreatmentPlan) HasUnpricedItem() bool {
	for _, item := range p.AllItems() {
		if item.Price <= 0 {
			return true
		}
	}
	return false
}

func (p *TreatmentPlan) HasItems() bool {
	for _, phase := range p.Phases {
		if len(phase.Items) > 0 {
			return true
		}
	}
	return false
}

type Phase struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	PlanID uuid.UUID `gorm:"column:plan_id;type:uuid;not null;index"`

	PhaseNumber int         `gorm:"column:phase_number;not null"`
	PhaseName   string      `gorm:"column:phase_name;type:varchar(255);not null"`
	Status      PhaseStatus `gorm:"column:status;type:varchar(20);not null;default:'active'"`

	CompletionDate *time.Time `gorm:"column:completion_date"`

	Items []*Item `gorm:"foreignKey:PhaseID"`
}

func (Phase) TableName() string {
	return "treatment.plan_phases"
}

// NextSequenceNumber returns max(existing)+1. Sequence numbers are assigned
// at creation and never reused, so gaps after deletion are expected.
func (ph *Phase) NextSequenceNumber() int {
	max := 0
	for _, item := range ph.Items {
		if item.SequenceNumber > max {
			max = item.SequenceNumber
		}
	}
	return max + 1
}

// AllItemsDone reports whether every item is COMPLETED or SKIPPED, the
// condition for auto-completing the phase.
func (ph *Phase) AllItemsDone() bool {
	if len(ph.Items) == 0 {
		return false
	}
	for _, item := range ph.Items {
		if item.Status != ItemCompleted && item.Status != ItemSkipped {
			return false
		}
	}
	return true
}

// ItemAfter returns the next item in sequence order after seq, or nil.
// Deletion leaves gaps, so this is the lowest sequence number above seq
// rather than seq+1.
func (ph *Phase) ItemAfter(seq int) *Item {
	var next *Item
	for _, item := range ph.Items {
		if item.SequenceNumber <= seq {
			continue
		}
		if next == nil || item.SequenceNumber < next.SequenceNumber {
			next = item
		}
	}
	return next
}
