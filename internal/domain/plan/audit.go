package plan

import (
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	ActionSubmittedForReview AuditAction = "SUBMITTED_FOR_REVIEW"
	ActionApproved           AuditAction = "APPROVED"
	ActionRejected           AuditAction = "REJECTED"
	ActionItemAdded          AuditAction = "ITEM_ADDED"
	ActionItemUpdated        AuditAction = "ITEM_UPDATED"
	ActionItemDeleted        AuditAction = "ITEM_DELETED"
	ActionStatusChanged      AuditAction = "ITEM_STATUS_CHANGED"
)

// AuditLog is an immutable record of a state-changing action on a plan.
// Entries are append-only and written in the same transaction as the
// mutation they describe.
type AuditLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`

	PlanID      uuid.UUID   `gorm:"column:plan_id;type:uuid;not null;index"`
	ActionType  AuditAction `gorm:"column:action_type;type:varchar(30);not null;index"`
	PerformedBy uuid.UUID   `gorm:"column:performed_by;type:uuid;not null"`

	OldApprovalStatus ApprovalStatus `gorm:"column:old_approval_status;type:varchar(20)"`
	NewApprovalStatus ApprovalStatus `gorm:"column:new_approval_status;type:varchar(20)"`

	Notes string `gorm:"column:notes;type:text"`
}

func (AuditLog) TableName() string {
	return "treatment.plan_audit_logs"
}

// NewAuditLog builds an entry capturing the approval status before and
// after the action.
func NewAuditLog(planID uuid.UUID, action AuditAction, actorID uuid.UUID, oldStatus, newStatus ApprovalStatus, notes string) *AuditLog {
	return &AuditLog{
		PlanID:            planID,
		ActionType:        action,
		PerformedBy:       actorID,
		OldApprovalStatus: oldStatus,
		NewApprovalStatus: newStatus,
		Notes:             notes,
	}
}
