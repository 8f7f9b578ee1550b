package plan

import (
	"time"

	"github.com/google/uuid"
)

// ItemStatus is the per-item state machine.
//
// State transitions possibilities:
//
//	pending → ready_for_booking | skipped | completed
//	ready_for_booking → scheduled | skipped | completed
//	scheduled → in_progress | completed
//	in_progress → completed
//	skipped → ready_for_booking (undo) | completed
//	completed → (terminal)
//
// waiting_for_prerequisite is entered only by the approval cascade when the
// item's service has unmet prerequisites; the clinical-rules side promotes
// it to ready_for_booking out of band.
type ItemStatus string

const (
	ItemPending          ItemStatus = "pending"
	ItemWaitingForPrereq ItemStatus = "waiting_for_prerequisite"
	ItemReadyForBooking  ItemStatus = "ready_for_booking"
	ItemScheduled        ItemStatus = "scheduled"
	ItemInProgress       ItemStatus = "in_progress"
	ItemCompleted        ItemStatus = "completed"
	ItemSkipped          ItemStatus = "skipped"
)

func (s ItemStatus) IsValid() bool {
	switch s {
	case ItemPending, ItemWaitingForPrereq, ItemReadyForBooking,
		ItemScheduled, ItemInProgress, ItemCompleted, ItemSkipped:
		return true
	}
	return false
}

var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemPending:          {ItemReadyForBooking, ItemSkipped, ItemCompleted},
	ItemWaitingForPrereq: {ItemReadyForBooking, ItemSkipped},
	ItemReadyForBooking:  {ItemScheduled, ItemSkipped, ItemCompleted},
	ItemScheduled:        {ItemInProgress, ItemCompleted},
	ItemInProgress:       {ItemCompleted},
	ItemSkipped:          {ItemReadyForBooking, ItemCompleted},
	ItemCompleted:        {},
}

// Item is one billable procedure line within a phase; the unit the
// auto-scheduler operates on.
type Item struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	PhaseID   uuid.UUID `gorm:"column:phase_id;type:uuid;not null;index"`
	ServiceID uuid.UUID `gorm:"column:service_id;type:uuid;not null;index"`

	// SequenceNumber is unique and increasing within the phase, assigned at
	// creation and never reused.
	SequenceNumber int    `gorm:"column:sequence_number;not null"`
	ItemName       string `gorm:"column:item_name;type:varchar(255);not null"`

	Price                 int64 `gorm:"column:price;not null"`
	EstimatedDurationMins int   `gorm:"column:estimated_duration_mins;not null;default:30"`

	Status      ItemStatus `gorm:"column:status;type:varchar(30);not null;default:'pending';index"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
}

func (Item) TableName() string {
	return "treatment.plan_items"
}

// CanTransitionTo validates against the state machine. A self-transition is
// always allowed (idempotent update).
func (i *Item) CanTransitionTo(next ItemStatus) bool {
	if i.Status == next {
		return true
	}
	for _, s := range itemTransitions[i.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// AllowedTransitions lists the legal targets from the item's current
// status, for conflict messages.
func (i *Item) AllowedTransitions() []ItemStatus {
	return itemTransitions[i.Status]
}

// IsCommitted reports whether the item is tied to a booked or finished
// appointment; committed items cannot be edited or deleted.
func (i *Item) IsCommitted() bool {
	switch i.Status {
	case ItemScheduled, ItemInProgress, ItemCompleted:
		return true
	}
	return false
}

// AddItemLine is one requested line of the add-items operation; it expands
// into Quantity items.
type AddItemLine struct {
	ServiceCode string
	Price       int64
	Quantity    int
	Notes       string
}

type UpdateItemCommand struct {
	ItemName              *string
	Price                 *int64
	EstimatedDurationMins *int
}

func (c *UpdateItemCommand) HasAnyUpdate() bool {
	return c.ItemName != nil || c.Price != nil || c.EstimatedDurationMins != nil
}

type UpdateItemStatusCommand struct {
	Status      ItemStatus
	CompletedAt *time.Time
	Notes       string
}
