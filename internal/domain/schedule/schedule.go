package schedule

import (
	"time"

	"github.com/google/uuid"
)

// Interval is a half-open [Start, End) window within one day.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two windows intersect.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && iv.End.After(other.Start)
}

// Shift is one recorded work interval for a doctor on a date.
type Shift struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	DoctorID  uuid.UUID `gorm:"column:doctor_id;type:uuid;not null;index:idx_shifts_doctor_date"`
	ShiftDate time.Time `gorm:"column:shift_date;type:date;not null;index:idx_shifts_doctor_date"`

	StartTime time.Time `gorm:"column:start_time;not null"`
	EndTime   time.Time `gorm:"column:end_time;not null"`
}

func (Shift) TableName() string {
	return "scheduling.shifts"
}

func (s *Shift) Interval() Interval {
	return Interval{Start: s.StartTime, End: s.EndTime}
}

type BookingStatus string

const (
	BookingScheduled  BookingStatus = "scheduled"
	BookingCheckedIn  BookingStatus = "checked_in"
	BookingInProgress BookingStatus = "in_progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
)

// BusyStatuses are the booking states that occupy a doctor's time and block
// a candidate slot.
var BusyStatuses = []BookingStatus{BookingScheduled, BookingCheckedIn, BookingInProgress}

// Booking is an appointment as seen by this core: a time window on a
// doctor's calendar, possibly linked to a plan item.
type Booking struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	DoctorID   uuid.UUID  `gorm:"column:doctor_id;type:uuid;not null;index"`
	PatientID  uuid.UUID  `gorm:"column:patient_id;type:uuid;not null;index"`
	ServiceID  *uuid.UUID `gorm:"column:service_id;type:uuid;index"`
	PlanItemID *uuid.UUID `gorm:"column:plan_item_id;type:uuid;index"`

	StartTime time.Time     `gorm:"column:start_time;not null;index"`
	EndTime   time.Time     `gorm:"column:end_time;not null"`
	Status    BookingStatus `gorm:"column:status;type:varchar(20);not null;index"`
}

func (Booking) TableName() string {
	return "scheduling.bookings"
}

func (b *Booking) Interval() Interval {
	return Interval{Start: b.StartTime, End: b.EndTime}
}

type Room struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	RoomCode string `gorm:"column:room_code;type:varchar(20);uniqueIndex;not null"`
	RoomName string `gorm:"column:room_name;type:varchar(100);not null"`
	IsActive bool   `gorm:"column:is_active;default:true;index"`
}

func (Room) TableName() string {
	return "scheduling.rooms"
}

// RoomService links a room to a service it is equipped for.
type RoomService struct {
	RoomID    uuid.UUID `gorm:"column:room_id;type:uuid;primaryKey"`
	ServiceID uuid.UUID `gorm:"column:service_id;type:uuid;primaryKey;index"`
}

func (RoomService) TableName() string {
	return "scheduling.room_services"
}

type Holiday struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	HolidayDate time.Time `gorm:"column:holiday_date;type:date;uniqueIndex;not null"`
	Description string    `gorm:"column:description;type:varchar(255)"`
}

func (Holiday) TableName() string {
	return "scheduling.holidays"
}

// SpacingRule is a minimum-interval constraint between two related services
// for the same patient (preparation, recovery, or spacing between courses).
type SpacingRule struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	RuleName string `gorm:"column:rule_name;type:varchar(100);not null"`

	ServiceID        uuid.UUID `gorm:"column:service_id;type:uuid;not null;index"`
	RelatedServiceID uuid.UUID `gorm:"column:related_service_id;type:uuid;not null"`

	MinDaysBetween int `gorm:"column:min_days_between;not null"`
}

func (SpacingRule) TableName() string {
	return "scheduling.spacing_rules"
}
