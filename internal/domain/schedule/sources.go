package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// HolidayCalendar answers working-day questions. Weekends count as
// non-working days alongside configured holidays.
type HolidayCalendar interface {
	IsHoliday(ctx context.Context, date time.Time) (bool, error)
	NextWorkingDay(ctx context.Context, date time.Time) (time.Time, error)
}

// ShiftSource returns a doctor's recorded work intervals for a date.
type ShiftSource interface {
	ShiftsOn(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*Shift, error)
}

// BookingLedger reports appointments occupying a doctor's calendar and the
// bookings linked to a plan item.
type BookingLedger interface {
	ConflictingBookings(ctx context.Context, doctorID uuid.UUID, windowStart, windowEnd time.Time, statuses []BookingStatus) ([]*Booking, error)
	// ActiveBookingsForItem counts bookings for the item in a busy status;
	// an item with any cannot be skipped.
	ActiveBookingsForItem(ctx context.Context, itemID uuid.UUID) (int, error)
	// PatientBookingsOn returns all of the patient's bookings on a date,
	// used by the daily cap check.
	PatientBookingsOn(ctx context.Context, patientID uuid.UUID, date time.Time) ([]*Booking, error)
	// LatestBookingForServices returns the patient's most recent booking
	// whose service is one of the given IDs, or nil.
	LatestBookingForServices(ctx context.Context, patientID uuid.UUID, serviceIDs []uuid.UUID) (*Booking, error)
}

// RoomDirectory resolves room compatibility for a service.
type RoomDirectory interface {
	RoomsSupporting(ctx context.Context, serviceID uuid.UUID) ([]uuid.UUID, error)
	ActiveRoomsAmong(ctx context.Context, roomIDs []uuid.UUID) ([]uuid.UUID, error)
}

// SpacingRuleSource returns the spacing rules that constrain a service.
type SpacingRuleSource interface {
	RulesForService(ctx context.Context, serviceID uuid.UUID) ([]*SpacingRule, error)
}
