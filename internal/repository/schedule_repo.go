package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/planflow/planflow/internal/domain/schedule"
)

// ScheduleStore backs every scheduling collaborator interface with the
// scheduling schema: holidays, shifts, bookings, rooms, and spacing rules.
type ScheduleStore struct {
	db *gorm.DB
}

func NewScheduleStore(db *gorm.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// IsHoliday treats weekends as non-working days alongside rows in the
// holidays table.
func (s *ScheduleStore) IsHoliday(ctx context.Context, date time.Time) (bool, error) {
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return true, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&schedule.Holiday{}).
		Where("holiday_date = ?", truncateToDay(date)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking holiday %s: %w", date.Format("2006-01-02"), err)
	}
	return count > 0, nil
}

func (s *ScheduleStore) NextWorkingDay(ctx context.Context, date time.Time) (time.Time, error) {
	d := truncateToDay(date).AddDate(0, 0, 1)
	for i := 0; i < 30; i++ {
		holiday, err := s.IsHoliday(ctx, d)
		if err != nil {
			return time.Time{}, err
		}
		if !holiday {
			return d, nil
		}
		d = d.AddDate(0, 0, 1)
	}
	return time.Time{}, fmt.Errorf("no working day within 30 days after %s", date.Format("2006-01-02"))
}

func (s *ScheduleStore) ShiftsOn(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*schedule.Shift, error) {
	var shifts []*schedule.Shift
	err := s.db.WithContext(ctx).
		Where("doctor_id = ? AND shift_date = ?", doctorID, truncateToDay(date)).
		Order("start_time ASC").
		Find(&shifts).Error
	if err != nil {
		return nil, fmt.Errorf("loading shifts for doctor %s on %s: %w", doctorID, date.Format("2006-01-02"), err)
	}
	return shifts, nil
}

func (s *ScheduleStore) ConflictingBookings(ctx context.Context, doctorID uuid.UUID, windowStart, windowEnd time.Time, statuses []schedule.BookingStatus) ([]*schedule.Booking, error) {
	var bookings []*schedule.Booking
	err := s.db.WithContext(ctx).
		Where("doctor_id = ? AND status IN ? AND start_time < ? AND end_time > ?",
			doctorID, statuses, windowEnd, windowStart).
		Order("start_time ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("loading conflicting bookings for doctor %s: %w", doctorID, err)
	}
	return bookings, nil
}

func (s *ScheduleStore) ActiveBookingsForItem(ctx context.Context, itemID uuid.UUID) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&schedule.Booking{}).
		Where("plan_item_id = ? AND status IN ?", itemID, schedule.BusyStatuses).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting bookings for item %s: %w", itemID, err)
	}
	return int(count), nil
}

func (s *ScheduleStore) PatientBookingsOn(ctx context.Context, patientID uuid.UUID, date time.Time) ([]*schedule.Booking, error) {
	day := truncateToDay(date)
	var bookings []*schedule.Booking
	err := s.db.WithContext(ctx).
		Where("patient_id = ? AND start_time >= ? AND start_time < ?",
			patientID, day, day.AddDate(0, 0, 1)).
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("loading bookings for patient %s on %s: %w", patientID, date.Format("2006-01-02"), err)
	}
	return bookings, nil
}

func (s *ScheduleStore) LatestBookingForServices(ctx context.Context, patientID uuid.UUID, serviceIDs []uuid.UUID) (*schedule.Booking, error) {
	if len(serviceIDs) == 0 {
		return nil, nil
	}
	var booking schedule.Booking
	err := s.db.WithContext(ctx).
		Where("patient_id = ? AND service_id IN ? AND status <> ?",
			patientID, serviceIDs, schedule.BookingCancelled).
		Order("start_time DESC").
		First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading latest booking for patient %s: %w", patientID, err)
	}
	return &booking, nil
}

func (s *ScheduleStore) RoomsSupporting(ctx context.Context, serviceID uuid.UUID) ([]uuid.UUID, error) {
	var roomIDs []uuid.UUID
	err := s.db.WithContext(ctx).Model(&schedule.RoomService{}).
		Where("service_id = ?", serviceID).
		Pluck("room_id", &roomIDs).Error
	if err != nil {
		return nil, fmt.Errorf("loading rooms for service %s: %w", serviceID, err)
	}
	return roomIDs, nil
}

func (s *ScheduleStore) ActiveRoomsAmong(ctx context.Context, roomIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(roomIDs) == 0 {
		return nil, nil
	}
	var active []uuid.UUID
	err := s.db.WithContext(ctx).Model(&schedule.Room{}).
		Where("id IN ? AND is_active", roomIDs).
		Pluck("id", &active).Error
	if err != nil {
		return nil, fmt.Errorf("filtering active rooms: %w", err)
	}
	return active, nil
}

func (s *ScheduleStore) RulesForService(ctx context.Context, serviceID uuid.UUID) ([]*schedule.SpacingRule, error) {
	var rules []*schedule.SpacingRule
	err := s.db.WithContext(ctx).
		Where("service_id = ?", serviceID).
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("loading spacing rules for service %s: %w", serviceID, err)
	}
	return rules, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
