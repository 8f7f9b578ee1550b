package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/planflow/planflow/internal/config"
	"github.com/planflow/planflow/internal/domain/plan"
	"github.com/planflow/planflow/internal/domain/schedule"
)

// FailureCause classifies why no suggestion could be made for an item. The
// caller's remediation differs per cause, so they are kept distinct.
type FailureCause string

const (
	CauseNoShift            FailureCause = "no_shift"
	CauseFullyBooked        FailureCause = "fully_booked"
	CauseNoRoom             FailureCause = "no_compatible_room"
	CauseSpacingUnsatisfied FailureCause = "spacing_unsatisfiable"
)

// EstimateDateFunc produces the starting estimated date for an item from
// its position in the plan. Deterministic; never derived from user input.
type EstimateDateFunc func(now time.Time, item *plan.Item) time.Time

// defaultEstimateDate spreads items a week apart by sequence number.
func defaultEstimateDate(now time.Time, item *plan.Item) time.Time {
	return dateOnly(now).AddDate(0, 0, 7*item.SequenceNumber)
}

type SuggestRequest struct {
	// DoctorID overrides the plan author as the acting doctor.
	DoctorID *uuid.UUID
	// Force skips the spacing pass entirely.
	Force bool
}

// ItemSuggestion is the per-item outcome. Success carries a date and open
// slots; failure carries a cause and message. One item failing never
// affects the others.
type ItemSuggestion struct {
	ItemID   uuid.UUID
	ItemName string

	Success bool
	Date    time.Time
	Slots   []schedule.Interval
	RoomIDs []uuid.UUID

	HolidayAdjusted   bool
	SpacingAdjusted   bool
	DaysShifted       int
	AdjustmentReasons []string

	FailureCause FailureCause
	Message      string
}

type SuggestionSummary struct {
	HolidayAdjustments int
	SpacingAdjustments int
	TotalDaysShifted   int
}

type SuggestResult struct {
	PlanCode    string
	Processed   int
	Succeeded   int
	Failed      int
	Suggestions []*ItemSuggestion
	Summary     SuggestionSummary
}

// AutoScheduleService proposes appointment dates and open slots for every
// bookable item of an approved plan. It is read-only: no booking is created
// and no item status changes.
type AutoScheduleService struct {
	planRepo plan.Repository
	holidays schedule.HolidayCalendar
	shifts   schedule.ShiftSource
	bookings schedule.BookingLedger
	rooms    schedule.RoomDirectory
	spacing  *SpacingEvaluator
	cfg      config.SchedulerConfig
	log      *zap.Logger

	// EstimateDate is swappable so callers can plug a different pacing
	// heuristic without touching the search.
	EstimateDate EstimateDateFunc

	now func() time.Time
}

func NewAutoScheduleService(
	planRepo plan.Repository,
	holidays schedule.HolidayCalendar,
	shifts schedule.ShiftSource,
	bookings schedule.BookingLedger,
	rooms schedule.RoomDirectory,
	spacing *SpacingEvaluator,
	cfg config.SchedulerConfig,
	log *zap.Logger,
) *AutoScheduleService {
	return &AutoScheduleService{
		planRepo:     planRepo,
		holidays:     holidays,
		shifts:       shifts,
		bookings:     bookings,
		rooms:        rooms,
		spacing:      spacing,
		cfg:          cfg,
		log:          log,
		EstimateDate: defaultEstimateDate,
		now:          time.Now,
	}
}

// GenerateSuggestions runs the per-item search for every ready_for_booking
// item of the plan and accumulates independent outcomes into one response.
func (s *AutoScheduleService) GenerateSuggestions(ctx context.Context, planCode string, req SuggestRequest) (*SuggestResult, error) {
	p, err := s.planRepo.GetByCode(ctx, planCode)
	if err != nil {
		return nil, err
	}
	if p.ApprovalStatus != plan.ApprovalApproved {
		return nil, conflictf("plan %s is %s; suggestions require an approved plan", p.PlanCode, p.ApprovalStatus)
	}

	doctorID := p.CreatedBy
	if req.DoctorID != nil {
		doctorID = *req.DoctorID
	}

	result := &SuggestResult{PlanCode: p.PlanCode}
	for _, item := range p.AllItems() {
		if item.Status != plan.ItemReadyForBooking {
			continue
		}
		result.Processed++

		sg := s.suggestForItem(ctx, p, item, doctorID, req.Force)
		result.Suggestions = append(result.Suggestions, sg)
		if sg.Success {
			result.Succeeded++
			if sg.HolidayAdjusted {
				result.Summary.HolidayAdjustments++
			}
			if sg.SpacingAdjusted {
				result.Summary.SpacingAdjustments++
			}
			result.Summary.TotalDaysShifted += sg.DaysShifted
		} else {
			result.Failed++
		}
	}

	s.log.Info("suggestions generated",
		zap.String("plan_code", p.PlanCode),
		zap.Int("processed", result.Processed),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *AutoScheduleService) suggestForItem(ctx context.Context, p *plan.TreatmentPlan, item *plan.Item, doctorID uuid.UUID, force bool) *ItemSuggestion {
	sg := &ItemSuggestion{ItemID: item.ID, ItemName: item.ItemName}

	estimated := s.EstimateDate(s.now(), item)

	date, reasons, err := s.adjustDate(ctx, doctorID, estimated)
	if err != nil {
		return s.fail(sg, CauseNoShift, err.Error())
	}

	if !force {
		date, reasons, err = s.applySpacing(ctx, p, item, doctorID, date, reasons)
		if err != nil {
			return s.fail(sg, CauseSpacingUnsatisfied, err.Error())
		}
	}

	sg.Date = date
	sg.DaysShifted = int(date.Sub(dateOnly(estimated)).Hours() / 24)
	sg.AdjustmentReasons = reasons
	for _, r := range reasons {
		switch r {
		case "holiday", "weekend", "no shift":
			sg.HolidayAdjusted = true
		default:
			sg.SpacingAdjusted = true
		}
	}

	slots, roomIDs, cause, err := s.findSlots(ctx, doctorID, item, date)
	if err != nil {
		return s.fail(sg, cause, err.Error())
	}
	sg.Success = true
	sg.Slots = slots
	sg.RoomIDs = roomIDs
	return sg
}

func (s *AutoScheduleService) fail(sg *ItemSuggestion, cause FailureCause, msg string) *ItemSuggestion {
	sg.Success = false
	sg.FailureCause = cause
	sg.Message = msg
	s.log.Warn("no suggestion for item",
		zap.String("item_id", sg.ItemID.String()),
		zap.String("cause", string(cause)),
		zap.String("reason", msg),
	)
	return sg
}

// adjustDate scans forward from the starting date, bounded by the horizon,
// until it finds a day that is neither a holiday nor shiftless for the
// doctor. It returns the reasons for each skipped day kind, deduplicated.
func (s *AutoScheduleService) adjustDate(ctx context.Context, doctorID uuid.UUID, from time.Time) (time.Time, []string, error) {
	date := dateOnly(from)
	seen := map[string]bool{}
	var reasons []string
	addReason := func(r string) {
		if !seen[r] {
			seen[r] = true
			reasons = append(reasons, r)
		}
	}

	for i := 0; i < s.cfg.HorizonDays; i++ {
		holiday, err := s.holidays.IsHoliday(ctx, date)
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("holiday lookup for %s: %w", date.Format("2006-01-02"), err)
		}
		if holiday {
			if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
				addReason("weekend")
			} else {
				addReason("holiday")
			}
			date = date.AddDate(0, 0, 1)
			continue
		}

		shifts, err := s.shifts.ShiftsOn(ctx, doctorID, date)
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("shift lookup for %s: %w", date.Format("2006-01-02"), err)
		}
		if len(shifts) == 0 {
			addReason("no shift")
			date = date.AddDate(0, 0, 1)
			continue
		}
		return date, reasons, nil
	}

	return time.Time{}, nil, fmt.Errorf("no working day with a shift for the doctor within %d days of %s",
		s.cfg.HorizonDays, dateOnly(from).Format("2006-01-02"))
}

// applySpacing validates the adjusted date against the spacing rules and
// the default daily cap, pushing the date forward and re-running the
// working-day adjustment until both pass. The loop is bounded; a date that
// still violates after that is reported as unsatisfiable.
func (s *AutoScheduleService) applySpacing(ctx context.Context, p *plan.TreatmentPlan, item *plan.Item, doctorID uuid.UUID, date time.Time, reasons []string) (time.Time, []string, error) {
	const maxPasses = 5

	for pass := 0; pass < maxPasses; pass++ {
		violation, err := s.spacing.ValidateSpacing(ctx, p.PatientID, item.ServiceID, date)
		if err != nil {
			return time.Time{}, nil, err
		}
		if violation != nil {
			reasons = append(reasons, violation.RuleName)
			date, reasons, err = s.readjust(ctx, doctorID, violation.MinimumLegalDate, reasons)
			if err != nil {
				return time.Time{}, nil, err
			}
			continue
		}

		ok, err := s.spacing.ValidateDailyLimit(ctx, p.PatientID, item.ServiceID, date)
		if err != nil {
			return time.Time{}, nil, err
		}
		if !ok {
			reasons = append(reasons, "daily booking limit")
			date, reasons, err = s.readjust(ctx, doctorID, date.AddDate(0, 0, 1), reasons)
			if err != nil {
				return time.Time{}, nil, err
			}
			continue
		}

		return date, reasons, nil
	}

	return time.Time{}, nil, fmt.Errorf("could not satisfy spacing rules for %q within %d adjustment passes", item.ItemName, maxPasses)
}

func (s *AutoScheduleService) readjust(ctx context.Context, doctorID uuid.UUID, from time.Time, reasons []string) (time.Time, []string, error) {
	date, more, err := s.adjustDate(ctx, doctorID, from)
	if err != nil {
		return time.Time{}, nil, err
	}
	return date, append(reasons, more...), nil
}

// findSlots returns the open slots for the item on the date. A slot
// requires both free doctor time and at least one active room equipped for
// the service; the failure causes are kept distinct for the caller.
func (s *AutoScheduleService) findSlots(ctx context.Context, doctorID uuid.UUID, item *plan.Item, date time.Time) ([]schedule.Interval, []uuid.UUID, FailureCause, error) {
	shifts, err := s.shifts.ShiftsOn(ctx, doctorID, date)
	if err != nil {
		return nil, nil, CauseNoShift, fmt.Errorf("shift lookup: %w", err)
	}
	if len(shifts) == 0 {
		return nil, nil, CauseNoShift, fmt.Errorf("doctor has no shift on %s", date.Format("2006-01-02"))
	}

	supporting, err := s.rooms.RoomsSupporting(ctx, item.ServiceID)
	if err != nil {
		return nil, nil, CauseNoRoom, fmt.Errorf("room lookup: %w", err)
	}
	active, err := s.rooms.ActiveRoomsAmong(ctx, supporting)
	if err != nil {
		return nil, nil, CauseNoRoom, fmt.Errorf("room lookup: %w", err)
	}
	if len(active) == 0 {
		return nil, nil, CauseNoRoom, fmt.Errorf("no active room supports the service for %q on %s", item.ItemName, date.Format("2006-01-02"))
	}

	duration := time.Duration(item.EstimatedDurationMins) * time.Minute
	stride := time.Duration(s.cfg.SlotStrideMins) * time.Minute

	var slots []schedule.Interval
	for _, shift := range shifts {
		busy, err := s.bookings.ConflictingBookings(ctx, doctorID, shift.StartTime, shift.EndTime, schedule.BusyStatuses)
		if err != nil {
			return nil, nil, CauseFullyBooked, fmt.Errorf("booking lookup: %w", err)
		}

		for start := shift.StartTime; !start.Add(duration).After(shift.EndTime); start = start.Add(stride) {
			candidate := schedule.Interval{Start: start, End: start.Add(duration)}
			free := true
			for _, b := range busy {
				if candidate.Overlaps(b.Interval()) {
					free = false
					break
				}
			}
			if free {
				slots = append(slots, candidate)
			}
		}
	}

	if len(slots) == 0 {
		return nil, nil, CauseFullyBooked, fmt.Errorf("doctor is fully booked on %s", date.Format("2006-01-02"))
	}
	return slots, active, "", nil
}
