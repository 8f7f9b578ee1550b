package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/planflow/planflow/internal/domain/schedule"
)

// SpacingEvaluator enforces minimum-interval rules between related services
// for one patient, plus a default per-day booking cap for services no rule
// covers.
type SpacingEvaluator struct {
	rules    schedule.SpacingRuleSource
	bookings schedule.BookingLedger

	// DailyBookingCap applies when no service-specific rule exists;
	// zero disables the cap.
	DailyBookingCap int
}

func NewSpacingEvaluator(rules schedule.SpacingRuleSource, bookings schedule.BookingLedger, dailyCap int) *SpacingEvaluator {
	return &SpacingEvaluator{rules: rules, bookings: bookings, DailyBookingCap: dailyCap}
}

// SpacingViolation describes why a candidate date is too close to an
// earlier appointment and the first date that satisfies the rule.
type SpacingViolation struct {
	RuleName         string
	MinDaysBetween   int
	LastRelatedDate  time.Time
	MinimumLegalDate time.Time
}

// ValidateSpacing checks candidateDate against every spacing rule for the
// service. It returns the violation with the latest minimum legal date, or
// nil when all rules pass or none exist.
func (e *SpacingEvaluator) ValidateSpacing(ctx context.Context, patientID, serviceID uuid.UUID, candidateDate time.Time) (*SpacingViolation, error) {
	rules, err := e.rules.RulesForService(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("loading spacing rules: %w", err)
	}

	var worst *SpacingViolation
	for _, rule := range rules {
		last, err := e.bookings.LatestBookingForServices(ctx, patientID, []uuid.UUID{rule.RelatedServiceID})
		if err != nil {
			return nil, fmt.Errorf("loading related bookings: %w", err)
		}
		if last == nil {
			continue
		}

		lastDate := dateOnly(last.StartTime)
		minLegal := lastDate.AddDate(0, 0, rule.MinDaysBetween)
		if dateOnly(candidateDate).Before(minLegal) {
			if worst == nil || minLegal.After(worst.MinimumLegalDate) {
				worst = &SpacingViolation{
					RuleName:         rule.RuleName,
					MinDaysBetween:   rule.MinDaysBetween,
					LastRelatedDate:  lastDate,
					MinimumLegalDate: minLegal,
				}
			}
		}
	}
	return worst, nil
}

// ValidateDailyLimit applies the default per-patient daily cap on dates not
// governed by a service-specific rule. The cap counts only busy bookings;
// cancelled and completed appointments do not block a new one.
func (e *SpacingEvaluator) ValidateDailyLimit(ctx context.Context, patientID, serviceID uuid.UUID, date time.Time) (ok bool, err error) {
	if e.DailyBookingCap <= 0 {
		return true, nil
	}
	rules, err := e.rules.RulesForService(ctx, serviceID)
	if err != nil {
		return false, fmt.Errorf("loading spacing rules: %w", err)
	}
	if len(rules) > 0 {
		return true, nil
	}

	existing, err := e.bookings.PatientBookingsOn(ctx, patientID, dateOnly(date))
	if err != nil {
		return false, fmt.Errorf("loading patient bookings: %w", err)
	}
	busy := 0
	for _, b := range existing {
		for _, s := range schedule.BusyStatuses {
			if b.Status == s {
				busy++
				break
			}
		}
	}
	return busy < e.DailyBookingCap, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
