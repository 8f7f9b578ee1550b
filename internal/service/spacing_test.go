package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/planflow/planflow/internal/domain/schedule"
)

func TestValidateSpacing(t *testing.T) {
	patient := uuid.New()
	serviceID := uuid.New()
	related := uuid.New()

	rule := &schedule.SpacingRule{
		RuleName:         "implant healing",
		ServiceID:        serviceID,
		RelatedServiceID: related,
		MinDaysBetween:   14,
	}

	lastVisit := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{latest: &schedule.Booking{
		ServiceID: &related,
		StartTime: lastVisit,
	}}
	eval := NewSpacingEvaluator(&fakeSpacingRules{rules: []*schedule.SpacingRule{rule}}, ledger, 2)

	t.Run("too-early date reports the minimum legal one", func(t *testing.T) {
		violation, err := eval.ValidateSpacing(context.Background(), patient, serviceID, lastVisit.AddDate(0, 0, 5))
		if err != nil {
			t.Fatalf("ValidateSpacing: %v", err)
		}
		if violation == nil {
			t.Fatal("expected a violation")
		}
		if violation.RuleName != "implant healing" {
			t.Errorf("rule name = %q", violation.RuleName)
		}
		want := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
		if !violation.MinimumLegalDate.Equal(want) {
			t.Errorf("minimum legal date = %s, want %s", violation.MinimumLegalDate, want)
		}
	})

	t.Run("date at the boundary passes", func(t *testing.T) {
		violation, err := eval.ValidateSpacing(context.Background(), patient, serviceID, lastVisit.AddDate(0, 0, 14))
		if err != nil {
			t.Fatalf("ValidateSpacing: %v", err)
		}
		if violation != nil {
			t.Errorf("unexpected violation: %+v", violation)
		}
	})

	t.Run("no related booking passes", func(t *testing.T) {
		empty := NewSpacingEvaluator(&fakeSpacingRules{rules: []*schedule.SpacingRule{rule}}, &fakeLedger{}, 2)
		violation, err := empty.ValidateSpacing(context.Background(), patient, serviceID, lastVisit)
		if err != nil {
			t.Fatalf("ValidateSpacing: %v", err)
		}
		if violation != nil {
			t.Errorf("unexpected violation: %+v", violation)
		}
	})
}

func TestValidateDailyLimit(t *testing.T) {
	patient := uuid.New()
	serviceID := uuid.New()
	day := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	busyDay := []*schedule.Booking{
		{StartTime: day.Add(9 * time.Hour), Status: schedule.BookingScheduled},
		{StartTime: day.Add(14 * time.Hour), Status: schedule.BookingCheckedIn},
		{StartTime: day.Add(16 * time.Hour), Status: schedule.BookingCancelled},
	}

	t.Run("cap counts only busy bookings", func(t *testing.T) {
		eval := NewSpacingEvaluator(&fakeSpacingRules{}, &fakeLedger{patientBookings: busyDay}, 2)
		ok, err := eval.ValidateDailyLimit(context.Background(), patient, serviceID, day)
		if err != nil {
			t.Fatalf("ValidateDailyLimit: %v", err)
		}
		if ok {
			t.Errorf("two busy bookings should hit the cap of 2")
		}
	})

	t.Run("cap of three still has room", func(t *testing.T) {
		eval := NewSpacingEvaluator(&fakeSpacingRules{}, &fakeLedger{patientBookings: busyDay}, 3)
		ok, err := eval.ValidateDailyLimit(context.Background(), patient, serviceID, day)
		if err != nil {
			t.Fatalf("ValidateDailyLimit: %v", err)
		}
		if !ok {
			t.Errorf("cancelled booking counted against the cap")
		}
	})

	t.Run("service-specific rule disables the default cap", func(t *testing.T) {
		rules := &fakeSpacingRules{rules: []*schedule.SpacingRule{{
			RuleName:  "custom",
			ServiceID: serviceID,
		}}}
		eval := NewSpacingEvaluator(rules, &fakeLedger{patientBookings: busyDay}, 2)
		ok, err := eval.ValidateDailyLimit(context.Background(), patient, serviceID, day)
		if err != nil {
			t.Fatalf("ValidateDailyLimit: %v", err)
		}
		if !ok {
			t.Errorf("default cap applied despite a service-specific rule")
		}
	})
}
