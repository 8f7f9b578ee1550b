package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/planflow/planflow/internal/domain/billing"
	"github.com/planflow/planflow/internal/domain/catalog"
	"github.com/planflow/planflow/internal/domain/plan"
	"github.com/planflow/planflow/internal/domain/schedule"
)

// fakePlanRepo keeps plans in memory and shares pointers with callers so
// in-transaction mutations are visible the way the gorm store behaves.
type fakePlanRepo struct {
	plans  []*plan.TreatmentPlan
	audits []*plan.AuditLog
}

func (r *fakePlanRepo) Transact(ctx context.Context, fn func(plan.Repository) error) error {
	return fn(r)
}

func (r *fakePlanRepo) Create(ctx context.Context, p *plan.TreatmentPlan) error {
	r.plans = append(r.plans, p)
	return nil
}

func (r *fakePlanRepo) GetByCode(ctx context.Context, planCode string) (*plan.TreatmentPlan, error) {
	for _, p := range r.plans {
		if p.PlanCode == planCode {
			return p, nil
		}
	}
	return nil, plan.ErrPlanNotFound
}

func (r *fakePlanRepo) GetByID(ctx context.Context, id uuid.UUID) (*plan.TreatmentPlan, error) {
	for _, p := range r.plans {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, plan.ErrPlanNotFound
}

func (r *fakePlanRepo) GetPhase(ctx context.Context, phaseID uuid.UUID) (*plan.Phase, *plan.TreatmentPlan, error) {
	for _, p := range r.plans {
		for _, ph := range p.Phases {
			if ph.ID == phaseID {
				return ph, p, nil
			}
		}
	}
	return nil, nil, plan.ErrPhaseNotFound
}

func (r *fakePlanRepo) GetItem(ctx context.Context, itemID uuid.UUID) (*plan.Item, *plan.Phase, *plan.TreatmentPlan, error) {
	for _, p := range r.plans {
		for _, ph := range p.Phases {
			for _, item := range ph.Items {
				if item.ID == itemID {
					return item, ph, p, nil
				}
			}
		}
	}
	return nil, nil, nil, plan.ErrItemNotFound
}

func (r *fakePlanRepo) Save(ctx context.Context, p *plan.TreatmentPlan) error { return nil }
func (r *fakePlanRepo) SavePhase(ctx context.Context, ph *plan.Phase) error   { return nil }
func (r *fakePlanRepo) SaveItem(ctx context.Context, item *plan.Item) error   { return nil }

func (r *fakePlanRepo) SaveItems(ctx context.Context, items []*plan.Item) error {
	for _, item := range items {
		for _, p := range r.plans {
			for _, ph := range p.Phases {
				if ph.ID == item.PhaseID {
					ph.Items = append(ph.Items, item)
				}
			}
		}
	}
	return nil
}

func (r *fakePlanRepo) DeleteItem(ctx context.Context, item *plan.Item) error {
	for _, p := range r.plans {
		for _, ph := range p.Phases {
			for i, existing := range ph.Items {
				if existing.ID == item.ID {
					ph.Items = append(ph.Items[:i], ph.Items[i+1:]...)
					return nil
				}
			}
		}
	}
	return plan.ErrItemNotFound
}

func (r *fakePlanRepo) ItemsByStatus(ctx context.Context, planID uuid.UUID, status plan.ItemStatus) ([]*plan.Item, error) {
	var items []*plan.Item
	for _, p := range r.plans {
		if p.ID != planID {
			continue
		}
		for _, ph := range p.Phases {
			for _, item := range ph.Items {
				if item.Status == status {
					items = append(items, item)
				}
			}
		}
	}
	return items, nil
}

func (r *fakePlanRepo) AppendAudit(ctx context.Context, entry *plan.AuditLog) error {
	r.audits = append(r.audits, entry)
	return nil
}

func (r *fakePlanRepo) AuditTrail(ctx context.Context, planID uuid.UUID) ([]*plan.AuditLog, error) {
	var entries []*plan.AuditLog
	for _, e := range r.audits {
		if e.PlanID == planID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

type fakeCatalog struct {
	services []*catalog.Service
}

func (c *fakeCatalog) GetByID(ctx context.Context, id uuid.UUID) (*catalog.Service, error) {
	for _, svc := range c.services {
		if svc.ID == id {
			return svc, nil
		}
	}
	return nil, catalog.ErrServiceNotFound
}

func (c *fakeCatalog) GetByCode(ctx context.Context, code string) (*catalog.Service, error) {
	for _, svc := range c.services {
		if svc.ServiceCode == code {
			return svc, nil
		}
	}
	return nil, catalog.ErrServiceNotFound
}

func (c *fakeCatalog) HasPrerequisites(ctx context.Context, serviceID uuid.UUID) (bool, error) {
	for _, svc := range c.services {
		if svc.ID == serviceID {
			return svc.RequiresPrerequisite, nil
		}
	}
	return false, nil
}

type invoicerCall struct {
	method string
	delta  int64
	reason string
}

type fakeInvoicer struct {
	invoices []*billing.Invoice
	calls    []invoicerCall
}

func (f *fakeInvoicer) IssueForApprovedPlan(ctx context.Context, p *plan.TreatmentPlan) error {
	f.calls = append(f.calls, invoicerCall{method: "issue"})
	return nil
}

func (f *fakeInvoicer) CancelInvoice(ctx context.Context, invoiceID uuid.UUID, reason string) error {
	f.calls = append(f.calls, invoicerCall{method: "cancel", reason: reason})
	for _, inv := range f.invoices {
		if inv.ID == invoiceID {
			inv.Status = billing.StatusCancelled
		}
	}
	return nil
}

func (f *fakeInvoicer) CreateSupplemental(ctx context.Context, p *plan.TreatmentPlan, amountDelta int64, reason string) error {
	f.calls = append(f.calls, invoicerCall{method: "supplemental", delta: amountDelta, reason: reason})
	return nil
}

func (f *fakeInvoicer) FindForPlan(ctx context.Context, planID uuid.UUID) ([]*billing.Invoice, error) {
	return f.invoices, nil
}

// fakeLedger covers the booking side: conflicts in slot search, active
// bookings that block skips, and the patient history the spacing rules
// read.
type fakeLedger struct {
	conflicts       []*schedule.Booking
	activeByItem    map[uuid.UUID]int
	patientBookings []*schedule.Booking
	latest          *schedule.Booking
}

func (f *fakeLedger) ConflictingBookings(ctx context.Context, doctorID uuid.UUID, windowStart, windowEnd time.Time, statuses []schedule.BookingStatus) ([]*schedule.Booking, error) {
	var out []*schedule.Booking
	window := schedule.Interval{Start: windowStart, End: windowEnd}
	for _, b := range f.conflicts {
		if b.Interval().Overlaps(window) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeLedger) ActiveBookingsForItem(ctx context.Context, itemID uuid.UUID) (int, error) {
	return f.activeByItem[itemID], nil
}

func (f *fakeLedger) PatientBookingsOn(ctx context.Context, patientID uuid.UUID, date time.Time) ([]*schedule.Booking, error) {
	var out []*schedule.Booking
	for _, b := range f.patientBookings {
		if dateOnly(b.StartTime).Equal(dateOnly(date)) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeLedger) LatestBookingForServices(ctx context.Context, patientID uuid.UUID, serviceIDs []uuid.UUID) (*schedule.Booking, error) {
	if f.latest == nil || f.latest.ServiceID == nil {
		return nil, nil
	}
	for _, id := range serviceIDs {
		if *f.latest.ServiceID == id {
			return f.latest, nil
		}
	}
	return nil, nil
}

// fakeCalendar marks weekends and listed dates as holidays.
type fakeCalendar struct {
	holidays map[string]bool
}

func (f *fakeCalendar) IsHoliday(ctx context.Context, date time.Time) (bool, error) {
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return true, nil
	}
	return f.holidays[date.Format("2006-01-02")], nil
}

func (f *fakeCalendar) NextWorkingDay(ctx context.Context, date time.Time) (time.Time, error) {
	d := dateOnly(date).AddDate(0, 0, 1)
	for {
		holiday, _ := f.IsHoliday(ctx, d)
		if !holiday {
			return d, nil
		}
		d = d.AddDate(0, 0, 1)
	}
}

// fakeShifts returns the same work intervals for every date not listed in
// daysOff.
type fakeShifts struct {
	startHour int
	endHour   int
	daysOff   map[string]bool
}

func (f *fakeShifts) ShiftsOn(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]*schedule.Shift, error) {
	if f.daysOff[date.Format("2006-01-02")] {
		return nil, nil
	}
	day := dateOnly(date)
	return []*schedule.Shift{{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		ShiftDate: day,
		StartTime: day.Add(time.Duration(f.startHour) * time.Hour),
		EndTime:   day.Add(time.Duration(f.endHour) * time.Hour),
	}}, nil
}

type fakeRooms struct {
	supporting []uuid.UUID
	active     []uuid.UUID
}

func (f *fakeRooms) RoomsSupporting(ctx context.Context, serviceID uuid.UUID) ([]uuid.UUID, error) {
	return f.supporting, nil
}

func (f *fakeRooms) ActiveRoomsAmong(ctx context.Context, roomIDs []uuid.UUID) ([]uuid.UUID, error) {
	return f.active, nil
}

type fakeSpacingRules struct {
	rules []*schedule.SpacingRule
}

func (f *fakeSpacingRules) RulesForService(ctx context.Context, serviceID uuid.UUID) ([]*schedule.SpacingRule, error) {
	var out []*schedule.SpacingRule
	for _, r := range f.rules {
		if r.ServiceID == serviceID {
			out = append(out, r)
		}
	}
	return out, nil
}
