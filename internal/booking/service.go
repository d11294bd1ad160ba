// Package booking implements the capacity-checked booking creator and the
// booking lister/deleter.
package booking

import (
	"context"
	"errors"
	"log"
	"time"

	"computer-booking-backend/internal/metrics"
	"computer-booking-backend/internal/model"
	"computer-booking-backend/internal/notification"
	"computer-booking-backend/internal/rooms"
	"computer-booking-backend/internal/store"
	"computer-booking-backend/internal/validate"
)

// Form is a booking request.
type Form struct {
	Room    string `form:"room" json:"room" binding:"required,room"`
	Date    string `form:"date" json:"date" binding:"required"`
	Period  string `form:"period" json:"period" binding:"required,period"`
	Purpose string `form:"purpose" json:"purpose" binding:"required,notblank,max=256"`
}

// Notifier queues booking confirmations.
type Notifier interface {
	Dispatch(ctx context.Context, c notification.Confirmation) error
}

// Availability is the state of one room for a date and period.
type Availability struct {
	Room      string `json:"room"`
	Capacity  int    `json:"capacity"`
	Booked    int64  `json:"booked"`
	Remaining int64  `json:"remaining"`
}

// Service books computers.
type Service struct {
	store        store.Store
	rules        *validate.Rules
	notifier     Notifier
	loc          *time.Location
	maxDaysAhead int
	now          func() time.Time
}

// NewService creates a booking service. Dates are judged in loc.
func NewService(s store.Store, rules *validate.Rules, notifier Notifier, loc *time.Location, maxDaysAhead int) *Service {
	return &Service{
		store:        s,
		rules:        rules,
		notifier:     notifier,
		loc:          loc,
		maxDaysAhead: maxDaysAhead,
		now:          time.Now,
	}
}

// Today is the current school date as YYYY-MM-DD.
func (s *Service) Today() string {
	return validate.Today(s.now(), s.loc).Format(model.DateLayout)
}

// MaxDaysAhead is how far ahead a booking may be made.
func (s *Service) MaxDaysAhead() int {
	return s.maxDaysAhead
}

// Book validates form and creates the booking if the slot still has a free
// computer. It returns validate.Errors for a bad form and store.ErrRoomFull
// when the room is fully booked. The confirmation is queued, not sent inline.
func (s *Service) Book(ctx context.Context, user *model.User, form Form) (*model.Booking, error) {
	if err := s.validate(form); err != nil {
		metrics.BookingsRejected.WithLabelValues("invalid").Inc()
		return nil, err
	}

	b := &model.Booking{
		UserID:  user.ID,
		Room:    form.Room,
		Date:    form.Date,
		Period:  form.Period,
		Purpose: form.Purpose,
	}
	if err := s.store.CreateBookingWithinCapacity(ctx, b, rooms.Capacity(form.Room)); err != nil {
		if errors.Is(err, store.ErrRoomFull) {
			metrics.BookingsRejected.WithLabelValues("full").Inc()
		}
		return nil, err
	}
	metrics.BookingsCreated.WithLabelValues(b.Room).Inc()

	err := s.notifier.Dispatch(ctx, notification.Confirmation{
		UserID: user.ID,
		Email:  user.Email,
		Room:   b.Room,
		Date:   b.Date,
		Period: b.Period,
	})
	if err != nil {
		log.Printf("could not queue confirmation for booking %d: %v", b.ID, err)
	}
	return b, nil
}

func (s *Service) validate(form Form) error {
	errs := validate.Errors{}
	if err := s.rules.Check(&form); err != nil {
		errs = s.rules.Translate(err)
	}
	if form.Date != "" {
		d, err := validate.ParseDate(form.Date)
		if err != nil {
			errs.Add("date", validate.MsgDateInvalid)
		} else {
			today := validate.Today(s.now(), s.loc)
			for _, msg := range validate.BookingDate(today, d, s.maxDaysAhead) {
				errs.Add("date", msg)
			}
		}
	}
	return errs.OrNil()
}

// Upcoming lists the user's bookings from today on.
func (s *Service) Upcoming(ctx context.Context, userID int64) ([]model.Booking, error) {
	return s.store.BookingsFrom(ctx, userID, s.Today())
}

// Cancel deletes the user's booking that matches room, date, period and
// purpose exactly. It returns store.ErrNotFound when nothing matches.
func (s *Service) Cancel(ctx context.Context, userID int64, room, date, period, purpose string) (*model.Booking, error) {
	b, err := s.store.DeleteBooking(ctx, model.Booking{
		UserID:  userID,
		Room:    room,
		Date:    date,
		Period:  period,
		Purpose: purpose,
	})
	if err != nil {
		return nil, err
	}
	metrics.BookingsDeleted.Inc()
	return b, nil
}

// Availability reports every room's remaining places for date and period.
func (s *Service) Availability(ctx context.Context, date, period string) ([]Availability, error) {
	if err := s.checkSlot(date, period); err != nil {
		return nil, err
	}
	counts, err := s.store.SlotCounts(ctx, date, period)
	if err != nil {
		return nil, err
	}

	all := rooms.All()
	out := make([]Availability, 0, len(all))
	for _, r := range all {
		booked := counts[r.Name]
		remaining := int64(r.Capacity) - booked
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, Availability{Room: r.Name, Capacity: r.Capacity, Booked: booked, Remaining: remaining})
	}
	return out, nil
}

// OnDate lists all bookings on date.
func (s *Service) OnDate(ctx context.Context, date string) ([]model.Booking, error) {
	if _, err := validate.ParseDate(date); err != nil {
		return nil, validate.Errors{"date": {validate.MsgDateInvalid}}
	}
	return s.store.BookingsOn(ctx, date)
}

func (s *Service) checkSlot(date, period string) error {
	errs := validate.Errors{}
	if _, err := validate.ParseDate(date); err != nil {
		errs.Add("date", validate.MsgDateInvalid)
	}
	if _, err := rooms.ParsePeriod(period); err != nil {
		errs.Add("period", "Not a valid choice.")
	}
	return errs.OrNil()
}
