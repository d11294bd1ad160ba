package booking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"computer-booking-backend/config"
	"computer-booking-backend/internal/db"
	"computer-booking-backend/internal/model"
	"computer-booking-backend/internal/notification"
	"computer-booking-backend/internal/store"
	"computer-booking-backend/internal/validate"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification.Confirmation
	err  error
}

func (r *recordingNotifier) Dispatch(_ context.Context, c notification.Confirmation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, c)
	return r.err
}

// Monday 19 October 2026.
var fixedNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, store.Store, *recordingNotifier) {
	gormDB, err := db.Init(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	t.Cleanup(func() { sqlDB.Close() })

	st := store.NewGormStore(gormDB)
	n := &recordingNotifier{}
	svc := NewService(st, validate.NewRules("ridgewoodschool.co.uk"), n, time.UTC, 31)
	svc.now = func() time.Time { return fixedNow }
	return svc, st, n
}

var jane = &model.User{ID: 1, Username: "jane.doe", Email: "jane.doe@ridgewoodschool.co.uk"}

func TestService_Book_CapacityExample(t *testing.T) {
	ctx := context.Background()
	svc, st, n := newTestService(t)

	form := Form{Room: "F76", Date: "2026-10-20", Period: "P1", Purpose: "Computing"}
	for i := 0; i < 4; i++ {
		b, err := svc.Book(ctx, jane, form)
		require.NoError(t, err, "booking %d", i+1)
		assert.NotZero(t, b.ID)
	}

	_, err := svc.Book(ctx, jane, form)
	assert.ErrorIs(t, err, store.ErrRoomFull)

	count, err := st.CountBookings(ctx, "F76", "2026-10-20", "P1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	require.Len(t, n.sent, 4)
	assert.Equal(t, notification.Confirmation{
		UserID: 1, Email: "jane.doe@ridgewoodschool.co.uk", Room: "F76", Date: "2026-10-20", Period: "P1",
	}, n.sent[0])
}

func TestService_Book_ConcurrentRequestsRespectCapacity(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)

	const attempts = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		full    int
		unknown []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := &model.User{ID: int64(i + 1), Email: "x.y@ridgewoodschool.co.uk"}
			_, err := svc.Book(ctx, user, Form{Room: "Library: First Floor", Date: "2026-10-21", Period: "P3", Purpose: "Study"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, store.ErrRoomFull):
				full++
			default:
				unknown = append(unknown, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, unknown)
	assert.Equal(t, 3, ok)
	assert.Equal(t, attempts-3, full)

	count, err := st.CountBookings(ctx, "Library: First Floor", "2026-10-21", "P3")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestService_Book_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _, n := newTestService(t)

	testCases := []struct {
		name     string
		form     Form
		expected validate.Errors
	}{
		{
			name:     "Saturday",
			form:     Form{Room: "F16", Date: "2026-10-24", Period: "P1", Purpose: "Maths"},
			expected: validate.Errors{"date": {validate.MsgDateWeekend}},
		},
		{
			name:     "Past weekday",
			form:     Form{Room: "F16", Date: "2026-10-16", Period: "P1", Purpose: "Maths"},
			expected: validate.Errors{"date": {validate.MsgDatePast}},
		},
		{
			name:     "More than 31 days ahead",
			form:     Form{Room: "F16", Date: "2026-11-20", Period: "P1", Purpose: "Maths"},
			expected: validate.Errors{"date": {validate.MsgDateTooFar}},
		},
		{
			name:     "Not a date",
			form:     Form{Room: "F16", Date: "next tuesday", Period: "P1", Purpose: "Maths"},
			expected: validate.Errors{"date": {validate.MsgDateInvalid}},
		},
		{
			name:     "Blank purpose",
			form:     Form{Room: "F16", Date: "2026-10-20", Period: "P1", Purpose: "   "},
			expected: validate.Errors{"purpose": {"This field is required."}},
		},
		{
			name:     "Purpose longer than the column",
			form:     Form{Room: "F16", Date: "2026-10-20", Period: "P1", Purpose: strings.Repeat("x", 257)},
			expected: validate.Errors{"purpose": {"Field cannot be longer than 256 characters."}},
		},
		{
			name: "Unknown room and period, missing purpose",
			form: Form{Room: "F20", Date: "2026-10-20", Period: "P6"},
			expected: validate.Errors{
				"room":    {"Not a valid choice."},
				"period":  {"Not a valid choice."},
				"purpose": {"This field is required."},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Book(ctx, jane, tc.form)
			var got validate.Errors
			require.True(t, errors.As(err, &got), "expected validation errors, got %v", err)
			assert.Equal(t, tc.expected, got)
		})
	}
	assert.Empty(t, n.sent, "rejected bookings are not confirmed")
}

func TestService_Book_NotifierFailureKeepsBooking(t *testing.T) {
	svc, _, n := newTestService(t)
	n.err = context.DeadlineExceeded

	b, err := svc.Book(context.Background(), jane, Form{Room: "F30", Date: "2026-10-20", Period: "P2", Purpose: "History"})
	require.NoError(t, err)
	assert.NotZero(t, b.ID)
}

func TestService_UpcomingAndCancel(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)

	// A booking made before "today" cannot go through Book, so seed it directly.
	require.NoError(t, st.CreateBookingWithinCapacity(ctx, &model.Booking{UserID: 1, Room: "F16", Date: "2026-10-15", Period: "P1", Purpose: "Old"}, 9))
	_, err := svc.Book(ctx, jane, Form{Room: "F16", Date: "2026-10-22", Period: "P4", Purpose: "Physics"})
	require.NoError(t, err)
	_, err = svc.Book(ctx, jane, Form{Room: "F59", Date: "2026-10-19", Period: "P2", Purpose: "Art"})
	require.NoError(t, err)

	upcoming, err := svc.Upcoming(ctx, 1)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, "2026-10-19", upcoming[0].Date)
	assert.Equal(t, "2026-10-22", upcoming[1].Date)

	_, err = svc.Cancel(ctx, 2, "F16", "2026-10-22", "P4", "Physics")
	assert.ErrorIs(t, err, store.ErrNotFound, "another user's booking is not found")

	deleted, err := svc.Cancel(ctx, 1, "F16", "2026-10-22", "P4", "Physics")
	require.NoError(t, err)
	assert.Equal(t, "Physics", deleted.Purpose)

	_, err = svc.Cancel(ctx, 1, "F16", "2026-10-22", "P4", "Physics")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_Availability(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	for i := 0; i < 2; i++ {
		_, err := svc.Book(ctx, jane, Form{Room: "F76", Date: "2026-10-20", Period: "P5", Purpose: "Music"})
		require.NoError(t, err)
	}

	avail, err := svc.Availability(ctx, "2026-10-20", "P5")
	require.NoError(t, err)
	require.Len(t, avail, 11)
	for _, a := range avail {
		if a.Room == "F76" {
			assert.Equal(t, Availability{Room: "F76", Capacity: 4, Booked: 2, Remaining: 2}, a)
		} else {
			assert.Equal(t, int64(0), a.Booked, a.Room)
			assert.Equal(t, int64(a.Capacity), a.Remaining, a.Room)
		}
	}

	_, err = svc.Availability(ctx, "tomorrow", "P9")
	var verrs validate.Errors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 2)

	on, err := svc.OnDate(ctx, "2026-10-20")
	require.NoError(t, err)
	assert.Len(t, on, 2)
}

func TestService_Today(t *testing.T) {
	svc, _, _ := newTestService(t)
	assert.Equal(t, "2026-10-19", svc.Today())
	assert.Equal(t, 31, svc.MaxDaysAhead())
}
