package store

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"computer-booking-backend/config"
	"computer-booking-backend/internal/db"
	"computer-booking-backend/internal/model"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// newSQLiteStore returns a store over a fresh, migrated in-memory database.
func newSQLiteStore(t *testing.T) Store {
	gormDB, err := db.Init(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	t.Cleanup(func() { sqlDB.Close() })
	return NewGormStore(gormDB)
}

func TestGormStore_CreateBookingWithinCapacity_Postgres(t *testing.T) {
	booking := func() *model.Booking {
		return &model.Booking{UserID: 7, Room: "F76", Date: "2026-10-20", Period: "P1", Purpose: "Maths"}
	}

	testCases := []struct {
		name             string
		existing         int
		mockExpectations func(mock sqlmock.Sqlmock)
		expectedErr      error
	}{
		{
			name:     "Slot has room, booking is inserted",
			existing: 3,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
					WithArgs(slotKey("F76", "2026-10-20", "P1")).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "bookings" WHERE room = $1 AND date = $2 AND period = $3`)).
					WithArgs("F76", "2026-10-20", "P1").
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
				mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "bookings"`)).
					WithArgs(int64(7), "F76", "2026-10-20", "P1", "Maths", Any{}).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
				mock.ExpectCommit()
			},
		},
		{
			name: "Slot is full, transaction is rolled back",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock($1)`)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "bookings"`)).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
				mock.ExpectRollback()
			},
			expectedErr: ErrRoomFull,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			store := NewGormStore(gormDB)

			tc.mockExpectations(mock)

			b := booking()
			err := store.CreateBookingWithinCapacity(context.Background(), b, 4)

			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, int64(42), b.ID)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSlotKey(t *testing.T) {
	assert.Equal(t, slotKey("F76", "2026-10-20", "P1"), slotKey("F76", "2026-10-20", "P1"))
	assert.NotEqual(t, slotKey("F76", "2026-10-20", "P1"), slotKey("F76", "2026-10-20", "P2"))
	assert.NotEqual(t, slotKey("F7", "62026-10-20", "P1"), slotKey("F76", "2026-10-20", "P1"))
}

func TestGormStore_CapacityNeverExceeded(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	for i := 0; i < 4; i++ {
		err := s.CreateBookingWithinCapacity(ctx, &model.Booking{UserID: 1, Room: "F76", Date: "2026-10-20", Period: "P1", Purpose: "Art"}, 4)
		require.NoError(t, err)
	}
	err := s.CreateBookingWithinCapacity(ctx, &model.Booking{UserID: 1, Room: "F76", Date: "2026-10-20", Period: "P1", Purpose: "Art"}, 4)
	assert.ErrorIs(t, err, ErrRoomFull)

	// A different period is a different slot.
	err = s.CreateBookingWithinCapacity(ctx, &model.Booking{UserID: 1, Room: "F76", Date: "2026-10-20", Period: "P2", Purpose: "Art"}, 4)
	assert.NoError(t, err)

	n, err := s.CountBookings(ctx, "F76", "2026-10-20", "P1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	counts, err := s.SlotCounts(ctx, "2026-10-20", "P1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"F76": 4}, counts)
}

func TestGormStore_Users(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	u := &model.User{Username: "jane.doe", Email: "jane.doe@ridgewoodschool.co.uk", PasswordHash: "x"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.NotZero(t, u.ID)

	got, err := s.UserByUsername(ctx, "jane.doe")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@ridgewoodschool.co.uk", got.Email)

	_, err = s.UserByUsername(ctx, "john.doe")
	assert.ErrorIs(t, err, ErrNotFound)

	taken, err := s.UsernameTaken(ctx, "jane.doe")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = s.EmailTaken(ctx, "john.doe@ridgewoodschool.co.uk")
	require.NoError(t, err)
	assert.False(t, taken)

	err = s.CreateUser(ctx, &model.User{Username: "jane.doe", Email: "other@ridgewoodschool.co.uk", PasswordHash: "x"})
	assert.ErrorIs(t, err, ErrDuplicate, "unique index on username")
}

func TestGormStore_CreateUser_DuplicateReportsColumn(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	require.NoError(t, s.CreateUser(ctx, &model.User{Username: "jane.doe", Email: "jane.doe@ridgewoodschool.co.uk", PasswordHash: "x"}))

	testCases := []struct {
		name     string
		user     model.User
		expected []string
	}{
		{
			name:     "Email collides",
			user:     model.User{Username: "john.doe", Email: "jane.doe@ridgewoodschool.co.uk", PasswordHash: "x"},
			expected: []string{"email"},
		},
		{
			name:     "Username collides",
			user:     model.User{Username: "jane.doe", Email: "jane.smith@ridgewoodschool.co.uk", PasswordHash: "x"},
			expected: []string{"username"},
		},
		{
			name:     "Both collide",
			user:     model.User{Username: "jane.doe", Email: "jane.doe@ridgewoodschool.co.uk", PasswordHash: "x"},
			expected: []string{"username", "email"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.CreateUser(ctx, &tc.user)
			require.ErrorIs(t, err, ErrDuplicate)
			var dup *DuplicateError
			require.ErrorAs(t, err, &dup)
			assert.Equal(t, tc.expected, dup.Fields)
		})
	}
}

func TestGormStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	seed := []model.Booking{
		{UserID: 1, Room: "F16", Date: "2026-10-16", Period: "P1", Purpose: "Past"},
		{UserID: 1, Room: "F16", Date: "2026-10-21", Period: "P3", Purpose: "Physics"},
		{UserID: 1, Room: "F19", Date: "2026-10-20", Period: "P2", Purpose: "Maths"},
		{UserID: 1, Room: "F19", Date: "2026-10-20", Period: "P2", Purpose: "Maths"},
		{UserID: 2, Room: "F19", Date: "2026-10-20", Period: "P2", Purpose: "Maths"},
	}
	for i := range seed {
		require.NoError(t, s.CreateBookingWithinCapacity(ctx, &seed[i], 12))
	}

	upcoming, err := s.BookingsFrom(ctx, 1, "2026-10-19")
	require.NoError(t, err)
	require.Len(t, upcoming, 3)
	assert.Equal(t, "2026-10-20", upcoming[0].Date)
	assert.Equal(t, "2026-10-21", upcoming[2].Date)

	on, err := s.BookingsOn(ctx, "2026-10-20")
	require.NoError(t, err)
	assert.Len(t, on, 3)

	// Another user's identical booking is not a match.
	_, err = s.DeleteBooking(ctx, model.Booking{UserID: 3, Room: "F19", Date: "2026-10-20", Period: "P2", Purpose: "Maths"})
	assert.ErrorIs(t, err, ErrNotFound)

	// Duplicates are removed one at a time.
	deleted, err := s.DeleteBooking(ctx, model.Booking{UserID: 1, Room: "F19", Date: "2026-10-20", Period: "P2", Purpose: "Maths"})
	require.NoError(t, err)
	assert.Equal(t, seed[2].ID, deleted.ID)

	n, err := s.CountBookings(ctx, "F19", "2026-10-20", "P2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = s.DeleteBooking(ctx, model.Booking{UserID: 1, Room: "F19", Date: "2026-10-20", Period: "P2", Purpose: "maths"})
	assert.ErrorIs(t, err, ErrNotFound, "purpose must match exactly")
}

func TestGormStore_Subscriptions(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	sub := &model.PushSubscription{Endpoint: "https://push.example/a", UserID: 1, P256DH: "k1", Auth: "a1"}
	require.NoError(t, s.SaveSubscription(ctx, sub))

	// Re-saving the endpoint replaces the keys.
	require.NoError(t, s.SaveSubscription(ctx, &model.PushSubscription{Endpoint: "https://push.example/a", UserID: 1, P256DH: "k2", Auth: "a2"}))

	subs, err := s.SubscriptionsForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "k2", subs[0].P256DH)

	assert.ErrorIs(t, s.DeleteSubscription(ctx, 2, "https://push.example/a"), ErrNotFound)
	assert.NoError(t, s.DeleteSubscription(ctx, 1, "https://push.example/a"))

	require.NoError(t, s.SaveSubscription(ctx, &model.PushSubscription{Endpoint: "https://push.example/b", UserID: 1, P256DH: "k", Auth: "a"}))
	require.NoError(t, s.DeleteExpiredSubscription(ctx, "https://push.example/b"))
	subs, err = s.SubscriptionsForUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
