package store

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"computer-booking-backend/internal/model"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRoomFull is returned when a slot already holds as many bookings as the room has computers.
	ErrRoomFull = errors.New("room fully booked")
	// ErrDuplicate is returned when a unique column (username, email) is already taken.
	ErrDuplicate = errors.New("duplicate record")
)

// DuplicateError reports the unique user columns a write collided with.
// errors.Is(err, ErrDuplicate) holds for it.
type DuplicateError struct {
	Fields []string
}

func (e *DuplicateError) Error() string {
	return "duplicate " + strings.Join(e.Fields, ", ")
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	CreateUser(ctx context.Context, u *model.User) error
	UserByID(ctx context.Context, id int64) (*model.User, error)
	UserByUsername(ctx context.Context, username string) (*model.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)

	CountBookings(ctx context.Context, room, date, period string) (int64, error)
	CreateBookingWithinCapacity(ctx context.Context, b *model.Booking, capacity int) error
	BookingsFrom(ctx context.Context, userID int64, fromDate string) ([]model.Booking, error)
	BookingsOn(ctx context.Context, date string) ([]model.Booking, error)
	SlotCounts(ctx context.Context, date, period string) (map[string]int64, error)
	DeleteBooking(ctx context.Context, match model.Booking) (*model.Booking, error)

	SubscriptionsForUser(ctx context.Context, userID int64) ([]model.PushSubscription, error)
	SaveSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, userID int64, endpoint string) error
	DeleteExpiredSubscription(ctx context.Context, endpoint string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// CreateUser inserts u and fills in its ID. A username or e-mail collision
// is returned as a *DuplicateError naming the taken columns.
func (s *gormStore) CreateUser(ctx context.Context, u *model.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if isUniqueViolation(err) {
			return s.duplicateUser(ctx, u)
		}
		return fmt.Errorf("failed to create user %q: %w", u.Username, err)
	}
	return nil
}

// isUniqueViolation recognises unique index failures from both drivers:
// PostgreSQL errors arrive translated by gorm, SQLite ones as sqlite3.Error.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (s *gormStore) duplicateUser(ctx context.Context, u *model.User) error {
	dup := &DuplicateError{}
	taken, err := s.UsernameTaken(ctx, u.Username)
	if err != nil {
		return err
	}
	if taken {
		dup.Fields = append(dup.Fields, "username")
	}
	taken, err = s.EmailTaken(ctx, u.Email)
	if err != nil {
		return err
	}
	if taken {
		dup.Fields = append(dup.Fields, "email")
	}
	return dup
}

func (s *gormStore) UserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.firstUser(ctx, "id = ?", id)
}

func (s *gormStore) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.firstUser(ctx, "username = ?", username)
}

func (s *gormStore) firstUser(ctx context.Context, query string, arg any) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Where(query, arg).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

func (s *gormStore) UsernameTaken(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, &model.User{}, "username = ?", username)
}

func (s *gormStore) EmailTaken(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, &model.User{}, "email = ?", email)
}

func (s *gormStore) exists(ctx context.Context, m any, query string, args ...any) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(m).Where(query, args...).Count(&n).Error; err != nil {
		return false, fmt.Errorf("existence check failed: %w", err)
	}
	return n > 0, nil
}

// CountBookings returns how many bookings hold the (room, date, period) slot.
func (s *gormStore) CountBookings(ctx context.Context, room, date, period string) (int64, error) {
	return countSlot(s.db.WithContext(ctx), room, date, period)
}

func countSlot(tx *gorm.DB, room, date, period string) (int64, error) {
	var n int64
	err := tx.Model(&model.Booking{}).
		Where("room = ? AND date = ? AND period = ?", room, date, period).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings for %s %s %s: %w", room, date, period, err)
	}
	return n, nil
}

// CreateBookingWithinCapacity inserts b only if its slot holds fewer than
// capacity bookings. The count and the insert run in one transaction that is
// serialised per slot: PostgreSQL takes a transaction-scoped advisory lock,
// SQLite relies on its single writer.
func (s *gormStore) CreateBookingWithinCapacity(ctx context.Context, b *model.Booking, capacity int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", slotKey(b.Room, b.Date, b.Period)).Error; err != nil {
				return fmt.Errorf("failed to lock slot: %w", err)
			}
		}

		n, err := countSlot(tx, b.Room, b.Date, b.Period)
		if err != nil {
			return err
		}
		if n >= int64(capacity) {
			return ErrRoomFull
		}

		if err := tx.Create(b).Error; err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}
		return nil
	})
}

// slotKey hashes a slot into the int64 key space of pg_advisory_xact_lock.
func slotKey(room, date, period string) int64 {
	h := fnv.New64a()
	h.Write([]byte(room))
	h.Write([]byte{0})
	h.Write([]byte(date))
	h.Write([]byte{0})
	h.Write([]byte(period))
	return int64(h.Sum64())
}

// BookingsFrom lists a user's bookings dated fromDate or later.
func (s *gormStore) BookingsFrom(ctx context.Context, userID int64, fromDate string) ([]model.Booking, error) {
	var bookings []model.Booking
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date >= ?", userID, fromDate).
		Order("date, period, id").
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings for user %d: %w", userID, err)
	}
	return bookings, nil
}

// BookingsOn lists every booking on date.
func (s *gormStore) BookingsOn(ctx context.Context, date string) ([]model.Booking, error) {
	var bookings []model.Booking
	err := s.db.WithContext(ctx).
		Where("date = ?", date).
		Order("room, period, id").
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings on %s: %w", date, err)
	}
	return bookings, nil
}

// SlotCounts returns the number of bookings per room for one date and period.
// Rooms without bookings are absent from the map.
func (s *gormStore) SlotCounts(ctx context.Context, date, period string) (map[string]int64, error) {
	type aggRow struct {
		Room  string
		Total int64
	}
	var rows []aggRow
	err := s.db.WithContext(ctx).
		Model(&model.Booking{}).
		Select("room AS room, COUNT(*) AS total").
		Where("date = ? AND period = ?", date, period).
		Group("room").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate bookings: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Room] = r.Total
	}
	return counts, nil
}

// DeleteBooking removes one booking matching owner, room, date, period and
// purpose exactly, and returns it.
func (s *gormStore) DeleteBooking(ctx context.Context, match model.Booking) (*model.Booking, error) {
	var found model.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND room = ? AND date = ? AND period = ? AND purpose = ?",
			match.UserID, match.Room, match.Date, match.Period, match.Purpose).
			Order("id").
			First(&found).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to look up booking: %w", err)
		}
		if err := tx.Delete(&model.Booking{}, found.ID).Error; err != nil {
			return fmt.Errorf("failed to delete booking %d: %w", found.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

func (s *gormStore) SubscriptionsForUser(ctx context.Context, userID int64) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions for user %d: %w", userID, err)
	}
	return subs, nil
}

// SaveSubscription creates or replaces the subscription keyed by its endpoint.
func (s *gormStore) SaveSubscription(ctx context.Context, sub *model.PushSubscription) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth"}),
	}).Create(sub).Error
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

// DeleteSubscription removes a subscription the user owns.
func (s *gormStore) DeleteSubscription(ctx context.Context, userID int64, endpoint string) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND endpoint = ?", userID, endpoint).
		Delete(&model.PushSubscription{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpiredSubscription removes a subscription the push service reported as gone.
func (s *gormStore) DeleteExpiredSubscription(ctx context.Context, endpoint string) error {
	if err := s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return fmt.Errorf("failed to delete expired subscription %s: %w", endpoint, err)
	}
	return nil
}
