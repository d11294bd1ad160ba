package model

import "time"

// DateLayout is the storage and wire format of Booking.Date.
const DateLayout = "2006-01-02"

// Booking reserves one computer in Room for Period on Date.
// Nothing prevents duplicates; the number of bookings per slot is bounded by
// the room capacity only.
type Booking struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Room      string    `gorm:"size:64;not null;index:idx_booking_slot,priority:1" json:"room"`
	Date      string    `gorm:"size:10;not null;index:idx_booking_slot,priority:2" json:"date"`
	Period    string    `gorm:"size:2;not null;index:idx_booking_slot,priority:3" json:"period"`
	Purpose   string    `gorm:"size:256;not null" json:"purpose"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
