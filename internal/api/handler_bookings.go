package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"computer-booking-backend/internal/booking"
	"computer-booking-backend/internal/rooms"
)

// Home returns the current user and their upcoming bookings.
func (h *Handler) Home(c *gin.Context) {
	user := currentUser(c)
	bookings, err := h.bookings.Upcoming(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "bookings": bookings})
}

// GetNewBooking describes the booking form: the choices and the date window.
func (h *Handler) GetNewBooking(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"title":          "New Booking",
		"rooms":          rooms.All(),
		"periods":        rooms.Periods(),
		"min_date":       h.bookings.Today(),
		"max_days_ahead": h.bookings.MaxDaysAhead(),
	})
}

// PostNewBooking handles POST /new_booking.
func (h *Handler) PostNewBooking(c *gin.Context) {
	var form booking.Form
	if !h.bind(c, &form) {
		return
	}

	b, err := h.bookings.Book(c.Request.Context(), currentUser(c), form)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := flash("Booking Successful!")
	resp["booking"] = b
	c.JSON(http.StatusCreated, resp)
}

// ListOwnBookings handles GET /delete: the user's bookings that can still be cancelled.
func (h *Handler) ListOwnBookings(c *gin.Context) {
	bookings, err := h.bookings.Upcoming(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "no_of_bookings": len(bookings)})
}

// DeleteBooking removes one of the user's bookings matched by every field.
func (h *Handler) DeleteBooking(c *gin.Context) {
	b, err := h.bookings.Cancel(c.Request.Context(), currentUser(c).ID,
		c.Param("room"), c.Param("date"), c.Param("period"), c.Param("purpose"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, flash(fmt.Sprintf("Deleted booking for %s on %s.", b.Purpose, b.Date)))
}
