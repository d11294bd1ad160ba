package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"computer-booking-backend/internal/rooms"
)

// GetRooms lists the bookable rooms with their capacities.
func GetRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": rooms.All()})
}

// GetPeriods lists the periods in order.
func GetPeriods(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"periods": rooms.Periods()})
}

// GetAvailability handles GET /api/availability?date=&period=.
func (h *Handler) GetAvailability(c *gin.Context) {
	date, period := c.Query("date"), c.Query("period")
	avail, err := h.bookings.Availability(c.Request.Context(), date, period)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "period": period, "rooms": avail})
}

// GetBookingsOnDate handles GET /api/admin/bookings. The date defaults to today.
func (h *Handler) GetBookingsOnDate(c *gin.Context) {
	date := c.DefaultQuery("date", h.bookings.Today())
	bookings, err := h.bookings.OnDate(c.Request.Context(), date)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "bookings": bookings, "no_of_bookings": len(bookings)})
}
