package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"computer-booking-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router. The rate limiter is
// returned so the caller can run its idle sweep.
func NewRouter(d Deps) (*gin.Engine, *mw.ClientLimiter) {
	binding.Validator = d.Rules

	r := gin.Default()
	handler := NewHandler(d)

	limiter := mw.NewClientLimiter(rate.Limit(d.Server.RateLimitPerSec), d.Server.RateLimitBurst, 10*time.Minute)
	ttl := time.Duration(d.Server.CacheTTLSeconds) * time.Second
	caching := mw.Cache(cache.New(ttl, 2*ttl), ttl)

	r.Use(mw.Metrics(), mw.RateLimit(limiter), handler.loadUser)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/register", handler.GetRegister)
	r.POST("/register", handler.PostRegister)
	r.GET("/login", handler.GetLogin)
	r.POST("/login", handler.PostLogin)

	auth := r.Group("/", requireLogin)
	{
		auth.GET("/", handler.Home)
		auth.GET("/logout", handler.Logout)
		auth.POST("/logout", handler.Logout)
		auth.GET("/new_booking", handler.GetNewBooking)
		auth.POST("/new_booking", handler.PostNewBooking)
		auth.GET("/delete", handler.ListOwnBookings)

		const deletePath = "/delete_booking/:room/:date/:period/:purpose"
		auth.GET(deletePath, handler.DeleteBooking)
		auth.POST(deletePath, handler.DeleteBooking)
		auth.DELETE(deletePath, handler.DeleteBooking)
	}

	api := r.Group("/api")
	{
		api.GET("/rooms", caching, GetRooms)
		api.GET("/periods", caching, GetPeriods)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		api.GET("/availability", requireLogin, handler.GetAvailability)
		api.GET("/subscriptions", requireLogin, handler.GetSubscriptions)
		api.PUT("/subscriptions", requireLogin, handler.PutSubscription)
		api.DELETE("/subscriptions", requireLogin, handler.DeleteSubscription)

		api.GET("/admin/bookings", requireAdmin, handler.GetBookingsOnDate)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return r, limiter
}
