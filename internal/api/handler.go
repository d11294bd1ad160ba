package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"computer-booking-backend/config"
	"computer-booking-backend/internal/account"
	"computer-booking-backend/internal/booking"
	"computer-booking-backend/internal/model"
	"computer-booking-backend/internal/session"
	"computer-booking-backend/internal/store"
	"computer-booking-backend/internal/validate"
)

const userKey = "user"

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store         store.Store
	accounts      *account.Service
	bookings      *booking.Service
	sessions      session.Store
	rules         *validate.Rules
	cookie        config.SessionConfig
	secureCookies bool
	webpush       *webpush.Options
}

// Deps are the collaborators the router wires into its handlers.
type Deps struct {
	Store    store.Store
	Accounts *account.Service
	Bookings *booking.Service
	Sessions session.Store
	Rules    *validate.Rules
	Session  config.SessionConfig
	Server   config.ServerConfig
	// WebPush is nil when push is not configured.
	WebPush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		store:         d.Store,
		accounts:      d.Accounts,
		bookings:      d.Bookings,
		sessions:      d.Sessions,
		rules:         d.Rules,
		cookie:        d.Session,
		secureCookies: d.Server.SecureCookies,
		webpush:       d.WebPush,
	}
}

func flash(message string) gin.H {
	return gin.H{"message": message, "category": "success"}
}

// bind decodes the form or JSON body into obj. Field rule failures are left
// to the services, which report them together with their own checks; only an
// undecodable body is answered here.
func (h *Handler) bind(c *gin.Context, obj any) bool {
	err := c.ShouldBind(obj)
	if err == nil {
		return true
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return true
	}
	c.JSON(http.StatusBadRequest, gin.H{"errors": h.rules.Translate(err)})
	return false
}

// fail maps service errors to responses.
func (h *Handler) fail(c *gin.Context, err error) {
	var verrs validate.Errors
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, gin.H{"errors": verrs})
	case errors.Is(err, store.ErrRoomFull):
		c.JSON(http.StatusConflict, gin.H{"error": "Room fully booked!"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func currentUser(c *gin.Context) *model.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*model.User)
	return u
}

// loadUser resolves the session cookie into the current user, if any.
func (h *Handler) loadUser(c *gin.Context) {
	token, err := c.Cookie(h.cookie.CookieName)
	if err != nil || token == "" {
		c.Next()
		return
	}

	ctx := c.Request.Context()
	userID, err := h.sessions.Lookup(ctx, token)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			log.Printf("session lookup failed: %v", err)
		}
		c.Next()
		return
	}

	user, err := h.accounts.User(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("failed to load user %d: %v", userID, err)
		}
		c.Next()
		return
	}
	c.Set(userKey, user)
	c.Next()
}

// requireLogin rejects anonymous requests.
func requireLogin(c *gin.Context) {
	if currentUser(c) == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		return
	}
	c.Next()
}

// requireAdmin rejects requests from users without the admin flag.
func requireAdmin(c *gin.Context) {
	u := currentUser(c)
	if u == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		return
	}
	if !u.IsAdmin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
		return
	}
	c.Next()
}

func (h *Handler) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.CookieName, token, maxAge, "/", "", h.secureCookies, true)
}
