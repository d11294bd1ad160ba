package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"computer-booking-backend/internal/account"
	"computer-booking-backend/internal/metrics"
)

type formField struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

var registerFields = []formField{
	{Name: "username", Label: "Username", Type: "text"},
	{Name: "email", Label: "Email", Type: "email"},
	{Name: "password", Label: "Password", Type: "password"},
	{Name: "password2", Label: "Repeat Password", Type: "password"},
}

var loginFields = []formField{
	{Name: "username", Label: "Username", Type: "text"},
	{Name: "password", Label: "Password", Type: "password"},
}

// GetRegister describes the registration form.
func (h *Handler) GetRegister(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"title": "Register", "fields": registerFields})
}

// PostRegister handles POST /register.
func (h *Handler) PostRegister(c *gin.Context) {
	var form account.RegistrationForm
	if !h.bind(c, &form) {
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), form)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := flash("Registration Successful!")
	resp["user"] = user
	c.JSON(http.StatusCreated, resp)
}

// GetLogin describes the login form.
func (h *Handler) GetLogin(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"title": "Login", "fields": loginFields})
}

// PostLogin authenticates the user and starts a session.
func (h *Handler) PostLogin(c *gin.Context) {
	var form account.LoginForm
	if !h.bind(c, &form) {
		return
	}
	if err := h.rules.Check(&form); err != nil {
		h.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	user, err := h.accounts.Authenticate(ctx, form.Username, form.Password)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			metrics.Logins.WithLabelValues("failure").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Username or password is incorrect!"})
			return
		}
		h.fail(c, err)
		return
	}

	token, err := h.sessions.Create(ctx, user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	metrics.Logins.WithLabelValues("success").Inc()
	h.setSessionCookie(c, token, int(h.cookie.TTL.Seconds()))

	resp := flash("You are now logged in.")
	resp["user"] = user
	c.JSON(http.StatusOK, resp)
}

// Logout ends the session.
func (h *Handler) Logout(c *gin.Context) {
	if token, err := c.Cookie(h.cookie.CookieName); err == nil && token != "" {
		if err := h.sessions.Delete(c.Request.Context(), token); err != nil {
			h.fail(c, err)
			return
		}
	}
	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, flash("Logged out."))
}
