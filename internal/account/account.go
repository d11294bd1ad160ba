// Package account is the user directory: registration, authentication and
// the administrator seed.
package account

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"

	"computer-booking-backend/config"
	"computer-booking-backend/internal/model"
	"computer-booking-backend/internal/store"
	"computer-booking-backend/internal/validate"
)

// ErrInvalidCredentials is returned for an unknown username or a wrong
// password alike, so callers cannot tell which one failed.
var ErrInvalidCredentials = errors.New("invalid credentials")

const (
	msgUsernameTaken = "User already exists."
	msgEmailTaken    = "User with that email exists."
)

// RegistrationForm is the sign-up request.
type RegistrationForm struct {
	Username  string `form:"username" json:"username" binding:"required,max=128,schoolusername"`
	Email     string `form:"email" json:"email" binding:"required,max=256,email,schoolemail"`
	Password  string `form:"password" json:"password" binding:"required,notblank,min=6,bcryptlen,eqfield=Password2"`
	Password2 string `form:"password2" json:"password2" binding:"required"`
}

// LoginForm is the sign-in request.
type LoginForm struct {
	Username string `form:"username" json:"username" binding:"required,notblank"`
	Password string `form:"password" json:"password" binding:"required,notblank"`
}

// Service manages user accounts.
type Service struct {
	store store.Store
	rules *validate.Rules
	cost  int
}

// NewService creates an account service.
func NewService(s store.Store, rules *validate.Rules) *Service {
	return &Service{store: s, rules: rules, cost: bcrypt.DefaultCost}
}

// Register validates the form, checks that the username and e-mail are free
// and stores the new user with a bcrypt password hash. Validation problems
// are returned as validate.Errors.
func (s *Service) Register(ctx context.Context, form RegistrationForm) (*model.User, error) {
	if err := s.rules.Check(&form); err != nil {
		return nil, err
	}

	errs := validate.Errors{}
	taken, err := s.store.UsernameTaken(ctx, form.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		errs.Add("username", msgUsernameTaken)
	}
	taken, err = s.store.EmailTaken(ctx, form.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		errs.Add("email", msgEmailTaken)
	}
	if err := errs.OrNil(); err != nil {
		return nil, err
	}

	return s.create(ctx, form.Username, form.Email, form.Password, false)
}

func (s *Service) create(ctx context.Context, username, email, password string, admin bool) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsAdmin:      admin,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		var dup *store.DuplicateError
		if errors.As(err, &dup) {
			return nil, duplicateErrors(dup)
		}
		return nil, err
	}
	return u, nil
}

// duplicateErrors reports a lost sign-up race the same way as the up-front
// availability checks.
func duplicateErrors(dup *store.DuplicateError) validate.Errors {
	errs := validate.Errors{}
	for _, f := range dup.Fields {
		switch f {
		case "username":
			errs.Add("username", msgUsernameTaken)
		case "email":
			errs.Add("email", msgEmailTaken)
		}
	}
	if len(errs) == 0 {
		errs.Add("username", msgUsernameTaken)
	}
	return errs
}

// Authenticate returns the user when the password matches its stored hash.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	u, err := s.store.UserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// User loads a user by id.
func (s *Service) User(ctx context.Context, id int64) (*model.User, error) {
	return s.store.UserByID(ctx, id)
}

// EnsureAdmin creates the configured administrator unless the username exists.
// An empty username or password disables the seed.
func (s *Service) EnsureAdmin(ctx context.Context, cfg config.AdminConfig) error {
	if cfg.Username == "" || cfg.Password == "" {
		return nil
	}
	taken, err := s.store.UsernameTaken(ctx, cfg.Username)
	if err != nil {
		return err
	}
	if taken {
		return nil
	}
	if _, err := s.create(ctx, cfg.Username, cfg.Email, cfg.Password, true); err != nil {
		return fmt.Errorf("failed to seed admin %q: %w", cfg.Username, err)
	}
	log.Printf("created admin account %q", cfg.Username)
	return nil
}
