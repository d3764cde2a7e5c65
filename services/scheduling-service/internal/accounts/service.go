// Package accounts registers users, checks credentials and issues the access
// tokens the scheduling API authenticates with.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptslot/libs/auth"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/model"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

// ValidationError names the offending input.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Msg }

// Store persists users and their profiles. CreateWithProfile writes both or
// neither and reports a duplicate email as ErrEmailTaken.
type Store interface {
	CreateWithProfile(ctx context.Context, u model.User, p model.Profile) (model.User, model.Profile, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetWithProfile(ctx context.Context, userID string) (model.User, model.Profile, error)
	UpdateProfile(ctx context.Context, p model.Profile) (model.Profile, error)
}

type Service struct {
	store  Store
	issuer *auth.Issuer
	cost   int
	now    func() time.Time
}

// BcryptCost matches the hashing work factor used for stored credentials.
const BcryptCost = 12

func NewService(store Store, issuer *auth.Issuer, cost int) *Service {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = BcryptCost
	}
	return &Service{store: store, issuer: issuer, cost: cost, now: func() time.Time { return time.Now().UTC() }}
}

type ProfileInput struct {
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	Phone             string `json:"phone"`
	PreferredTimezone string `json:"preferred_timezone"`
	Notes             string `json:"notes"`
}

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	ProfileInput
}

type Account struct {
	User    model.User    `json:"user"`
	Profile model.Profile `json:"profile"`
}

type Session struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      model.User `json:"user"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (Account, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return Account{}, err
	}
	if len(in.Password) < 8 {
		return Account{}, &ValidationError{Field: "password", Msg: "must be at least 8 characters"}
	}
	if len(in.Password) > 72 {
		return Account{}, &ValidationError{Field: "password", Msg: "must be at most 72 bytes"}
	}
	if err := validateTimezone(in.PreferredTimezone); err != nil {
		return Account{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := model.User{ID: uuid.NewString(), Email: email, PasswordHash: string(hash), CreatedAt: now}
	profile := profileFrom(user.ID, in.ProfileInput, now)

	user, profile, err = s.store.CreateWithProfile(ctx, user, profile)
	if err != nil {
		return Account{}, err
	}
	return Account{User: user, Profile: profile}, nil
}

// Login answers ErrInvalidCredentials for both unknown emails and wrong
// passwords.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	token, exp, err := s.issuer.Sign(auth.Claims{UserID: user.ID, Email: user.Email})
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, User: model.User{ID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt}}, nil
}

func (s *Service) Profile(ctx context.Context, userID string) (Account, error) {
	user, profile, err := s.store.GetWithProfile(ctx, userID)
	if err != nil {
		return Account{}, err
	}
	return Account{User: user, Profile: profile}, nil
}

// UpdateProfile replaces every profile field; omitted fields are cleared.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (Account, error) {
	if err := validateTimezone(in.PreferredTimezone); err != nil {
		return Account{}, err
	}
	user, _, err := s.store.GetWithProfile(ctx, userID)
	if err != nil {
		return Account{}, err
	}
	profile, err := s.store.UpdateProfile(ctx, profileFrom(userID, in, s.now()))
	if err != nil {
		return Account{}, err
	}
	return Account{User: user, Profile: profile}, nil
}

func profileFrom(userID string, in ProfileInput, now time.Time) model.Profile {
	return model.Profile{
		UserID:            userID,
		FirstName:         strings.TrimSpace(in.FirstName),
		LastName:          strings.TrimSpace(in.LastName),
		Phone:             strings.TrimSpace(in.Phone),
		PreferredTimezone: strings.TrimSpace(in.PreferredTimezone),
		Notes:             strings.TrimSpace(in.Notes),
		UpdatedAt:         now,
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &ValidationError{Field: "email", Msg: "must be a valid address"}
	}
	return email, nil
}

func validateTimezone(tz string) error {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return &ValidationError{Field: "preferred_timezone", Msg: "unknown time zone"}
	}
	return nil
}
