package accounts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptslot/libs/auth"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/model"
	"golang.org/x/crypto/bcrypt"
)

type memStore struct {
	mu       sync.Mutex
	users    map[string]model.User
	profiles map[string]model.Profile
}

func newMemStore() *memStore {
	return &memStore{users: map[string]model.User{}, profiles: map[string]model.Profile{}}
}

func (s *memStore) CreateWithProfile(_ context.Context, u model.User, p model.Profile) (model.User, model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return model.User{}, model.Profile{}, ErrEmailTaken
		}
	}
	s.users[u.ID] = u
	s.profiles[u.ID] = p
	return u, p, nil
}

func (s *memStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, ErrUserNotFound
}

func (s *memStore) GetWithProfile(_ context.Context, id string) (model.User, model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.Profile{}, ErrUserNotFound
	}
	return u, s.profiles[id], nil
}

func (s *memStore) UpdateProfile(_ context.Context, p model.Profile) (model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[p.UserID]; !ok {
		return model.Profile{}, ErrUserNotFound
	}
	s.profiles[p.UserID] = p
	return p, nil
}

func newService(t *testing.T) (*Service, *auth.Issuer) {
	t.Helper()
	iss, err := auth.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	return NewService(newMemStore(), iss, bcrypt.MinCost), iss
}

func TestRegisterAndLogin(t *testing.T) {
	svc, iss := newService(t)
	ctx := context.Background()

	acct, err := svc.Register(ctx, RegisterInput{
		Email:        "  Ada@Example.com ",
		Password:     "correct horse",
		ProfileInput: ProfileInput{FirstName: "Ada", LastName: "Lovelace", PreferredTimezone: "UTC"},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if acct.User.Email != "ada@example.com" || acct.Profile.FirstName != "Ada" || acct.Profile.UserID != acct.User.ID {
		t.Fatalf("unexpected account: %+v", acct)
	}
	if acct.User.PasswordHash == "correct horse" {
		t.Fatal("password must be hashed")
	}

	sess, err := svc.Login(ctx, "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := iss.Verify(sess.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != acct.User.ID || claims.Email != "ada@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if sess.User.PasswordHash != "" {
		t.Fatal("session must not expose the hash")
	}
}

func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	in := RegisterInput{Email: "dup@example.com", Password: "longenough"}
	if _, err := svc.Register(ctx, in); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	in.Email = "DUP@example.com"
	if _, err := svc.Register(ctx, in); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	var verr *ValidationError
	if _, err := svc.Register(ctx, RegisterInput{Email: "not-an-email", Password: "longenough"}); !errors.As(err, &verr) || verr.Field != "email" {
		t.Fatalf("expected email validation error, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Email: "a@b.co", Password: "short"}); !errors.As(err, &verr) || verr.Field != "password" {
		t.Fatalf("expected password validation error, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Email: "a@b.co", Password: strings.Repeat("x", 80)}); !errors.As(err, &verr) {
		t.Fatalf("expected overlong password to fail, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Email: "a@b.co", Password: "longenough", ProfileInput: ProfileInput{PreferredTimezone: "Not/AZone"}}); !errors.As(err, &verr) || verr.Field != "preferred_timezone" {
		t.Fatalf("expected timezone validation error, got %v", err)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Email: "x@example.com", Password: "longenough"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Login(ctx, "x@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "longenough"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: %v", err)
	}
}

func TestProfileReadAndUpdate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	acct, err := svc.Register(ctx, RegisterInput{Email: "p@example.com", Password: "longenough", ProfileInput: ProfileInput{Phone: "123"}})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	updated, err := svc.UpdateProfile(ctx, acct.User.ID, ProfileInput{FirstName: " Grace ", Notes: "prefers mornings"})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.Profile.FirstName != "Grace" || updated.Profile.Phone != "" || updated.User.Email != "p@example.com" {
		t.Fatalf("unexpected update: %+v", updated)
	}

	got, err := svc.Profile(ctx, acct.User.ID)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if got.Profile.Notes != "prefers mornings" {
		t.Fatalf("unexpected profile: %+v", got.Profile)
	}

	if _, err := svc.Profile(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
