package storage

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/apptslot/libs/db"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/accounts"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/model"
)

const usersEmailIndex = "users_email_key"

type UserRepository struct {
	pool *db.Pool
}

var _ accounts.Store = (*UserRepository)(nil)

func NewUserRepository(pool *db.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) CreateWithProfile(ctx context.Context, u model.User, p model.Profile) (model.User, model.Profile, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.User{}, model.Profile{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, password_hash, created_at
	`, u.ID, u.Email, u.PasswordHash, u.CreatedAt).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, usersEmailIndex) {
			return model.User{}, model.Profile{}, accounts.ErrEmailTaken
		}
		return model.User{}, model.Profile{}, fmt.Errorf("insert user: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO user_profiles (user_id, first_name, last_name, phone, preferred_timezone, notes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING updated_at
	`, u.ID, p.FirstName, p.LastName, p.Phone, p.PreferredTimezone, p.Notes, p.UpdatedAt).Scan(&p.UpdatedAt)
	if err != nil {
		return model.User{}, model.Profile{}, fmt.Errorf("insert profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.User{}, model.Profile{}, fmt.Errorf("commit: %w", err)
	}
	p.UserID = u.ID
	return u, p, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return model.User{}, accounts.ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetWithProfile tolerates a missing profile row and returns an empty profile.
func (r *UserRepository) GetWithProfile(ctx context.Context, userID string) (model.User, model.Profile, error) {
	var (
		u model.User
		p model.Profile
	)
	err := r.pool.QueryRow(ctx, `
		SELECT u.id, u.email, u.created_at,
			COALESCE(p.first_name, ''), COALESCE(p.last_name, ''), COALESCE(p.phone, ''),
			COALESCE(p.preferred_timezone, ''), COALESCE(p.notes, ''), COALESCE(p.updated_at, u.created_at)
		FROM users u
		LEFT JOIN user_profiles p ON p.user_id = u.id
		WHERE u.id::text = $1
	`, userID).Scan(&u.ID, &u.Email, &u.CreatedAt,
		&p.FirstName, &p.LastName, &p.Phone, &p.PreferredTimezone, &p.Notes, &p.UpdatedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return model.User{}, model.Profile{}, accounts.ErrUserNotFound
		}
		return model.User{}, model.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	p.UserID = u.ID
	return u, p, nil
}

// UpdateProfile upserts so users created without a profile row can still save one.
func (r *UserRepository) UpdateProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO user_profiles (user_id, first_name, last_name, phone, preferred_timezone, notes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone,
			preferred_timezone = EXCLUDED.preferred_timezone,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING updated_at
	`, p.UserID, p.FirstName, p.LastName, p.Phone, p.PreferredTimezone, p.Notes, p.UpdatedAt).Scan(&p.UpdatedAt)
	if err != nil {
		return model.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	return p, nil
}
