package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/roots/internal/models"
)

var (
	ErrUserNotFound        = newError(ErrNotFound, "user not found")
	ErrEmailAlreadyExists  = newError(ErrConflict, "email already exists")
	ErrDisplayNameRequired = newError(ErrInvalid, "display name is required")
	ErrInvalidTimezone     = newError(ErrInvalid, "unknown time zone")
)

const userColumns = `id, email, password_hash, display_name, avatar_url, timezone, created_at, updated_at`

type UserService struct {
	db DB
}

func NewUserService(db DB) *UserService {
	return &UserService{db: db}
}

func scanUser(row Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName,
		&user.AvatarURL, &user.Timezone, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ValidateTimezone accepts IANA zone names.
func ValidateTimezone(tz string) error {
	if tz == "" {
		return ErrInvalidTimezone
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return ErrInvalidTimezone
	}
	return nil
}

func (s *UserService) Create(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	params.Email = strings.TrimSpace(params.Email)
	params.DisplayName = strings.TrimSpace(params.DisplayName)
	if params.DisplayName == "" {
		return nil, ErrDisplayNameRequired
	}
	if params.Timezone == "" {
		params.Timezone = "UTC"
	}
	if err := ValidateTimezone(params.Timezone); err != nil {
		return nil, err
	}

	var exists bool
	err := s.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))",
		params.Email,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking email existence: %w", err)
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	user, err := scanUser(s.db.QueryRow(ctx,
		`INSERT INTO users (id, email, password_hash, display_name, timezone)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		uuid.New(), params.Email, params.PasswordHash, params.DisplayName, params.Timezone,
	))
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by id: %w", err)
	}
	return user, nil
}

// GetByEmail matches email case-insensitively.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`,
		strings.TrimSpace(email),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.User, error) {
	if params.DisplayName != nil {
		name := strings.TrimSpace(*params.DisplayName)
		if name == "" {
			return nil, ErrDisplayNameRequired
		}
		params.DisplayName = &name
	}
	if params.Timezone != nil {
		if err := ValidateTimezone(*params.Timezone); err != nil {
			return nil, err
		}
	}

	user, err := scanUser(s.db.QueryRow(ctx,
		`UPDATE users
		 SET display_name = COALESCE($2, display_name),
		     timezone = COALESCE($3, timezone),
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		userID, params.DisplayName, params.Timezone,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	return user, nil
}

func (s *UserService) UpdateAvatarURL(ctx context.Context, userID uuid.UUID, url string) error {
	result, err := s.db.Exec(ctx,
		`UPDATE users SET avatar_url = $1, updated_at = NOW() WHERE id = $2`,
		url, userID,
	)
	if err != nil {
		return fmt.Errorf("updating avatar: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *UserService) UpdatePassword(ctx context.Context, userID uuid.UUID, newPasswordHash string) error {
	result, err := s.db.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`,
		newPasswordHash, userID,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
