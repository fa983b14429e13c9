package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/HammerMeetNail/roots/internal/models"
)

const (
	bcryptCost       = 12
	sessionDuration  = 30 * 24 * time.Hour
	sessionKeyPrefix = "session:"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

type AuthService struct {
	db    DB
	redis RedisClient
}

func NewAuthService(db DB, redis RedisClient) *AuthService {
	return &AuthService{db: db, redis: redis}
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func (s *AuthService) VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *AuthService) GenerateSessionToken() (token string, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generating random bytes: %w", err)
	}
	token = hex.EncodeToString(b)
	return token, hashToken(token), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CreateSession stores a new session in redis, or in postgres when redis is unavailable.
func (s *AuthService) CreateSession(ctx context.Context, userID uuid.UUID) (string, error) {
	token, tokenHash, err := s.GenerateSessionToken()
	if err != nil {
		return "", err
	}

	if err := s.redis.Set(ctx, sessionKeyPrefix+tokenHash, userID.String(), sessionDuration); err != nil {
		_, err = s.db.Exec(ctx,
			`INSERT INTO sessions (id, user_id, token_hash, expires_at) VALUES ($1, $2, $3, $4)`,
			uuid.New(), userID, tokenHash, time.Now().Add(sessionDuration),
		)
		if err != nil {
			return "", fmt.Errorf("creating session in database: %w", err)
		}
	}
	return token, nil
}

func (s *AuthService) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	tokenHash := hashToken(token)
	redisKey := sessionKeyPrefix + tokenHash

	if userIDStr, err := s.redis.Get(ctx, redisKey); err == nil {
		_ = s.redis.Expire(ctx, redisKey, sessionDuration)

		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			return nil, fmt.Errorf("parsing user id: %w", err)
		}
		return s.getUserByID(ctx, userID)
	}

	var session models.Session
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, token_hash, expires_at, created_at
		 FROM sessions WHERE token_hash = $1`,
		tokenHash,
	).Scan(&session.ID, &session.UserID, &session.TokenHash, &session.ExpiresAt, &session.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		_, _ = s.db.Exec(ctx, "DELETE FROM sessions WHERE id = $1", session.ID)
		return nil, ErrSessionExpired
	}

	return s.getUserByID(ctx, session.UserID)
}

// CheckSession is ValidateSession bounded by timeout. A lookup that does not
// finish in time reports ErrSessionNotFound so callers treat it as signed out.
func (s *AuthService) CheckSession(ctx context.Context, token string, timeout time.Duration) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		user *models.User
		err  error
	}
	done := make(chan result, 1)
	go func() {
		user, err := s.ValidateSession(ctx, token)
		done <- result{user: user, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return nil, ErrSessionNotFound
		}
		return r.user, r.err
	case <-ctx.Done():
		return nil, ErrSessionNotFound
	}
}

func (s *AuthService) DeleteSession(ctx context.Context, token string) error {
	tokenHash := hashToken(token)
	_ = s.redis.Del(ctx, sessionKeyPrefix+tokenHash)

	if _, err := s.db.Exec(ctx, "DELETE FROM sessions WHERE token_hash = $1", tokenHash); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteAllUserSessions drops every postgres-backed session of the user and
// their redis copies. Redis-only sessions expire on their own.
func (s *AuthService) DeleteAllUserSessions(ctx context.Context, userID uuid.UUID) error {
	rows, err := s.db.Query(ctx, "SELECT token_hash FROM sessions WHERE user_id = $1", userID)
	if err != nil {
		return fmt.Errorf("querying user sessions: %w", err)
	}

	var keys []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			rows.Close()
			return fmt.Errorf("scanning token hash: %w", err)
		}
		keys = append(keys, sessionKeyPrefix+hash)
	}
	rows.Close()

	if len(keys) > 0 {
		_ = s.redis.Del(ctx, keys...)
	}

	if _, err := s.db.Exec(ctx, "DELETE FROM sessions WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("deleting user sessions: %w", err)
	}
	return nil
}

func (s *AuthService) getUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return user, nil
}
