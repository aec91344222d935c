package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/luzparatodos-am/localidades-backend/internal/db"
	"github.com/luzparatodos-am/localidades-backend/internal/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUserNotFound       = errors.New("user not found")
)

// Store persists users and sessions. It implements the middleware's
// SessionFetcher and RoleFetcher.
type Store struct {
	db *gorm.DB
}

func NewStore(d *gorm.DB) *Store {
	return &Store{db: d}
}

// CreateUser hashes password with bcrypt and stores a new user.
func (s *Store) CreateUser(ctx context.Context, username, password, role string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}
	if role != RoleAdmin {
		role = RoleUser
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &User{
		UserID:         utils.GenerateUUID(),
		Username:       username,
		HashedPassword: string(hashed),
		Role:           role,
	}
	err = s.db.WithContext(ctx).Omit("Session").Create(user).Error
	if db.IsUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s", ErrUsernameTaken, username)
	}
	if err != nil {
		return nil, fmt.Errorf("create user %s: %w", username, err)
	}
	return user, nil
}

// Authenticate returns the user whose bcrypt hash matches password.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", username, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func (s *Store) FindUserByID(ctx context.Context, userID string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).First(&user, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (s *Store) UserRole(ctx context.Context, userID string) (string, error) {
	user, err := s.FindUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

// StartSession replaces any session userID holds with a fresh one.
func (s *Store) StartSession(ctx context.Context, userID string, expiresAt time.Time) (*Session, error) {
	session := &Session{
		SessionID: utils.GenerateUUID(),
		UserID:    userID,
		ExpiresAt: expiresAt,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"session_id", "expires_at"}),
		}).
		Create(session).Error
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	return session, nil
}

func (s *Store) FindSessionByID(ctx context.Context, id string) (utils.SessionData, error) {
	var session Session
	err := s.db.WithContext(ctx).First(&session, "session_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.SessionData{}, ErrSessionNotFound
	}
	if err != nil {
		return utils.SessionData{}, fmt.Errorf("find session: %w", err)
	}
	return utils.SessionData{
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&Session{}, "session_id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}
