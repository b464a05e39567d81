// Package gormstore implements the credential-store contract on a
// relational database through GORM. SQLite (in-memory or file DSNs)
// and PostgreSQL are supported; the dialector is chosen from the DSN.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gatehouse-auth/gatehouse/store"
)

type userModel struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"uniqueIndex;size:320;not null"`
	DisplayName  string
	Role         string
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userModel) TableName() string { return "users" }

type refreshTokenModel struct {
	ID         string    `gorm:"primaryKey;size:36"`
	TokenValue string    `gorm:"uniqueIndex;size:1024;not null"`
	UserID     string    `gorm:"index;size:36;not null"`
	ExpiresAt  time.Time `gorm:"index;not null"`
	Revoked    bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time
}

func (refreshTokenModel) TableName() string { return "refresh_tokens" }

type resetTokenModel struct {
	ID         string    `gorm:"primaryKey;size:36"`
	SecretHash string    `gorm:"not null"`
	UserID     string    `gorm:"index;size:36;not null"`
	ExpiresAt  time.Time `gorm:"index;not null"`
	Revoked    bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time
}

func (resetTokenModel) TableName() string { return "password_reset_tokens" }

// Store is the GORM-backed [store.Store] implementation.
type Store struct {
	db *gorm.DB
}

// Open connects to the database identified by dsn, migrates the
// schema, and returns a ready [Store]. In-memory and file DSNs select
// SQLite, anything else PostgreSQL.
func Open(dsn string) (*Store, error) {
	var dialector gorm.Dialector
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		dialector = sqlite.Open(dsn)
	} else {
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	return New(db)
}

// New migrates the schema on an existing GORM handle and returns a
// ready [Store].
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&userModel{}, &refreshTokenModel{}, &resetTokenModel{}); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	return &Store{db: db}, nil
}

// CreateUser persists a new user. A unique-email violation maps to
// [store.ErrDuplicateEmail].
func (s *Store) CreateUser(ctx context.Context, user *store.User) error {
	model := userModel{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		Role:         user.Role,
		PasswordHash: user.PasswordHash,
	}

	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return store.ErrDuplicateEmail
		}
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	return nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*store.User, error) {
	var model userModel
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	return userFromModel(&model), nil
}

func (s *Store) FindUserByID(ctx context.Context, userID string) (*store.User, error) {
	var model userModel
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	return userFromModel(&model), nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	res := s.db.WithContext(ctx).
		Model(&userModel{}).
		Where("id = ?", userID).
		Update("password_hash", passwordHash)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}

	return nil
}

func (s *Store) CreateRefreshToken(ctx context.Context, record *store.RefreshTokenRecord) error {
	model := refreshTokenModel{
		ID:         record.ID,
		TokenValue: record.TokenValue,
		UserID:     record.UserID,
		ExpiresAt:  record.ExpiresAt,
		Revoked:    record.Revoked,
	}

	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	return nil
}

func (s *Store) FindRefreshToken(ctx context.Context, tokenValue string) (*store.RefreshTokenRecord, error) {
	var model refreshTokenModel
	err := s.db.WithContext(ctx).Where("token_value = ?", tokenValue).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	return refreshFromModel(&model), nil
}

func (s *Store) LatestActiveRefreshToken(ctx context.Context, userID string) (*store.RefreshTokenRecord, error) {
	var model refreshTokenModel
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND revoked = ? AND expires_at > ?", userID, false, time.Now()).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	return refreshFromModel(&model), nil
}

// RevokeRefreshToken flips revoked to true. Zero rows affected is not
// an error: revocation is idempotent and never reveals whether the
// token existed.
func (s *Store) RevokeRefreshToken(ctx context.Context, tokenValue string) error {
	res := s.db.WithContext(ctx).
		Model(&refreshTokenModel{}).
		Where("token_value = ?", tokenValue).
		Update("revoked", true)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, res.Error)
	}

	return nil
}

func (s *Store) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).
		Model(&refreshTokenModel{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true).Error
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	return nil
}

// RotateRefreshToken runs the check/set/insert sequence in one
// transaction. The conditional UPDATE on revoked = false is the
// compare-and-set: of two concurrent rotations of the same token,
// exactly one affects a row; the loser gets [store.ErrRotationConflict].
func (s *Store) RotateRefreshToken(ctx context.Context, oldTokenValue string, next *store.RefreshTokenRecord) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&refreshTokenModel{}).
			Where("token_value = ? AND revoked = ?", oldTokenValue, false).
			Update("revoked", true)
		if res.Error != nil {
			return fmt.Errorf("%w: %v", store.ErrUnavailable, res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&refreshTokenModel{}).
				Where("token_value = ?", oldTokenValue).
				Count(&count).Error; err != nil {
				return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
			}
			if count == 0 {
				return store.ErrNotFound
			}
			return store.ErrRotationConflict
		}

		model := refreshTokenModel{
			ID:         next.ID,
			TokenValue: next.TokenValue,
			UserID:     next.UserID,
			ExpiresAt:  next.ExpiresAt,
		}
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Store) CreateResetToken(ctx context.Context, record *store.ResetTokenRecord) error {
	model := resetTokenModel{
		ID:         record.ID,
		SecretHash: record.SecretHash,
		UserID:     record.UserID,
		ExpiresAt:  record.ExpiresAt,
		Revoked:    record.Revoked,
	}

	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	return nil
}

func (s *Store) LiveResetTokens(ctx context.Context) ([]store.ResetTokenRecord, error) {
	var models []resetTokenModel
	err := s.db.WithContext(ctx).
		Where("revoked = ? AND expires_at > ?", false, time.Now()).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	records := make([]store.ResetTokenRecord, 0, len(models))
	for i := range models {
		records = append(records, *resetFromModel(&models[i]))
	}

	return records, nil
}

func (s *Store) RevokeUserResetTokens(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).
		Model(&resetTokenModel{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true).Error
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	return nil
}

func userFromModel(m *userModel) *store.User {
	return &store.User{
		ID:           m.ID,
		Email:        m.Email,
		DisplayName:  m.DisplayName,
		Role:         m.Role,
		PasswordHash: m.PasswordHash,
	}
}

func refreshFromModel(m *refreshTokenModel) *store.RefreshTokenRecord {
	return &store.RefreshTokenRecord{
		ID:         m.ID,
		TokenValue: m.TokenValue,
		UserID:     m.UserID,
		ExpiresAt:  m.ExpiresAt,
		Revoked:    m.Revoked,
		CreatedAt:  m.CreatedAt,
	}
}

func resetFromModel(m *resetTokenModel) *store.ResetTokenRecord {
	return &store.ResetTokenRecord{
		ID:         m.ID,
		SecretHash: m.SecretHash,
		UserID:     m.UserID,
		ExpiresAt:  m.ExpiresAt,
		Revoked:    m.Revoked,
		CreatedAt:  m.CreatedAt,
	}
}
