package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/axiom/core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements the Store interface on a relational database
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store backed by db
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate creates the session and nonce tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&WalletSession{}, &SiweNonce{})
}

// CreateSession inserts a session row; a token collision is reported, never overwritten
func (s *GormStore) CreateSession(ctx context.Context, session *core.Session) error {
	row := WalletSession{
		SessionToken:    session.Token,
		WalletAddress:   session.Address,
		ChainID:         session.ChainID,
		Domain:          session.Domain,
		AuthenticatedAt: session.AuthenticatedAt,
		ExpiresAt:       session.ExpiresAt,
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "session_token"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return fmt.Errorf("failed to insert session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return core.ErrSessionExists
	}
	return nil
}

// GetSession loads a session by token
func (s *GormStore) GetSession(ctx context.Context, token string) (*core.Session, error) {
	var row WalletSession
	err := s.db.WithContext(ctx).Where("session_token = ?", token).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	return &core.Session{
		Token:           row.SessionToken,
		Address:         row.WalletAddress,
		ChainID:         row.ChainID,
		Domain:          row.Domain,
		AuthenticatedAt: row.AuthenticatedAt,
		ExpiresAt:       row.ExpiresAt,
	}, nil
}

// DeleteSession removes a session row
func (s *GormStore) DeleteSession(ctx context.Context, token string) error {
	err := s.db.WithContext(ctx).Where("session_token = ?", token).Delete(&WalletSession{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ConsumeNonce records a nonce; an unexpired record means it was already used
func (s *GormStore) ConsumeNonce(ctx context.Context, nonce string, ttl time.Duration) error {
	now := time.Now()
	db := s.db.WithContext(ctx)

	if err := db.Where("nonce = ? AND expires_at <= ?", nonce, now).Delete(&SiweNonce{}).Error; err != nil {
		return fmt.Errorf("failed to clear expired nonce: %w", err)
	}

	res := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "nonce"}}, DoNothing: true}).
		Create(&SiweNonce{Nonce: nonce, ExpiresAt: now.Add(ttl)})
	if res.Error != nil {
		return fmt.Errorf("failed to consume nonce: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return core.ErrNonceUsed
	}
	return nil
}

// Purge deletes expired sessions and nonces. Expiry is enforced at read time,
// so this only reclaims storage.
func (s *GormStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	db := s.db.WithContext(ctx)

	sessions := db.Where("expires_at <= ?", now).Delete(&WalletSession{})
	if sessions.Error != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", sessions.Error)
	}

	nonces := db.Where("expires_at <= ?", now).Delete(&SiweNonce{})
	if nonces.Error != nil {
		return sessions.RowsAffected, fmt.Errorf("failed to purge nonces: %w", nonces.Error)
	}

	return sessions.RowsAffected + nonces.RowsAffected, nil
}
