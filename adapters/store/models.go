package store

import "time"

// WalletSession is the relational row behind a SIWE session
type WalletSession struct {
	ID              uint      `gorm:"primaryKey"`
	SessionToken    string    `gorm:"size:128;uniqueIndex;not null"`
	WalletAddress   string    `gorm:"size:42;index;not null"`
	ChainID         int64     `gorm:"not null"`
	Domain          string    `gorm:"size:255"`
	AuthenticatedAt time.Time `gorm:"not null"`
	ExpiresAt       time.Time `gorm:"index;not null"`
}

// TableName overrides the gorm default
func (WalletSession) TableName() string { return "wallet_sessions" }

// SiweNonce records a consumed challenge nonce
type SiweNonce struct {
	ID        uint      `gorm:"primaryKey"`
	Nonce     string    `gorm:"size:64;uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}

// TableName overrides the gorm default
func (SiweNonce) TableName() string { return "siwe_nonces" }
