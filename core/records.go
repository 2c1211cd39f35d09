package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Grant is a governance grant proposal submitted on behalf of a wallet
type Grant struct {
	ID              string
	ProposerAddress string
	Title           string
	Description     string
	Category        string
	RequestedAmount decimal.Decimal
	Status          string
	VotingStartsAt  time.Time
	VotingEndsAt    time.Time
	CreatedAt       time.Time
}

// Enrollment is a KeyGrow rent-to-own enrollment of a tenant wallet in a property
type Enrollment struct {
	ID               string
	PropertyID       uint64
	TenantAddress    string
	TenantName       string
	TenantEmail      string
	AgreedTermMonths int
	Status           string
	TargetOwnership  time.Time
	NextPaymentDue   time.Time
	CreatedAt        time.Time
}
