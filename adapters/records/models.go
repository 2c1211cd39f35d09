package records

import (
	"time"

	"github.com/shopspring/decimal"
)

// GrantRow is the dao_grants table
type GrantRow struct {
	ID              string          `gorm:"type:varchar(36);primaryKey"`
	ProposerAddress string          `gorm:"size:42;index;not null"`
	Title           string          `gorm:"size:200;not null"`
	Description     string          `gorm:"type:text;not null"`
	Category        string          `gorm:"size:32;not null"`
	RequestedAmount decimal.Decimal `gorm:"type:numeric;not null"`
	Status          string          `gorm:"size:16;not null"`
	VotingStartsAt  time.Time
	VotingEndsAt    time.Time
	CreatedAt       time.Time `gorm:"index"`
}

// TableName overrides the gorm default
func (GrantRow) TableName() string { return "dao_grants" }

// EnrollmentRow is the keygrow_enrollments table
type EnrollmentRow struct {
	ID               string `gorm:"type:varchar(66);primaryKey"`
	PropertyID       uint64 `gorm:"index;not null"`
	TenantAddress    string `gorm:"size:42;index;not null"`
	TenantName       string `gorm:"size:200"`
	TenantEmail      string `gorm:"size:200"`
	AgreedTermMonths int    `gorm:"not null"`
	Status           string `gorm:"size:16;index;not null"`
	TargetOwnership  time.Time
	NextPaymentDue   time.Time
	CreatedAt        time.Time `gorm:"index"`
}

// TableName overrides the gorm default
func (EnrollmentRow) TableName() string { return "keygrow_enrollments" }
