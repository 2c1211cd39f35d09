package records

import (
	"context"
	"fmt"

	"github.com/layer-3/axiom/core"
	"github.com/layer-3/axiom/ports"
	"gorm.io/gorm"
)

// AutoMigrate creates the record tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&GrantRow{}, &EnrollmentRow{})
}

// GrantRepository stores grant proposals with gorm
type GrantRepository struct {
	db *gorm.DB
}

// NewGrantRepository creates a grant repository
func NewGrantRepository(db *gorm.DB) *GrantRepository {
	return &GrantRepository{db: db}
}

// CreateGrant inserts a grant
func (r *GrantRepository) CreateGrant(ctx context.Context, grant *core.Grant) error {
	row := GrantRow{
		ID:              grant.ID,
		ProposerAddress: grant.ProposerAddress,
		Title:           grant.Title,
		Description:     grant.Description,
		Category:        grant.Category,
		RequestedAmount: grant.RequestedAmount,
		Status:          grant.Status,
		VotingStartsAt:  grant.VotingStartsAt,
		VotingEndsAt:    grant.VotingEndsAt,
		CreatedAt:       grant.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert grant: %w", err)
	}
	return nil
}

// ListGrants returns the most recent grants first
func (r *GrantRepository) ListGrants(ctx context.Context, limit int) ([]*core.Grant, error) {
	var rows []GrantRow
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}

	grants := make([]*core.Grant, 0, len(rows))
	for _, row := range rows {
		grants = append(grants, &core.Grant{
			ID:              row.ID,
			ProposerAddress: row.ProposerAddress,
			Title:           row.Title,
			Description:     row.Description,
			Category:        row.Category,
			RequestedAmount: row.RequestedAmount,
			Status:          row.Status,
			VotingStartsAt:  row.VotingStartsAt,
			VotingEndsAt:    row.VotingEndsAt,
			CreatedAt:       row.CreatedAt,
		})
	}
	return grants, nil
}

// EnrollmentRepository stores KeyGrow enrollments with gorm
type EnrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository creates an enrollment repository
func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// CreateEnrollment inserts an enrollment
func (r *EnrollmentRepository) CreateEnrollment(ctx context.Context, e *core.Enrollment) error {
	row := EnrollmentRow{
		ID:               e.ID,
		PropertyID:       e.PropertyID,
		TenantAddress:    e.TenantAddress,
		TenantName:       e.TenantName,
		TenantEmail:      e.TenantEmail,
		AgreedTermMonths: e.AgreedTermMonths,
		Status:           e.Status,
		TargetOwnership:  e.TargetOwnership,
		NextPaymentDue:   e.NextPaymentDue,
		CreatedAt:        e.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert enrollment: %w", err)
	}
	return nil
}

// HasActiveEnrollment reports whether tenant holds an active enrollment in property
func (r *EnrollmentRepository) HasActiveEnrollment(ctx context.Context, propertyID uint64, tenant string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&EnrollmentRow{}).
		Where("property_id = ? AND tenant_address = ? AND status = ?", propertyID, tenant, "active").
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count enrollments: %w", err)
	}
	return count > 0, nil
}

// ListEnrollments returns a tenant's enrollments, newest first
func (r *EnrollmentRepository) ListEnrollments(ctx context.Context, filter ports.EnrollmentFilter) ([]*core.Enrollment, error) {
	q := r.db.WithContext(ctx).Where("tenant_address = ?", filter.Tenant)
	if filter.PropertyID != 0 {
		q = q.Where("property_id = ?", filter.PropertyID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var rows []EnrollmentRow
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}

	out := make([]*core.Enrollment, 0, len(rows))
	for _, row := range rows {
		out = append(out, &core.Enrollment{
			ID:               row.ID,
			PropertyID:       row.PropertyID,
			TenantAddress:    row.TenantAddress,
			TenantName:       row.TenantName,
			TenantEmail:      row.TenantEmail,
			AgreedTermMonths: row.AgreedTermMonths,
			Status:           row.Status,
			TargetOwnership:  row.TargetOwnership,
			NextPaymentDue:   row.NextPaymentDue,
			CreatedAt:        row.CreatedAt,
		})
	}
	return out, nil
}

var (
	_ ports.GrantRepository      = (*GrantRepository)(nil)
	_ ports.EnrollmentRepository = (*EnrollmentRepository)(nil)
)
