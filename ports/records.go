package ports

import (
	"context"

	"github.com/layer-3/axiom/core"
)

// GrantRepository persists governance grant proposals
type GrantRepository interface {
	CreateGrant(ctx context.Context, grant *core.Grant) error
	ListGrants(ctx context.Context, limit int) ([]*core.Grant, error)
}

// EnrollmentRepository persists KeyGrow enrollments
type EnrollmentRepository interface {
	CreateEnrollment(ctx context.Context, enrollment *core.Enrollment) error
	// HasActiveEnrollment reports whether tenant already holds an active
	// enrollment in property.
	HasActiveEnrollment(ctx context.Context, propertyID uint64, tenant string) (bool, error)
	ListEnrollments(ctx context.Context, filter EnrollmentFilter) ([]*core.Enrollment, error)
}

// EnrollmentFilter narrows ListEnrollments. Zero fields are ignored except
// Tenant, which is required.
type EnrollmentFilter struct {
	Tenant     string
	PropertyID uint64
	Status     string
}
