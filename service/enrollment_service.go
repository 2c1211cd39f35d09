package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/axiom/core"
	"github.com/layer-3/axiom/ports"
	"go.uber.org/zap"
)

const (
	enrollmentStatusActive = "active"
	minTermMonths          = 12
)

// EnrollmentInput is a KeyGrow enrollment request as submitted
type EnrollmentInput struct {
	PropertyID       uint64
	TenantAddress    string
	TenantName       string
	TenantEmail      string
	AgreedTermMonths int
}

// EnrollmentService validates and stores KeyGrow enrollments
type EnrollmentService struct {
	repo ports.EnrollmentRepository
	log  *zap.Logger
	now  func() time.Time
}

// NewEnrollmentService creates an enrollment service
func NewEnrollmentService(repo ports.EnrollmentRepository, log *zap.Logger) *EnrollmentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, log: log, now: time.Now}
}

// Enroll creates an active enrollment for the tenant. A tenant may hold only
// one active enrollment per property.
func (s *EnrollmentService) Enroll(ctx context.Context, in EnrollmentInput) (*core.Enrollment, error) {
	if in.PropertyID == 0 {
		return nil, invalid("Property ID is required")
	}

	tenant, err := core.NormalizeAddress(in.TenantAddress)
	if err != nil {
		return nil, invalid("Valid tenant wallet address is required")
	}

	if in.AgreedTermMonths < minTermMonths {
		return nil, invalid("Minimum term is 12 months")
	}

	exists, err := s.repo.HasActiveEnrollment(ctx, in.PropertyID, tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to check enrollments: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: active enrollment for property %d", core.ErrDuplicateRecord, in.PropertyID)
	}

	now := s.now().UTC()
	enrollment := &core.Enrollment{
		ID:               enrollmentID(tenant, in.PropertyID, now),
		PropertyID:       in.PropertyID,
		TenantAddress:    tenant,
		TenantName:       stripTags(in.TenantName, 500),
		TenantEmail:      stripTags(in.TenantEmail, 500),
		AgreedTermMonths: in.AgreedTermMonths,
		Status:           enrollmentStatusActive,
		TargetOwnership:  now.AddDate(0, in.AgreedTermMonths, 0),
		NextPaymentDue:   now.AddDate(0, 1, 0),
		CreatedAt:        now,
	}

	if err := s.repo.CreateEnrollment(ctx, enrollment); err != nil {
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}

	s.log.Info("keygrow enrollment created",
		zap.String("id", enrollment.ID),
		zap.String("tenant", tenant),
		zap.Uint64("property", in.PropertyID))

	return enrollment, nil
}

// List returns the enrollments matching filter. The tenant address is
// normalized before the lookup.
func (s *EnrollmentService) List(ctx context.Context, filter ports.EnrollmentFilter) ([]*core.Enrollment, error) {
	tenant, err := core.NormalizeAddress(filter.Tenant)
	if err != nil {
		return nil, invalid("Valid tenant wallet address is required")
	}
	filter.Tenant = tenant
	return s.repo.ListEnrollments(ctx, filter)
}

// IsDuplicate reports whether err is a rejected duplicate enrollment
func IsDuplicate(err error) bool {
	return errors.Is(err, core.ErrDuplicateRecord)
}

func enrollmentID(tenant string, propertyID uint64, at time.Time) string {
	seed := tenant + "-" + strconv.FormatUint(propertyID, 10) + "-" + strconv.FormatInt(at.UnixNano(), 10)
	return crypto.Keccak256Hash([]byte(seed)).Hex()
}
