package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/layer-3/axiom/adapters/records"
	"github.com/layer-3/axiom/core"
	"github.com/layer-3/axiom/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, records.AutoMigrate(db))
	return db
}

func validGrant() GrantInput {
	return GrantInput{
		ProposerAddress: strings.ToLower(testAddress),
		Title:           "  Bridge monitoring  ",
		Description:     strings.Repeat("Fund a public dashboard for bridge health. ", 3),
		Category:        "infrastructure",
		RequestedAmount: "25000.50",
	}
}

func TestGrantCreate(t *testing.T) {
	svc := NewGrantService(records.NewGrantRepository(setupTestDB(t)), nil)
	ctx := context.Background()

	grant, err := svc.Create(ctx, validGrant())
	require.NoError(t, err)
	assert.Equal(t, testAddress, grant.ProposerAddress)
	assert.Equal(t, "Bridge monitoring", grant.Title)
	assert.Equal(t, "voting", grant.Status)
	assert.Equal(t, 7*24*time.Hour, grant.VotingEndsAt.Sub(grant.VotingStartsAt))
	assert.Equal(t, "25000.5", grant.RequestedAmount.String())

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, grant.ID, list[0].ID)
	assert.True(t, grant.RequestedAmount.Equal(list[0].RequestedAmount))
}

func TestGrantValidation(t *testing.T) {
	svc := NewGrantService(records.NewGrantRepository(setupTestDB(t)), nil)

	tests := []struct {
		name   string
		mutate func(in *GrantInput)
		want   string
	}{
		{"missing field", func(in *GrantInput) { in.Category = "" }, "Missing required fields"},
		{"bad address", func(in *GrantInput) { in.ProposerAddress = "0x1234" }, "Invalid wallet address"},
		{"short title", func(in *GrantInput) { in.Title = " abc " }, "Title must be"},
		{"short description", func(in *GrantInput) { in.Description = "too short" }, "Description must be"},
		{"script only description", func(in *GrantInput) {
			in.Description = "<script>" + strings.Repeat("x", 60) + "</script>"
		}, "Description must be"},
		{"unknown category", func(in *GrantInput) { in.Category = "lobbying" }, "Invalid category"},
		{"zero amount", func(in *GrantInput) { in.RequestedAmount = "0" }, "Invalid requested amount"},
		{"too large", func(in *GrantInput) { in.RequestedAmount = "100000000000.01" }, "Invalid requested amount"},
		{"not a number", func(in *GrantInput) { in.RequestedAmount = "lots" }, "Invalid requested amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validGrant()
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), in)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Contains(t, verr.Message, tt.want)
		})
	}
}

func TestGrantAmountUpperBound(t *testing.T) {
	svc := NewGrantService(records.NewGrantRepository(setupTestDB(t)), nil)

	in := validGrant()
	in.RequestedAmount = "100000000000"
	_, err := svc.Create(context.Background(), in)
	assert.NoError(t, err)
}

func TestEnroll(t *testing.T) {
	svc := NewEnrollmentService(records.NewEnrollmentRepository(setupTestDB(t)), nil)
	ctx := context.Background()

	e, err := svc.Enroll(ctx, EnrollmentInput{
		PropertyID:       7,
		TenantAddress:    strings.ToLower(testAddress),
		TenantName:       "<b>Ada</b> Lovelace",
		TenantEmail:      "ada@example.com",
		AgreedTermMonths: 24,
	})
	require.NoError(t, err)
	assert.Equal(t, testAddress, e.TenantAddress)
	assert.Equal(t, "Ada Lovelace", e.TenantName)
	assert.Equal(t, "active", e.Status)
	assert.Len(t, e.ID, 66)
	assert.True(t, e.TargetOwnership.Equal(e.CreatedAt.AddDate(0, 24, 0)))

	_, err = svc.Enroll(ctx, EnrollmentInput{PropertyID: 7, TenantAddress: testAddress, AgreedTermMonths: 12})
	assert.True(t, IsDuplicate(err))

	// A different property is fine
	_, err = svc.Enroll(ctx, EnrollmentInput{PropertyID: 8, TenantAddress: testAddress, AgreedTermMonths: 12})
	require.NoError(t, err)

	all, err := svc.List(ctx, ports.EnrollmentFilter{Tenant: strings.ToLower(testAddress)})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := svc.List(ctx, ports.EnrollmentFilter{Tenant: testAddress, PropertyID: 8})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, uint64(8), one[0].PropertyID)
}

func TestEnrollValidation(t *testing.T) {
	svc := NewEnrollmentService(records.NewEnrollmentRepository(setupTestDB(t)), nil)
	ctx := context.Background()

	_, err := svc.Enroll(ctx, EnrollmentInput{TenantAddress: testAddress, AgreedTermMonths: 12})
	assert.IsType(t, &ValidationError{}, err)

	_, err = svc.Enroll(ctx, EnrollmentInput{PropertyID: 1, TenantAddress: "nope", AgreedTermMonths: 12})
	assert.IsType(t, &ValidationError{}, err)

	_, err = svc.Enroll(ctx, EnrollmentInput{PropertyID: 1, TenantAddress: testAddress, AgreedTermMonths: 11})
	assert.EqualError(t, err, "Minimum term is 12 months")

	_, err = svc.List(ctx, ports.EnrollmentFilter{Tenant: "0xnope"})
	assert.IsType(t, &ValidationError{}, err)
	assert.False(t, errors.Is(err, core.ErrDuplicateRecord))
}
