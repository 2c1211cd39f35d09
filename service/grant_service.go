package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/axiom/core"
	"github.com/layer-3/axiom/ports"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	grantVotingPeriod = 7 * 24 * time.Hour
	grantStatusVoting = "voting"
	grantListLimit    = 50
)

// GrantCategories lists the accepted grant categories
var GrantCategories = []string{
	"development", "marketing", "community", "infrastructure",
	"research", "education", "partnerships", "other",
}

var maxGrantAmount = decimal.New(100, 9)

// GrantInput is a grant proposal as submitted
type GrantInput struct {
	ProposerAddress string
	Title           string
	Description     string
	Category        string
	RequestedAmount string
}

// GrantService validates and stores governance grant proposals
type GrantService struct {
	repo ports.GrantRepository
	log  *zap.Logger
	now  func() time.Time
}

// NewGrantService creates a grant service
func NewGrantService(repo ports.GrantRepository, log *zap.Logger) *GrantService {
	if log == nil {
		log = zap.NewNop()
	}
	return &GrantService{repo: repo, log: log, now: time.Now}
}

// Create validates in and opens a 7 day voting window for it. The caller is
// responsible for proving that the proposer address belongs to the requester.
func (s *GrantService) Create(ctx context.Context, in GrantInput) (*core.Grant, error) {
	if in.ProposerAddress == "" || in.Title == "" || in.Description == "" || in.Category == "" || in.RequestedAmount == "" {
		return nil, invalid("Missing required fields: proposerAddress, title, description, category, requestedAmount")
	}

	proposer, err := core.NormalizeAddress(in.ProposerAddress)
	if err != nil {
		return nil, invalid("Invalid wallet address format")
	}

	title := truncate(strings.TrimSpace(in.Title), 200)
	if len([]rune(title)) < 5 {
		return nil, invalid("Title must be at least 5 characters")
	}

	description := stripScripts(truncate(strings.TrimSpace(in.Description), 5000))
	if len([]rune(description)) < 50 {
		return nil, invalid("Description must be at least 50 characters")
	}

	if !slices.Contains(GrantCategories, in.Category) {
		return nil, invalid("Invalid category. Must be one of: " + strings.Join(GrantCategories, ", "))
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(in.RequestedAmount))
	if err != nil || !amount.IsPositive() || amount.GreaterThan(maxGrantAmount) {
		return nil, invalid("Invalid requested amount - must be a positive number up to 100 billion AXM")
	}

	now := s.now().UTC()
	grant := &core.Grant{
		ID:              uuid.New().String(),
		ProposerAddress: proposer,
		Title:           title,
		Description:     description,
		Category:        in.Category,
		RequestedAmount: amount,
		Status:          grantStatusVoting,
		VotingStartsAt:  now,
		VotingEndsAt:    now.Add(grantVotingPeriod),
		CreatedAt:       now,
	}

	if err := s.repo.CreateGrant(ctx, grant); err != nil {
		return nil, fmt.Errorf("failed to create grant: %w", err)
	}

	s.log.Info("grant proposal created",
		zap.String("id", grant.ID),
		zap.String("proposer", proposer),
		zap.String("amount", amount.String()))

	return grant, nil
}

// List returns recent grants, newest first
func (s *GrantService) List(ctx context.Context) ([]*core.Grant, error) {
	return s.repo.ListGrants(ctx, grantListLimit)
}
