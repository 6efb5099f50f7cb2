package claim

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/model"
)

// Repo is the persistence contract for claims. Implementations must make
// each transition atomic per claim id: a status-conditioned update that
// matches no row fails with ErrInvalidStateTransition (claim already
// terminal) or ErrConcurrentModification (lost the race), never a silent
// overwrite.
type Repo interface {
	Create(ctx context.Context, c *model.Claim) error
	GetByID(ctx context.Context, id string) (*model.Claim, error)
	List(ctx context.Context, f Filter) ([]model.Claim, error)
	UpdatePending(ctx context.Context, id string, memberID int64, a Amendment) (*model.Claim, error)
	AddAttachment(ctx context.Context, id string, att model.Attachment) (*model.Claim, error)
	StartReview(ctx context.Context, id string, adminID int64) (*model.Claim, error)
	Approve(ctx context.Context, id string, adminID int64, actualMiles int, adminNote string, credit func(tx *sql.Tx, c *model.Claim) error) (*model.Claim, error)
	Reject(ctx context.Context, id string, adminID int64, reason string) (*model.Claim, error)
	Events(ctx context.Context, id string) ([]model.ClaimEvent, error)
}

// Ledger issues miles credits. CreditTx runs inside the approval's database
// transaction so the status change and the credit commit or roll back
// together.
type Ledger interface {
	CreditTx(tx *sql.Tx, memberID int64, claimID string, miles int, description string) (int64, error)
}

// Filter narrows a claim listing. Zero values mean "no constraint".
type Filter struct {
	Status   model.ClaimStatus
	Query    string
	MemberID int64
}

// Actor identifies the caller of a lifecycle operation.
type Actor struct {
	ID   int64
	Role string
}

func (a Actor) admin() bool { return a.Role == model.RoleAdmin }

// Service is the authoritative claim lifecycle. All mutations go through it.
type Service struct {
	repo   Repo
	ledger Ledger
	logger *slog.Logger
}

func NewService(repo Repo, ledger Ledger, logger *slog.Logger) *Service {
	return &Service{repo: repo, ledger: ledger, logger: logger}
}

// Submit validates a new claim and persists it in pending status. On any
// validation failure nothing is stored.
func (s *Service) Submit(ctx context.Context, actor Actor, sub Submission) (*model.Claim, error) {
	sub.MemberID = actor.ID
	sub, err := sub.Validate()
	if err != nil {
		return nil, err
	}

	c := &model.Claim{
		ID:            uuid.NewString(),
		MemberID:      sub.MemberID,
		Category:      sub.Category,
		Details:       sub.Details,
		Description:   sub.Description,
		Attachments:   sub.Attachments,
		ExpectedMiles: sub.ExpectedMiles,
		Status:        model.StatusPending,
		SubmittedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, s.mapErr(ctx, fmt.Errorf("create claim: %w", err))
	}

	s.logger.Info("claim submitted",
		"claim_id", c.ID, "member_id", c.MemberID,
		"category", c.Category, "expected_miles", c.ExpectedMiles)
	return c, nil
}

// Get returns a claim. Members only see their own claims; a foreign id looks
// like a missing one.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (*model.Claim, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapErr(ctx, err)
	}
	if c == nil || (!actor.admin() && c.MemberID != actor.ID) {
		return nil, ErrNotFound
	}
	return c, nil
}

// List returns claims matching the filter. Non-admin callers are always
// scoped to their own claims regardless of the filter.
func (s *Service) List(ctx context.Context, actor Actor, f Filter) ([]model.Claim, error) {
	if !actor.admin() {
		f.MemberID = actor.ID
	}
	claims, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, s.mapErr(ctx, err)
	}
	return claims, nil
}

// Amend lets the submitting member revise details, description, and expected
// miles while the claim is still pending.
func (s *Service) Amend(ctx context.Context, actor Actor, id string, a Amendment) (*model.Claim, error) {
	c, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if c.MemberID != actor.ID {
		return nil, ErrUnauthorized
	}
	a, err = validateAmendment(c.Category, a)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdatePending(ctx, id, actor.ID, a)
	if err != nil {
		return nil, s.mapErr(ctx, err)
	}
	return updated, nil
}

// AddEvidence appends an attachment to a non-terminal claim owned by the
// actor. Evidence can only ever be added, never removed.
func (s *Service) AddEvidence(ctx context.Context, actor Actor, id string, att model.Attachment) (*model.Claim, error) {
	c, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if c.MemberID != actor.ID {
		return nil, ErrUnauthorized
	}
	if att.ID == "" || att.URL == "" {
		return nil, ErrMissingEvidence
	}
	updated, err := s.repo.AddAttachment(ctx, id, att)
	if err != nil {
		return nil, s.mapErr(ctx, err)
	}
	return updated, nil
}

// StartReview moves a pending claim into processing.
func (s *Service) StartReview(ctx context.Context, actor Actor, id string) (*model.Claim, error) {
	if !actor.admin() {
		return nil, ErrUnauthorized
	}
	c, err := s.repo.StartReview(ctx, id, actor.ID)
	if err != nil {
		return nil, s.mapErr(ctx, err)
	}
	s.logger.Info("claim review started", "claim_id", id, "admin_id", actor.ID)
	return c, nil
}

// Approve resolves a reviewable claim as approved, crediting actualMiles to
// the member's ledger in the same transaction as the status change. A retried
// approve on an already-approved claim fails the state guard, so at most one
// credit is ever issued per claim.
func (s *Service) Approve(ctx context.Context, actor Actor, id string, actualMiles int, adminNote string) (*model.Claim, error) {
	if !actor.admin() {
		return nil, ErrUnauthorized
	}
	if actualMiles < 0 {
		return nil, fmt.Errorf("actual_miles: %w", ErrInvalidMilesValue)
	}

	credit := func(tx *sql.Tx, c *model.Claim) error {
		desc := fmt.Sprintf("manual claim credit (claim %s)", c.ID)
		if _, err := s.ledger.CreditTx(tx, c.MemberID, c.ID, actualMiles, desc); err != nil {
			return fmt.Errorf("%w: %v", ErrLedgerCreditFailed, err)
		}
		return nil
	}

	c, err := s.repo.Approve(ctx, id, actor.ID, actualMiles, adminNote, credit)
	if err != nil {
		return nil, s.mapErr(ctx, err)
	}

	s.logger.Info("claim approved",
		"claim_id", id, "admin_id", actor.ID,
		"actual_miles", actualMiles, "member_id", c.MemberID)
	return c, nil
}

// Reject resolves a reviewable claim as rejected. The reason is mandatory.
func (s *Service) Reject(ctx context.Context, actor Actor, id string, reason string) (*model.Claim, error) {
	if !actor.admin() {
		return nil, ErrUnauthorized
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("rejection reason: %w", ErrMissingDetailField)
	}

	c, err := s.repo.Reject(ctx, id, actor.ID, reason)
	if err != nil {
		return nil, s.mapErr(ctx, err)
	}

	s.logger.Info("claim rejected", "claim_id", id, "admin_id", actor.ID)
	return c, nil
}

// Events returns the audit trail of a claim, newest last.
func (s *Service) Events(ctx context.Context, actor Actor, id string) ([]model.ClaimEvent, error) {
	if !actor.admin() {
		return nil, ErrUnauthorized
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapErr(ctx, err)
	}
	if c == nil {
		return nil, ErrNotFound
	}
	events, err := s.repo.Events(ctx, id)
	if err != nil {
		return nil, s.mapErr(ctx, err)
	}
	return events, nil
}

// mapErr folds a caller-supplied timeout into a single failure outcome.
func (s *Service) mapErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrOperationTimedOut, err)
	}
	return err
}
