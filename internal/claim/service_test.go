package claim

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/model"
)

// fakeRepo is an in-memory Repo that enforces the same status guards as the
// real store: a decision on a terminal claim fails with
// ErrInvalidStateTransition and never calls the credit callback.
type fakeRepo struct {
	mu     sync.Mutex
	claims map[string]*model.Claim
	events map[string][]model.ClaimEvent
	err    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		claims: make(map[string]*model.Claim),
		events: make(map[string][]model.ClaimEvent),
	}
}

func (r *fakeRepo) Create(ctx context.Context, c *model.Claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	cp := *c
	r.claims[c.ID] = &cp
	r.appendEvent(c.ID, model.EventSubmitted, c.MemberID, "")
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*model.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	c, ok := r.claims[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeRepo) List(ctx context.Context, f Filter) ([]model.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Claim
	for _, c := range r.claims {
		if f.MemberID != 0 && c.MemberID != f.MemberID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (r *fakeRepo) UpdatePending(ctx context.Context, id string, memberID int64, a Amendment) (*model.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.claims[id]
	if !ok {
		return nil, ErrNotFound
	}
	if c.Status != model.StatusPending {
		return nil, ErrInvalidStateTransition
	}
	c.Details = a.Details
	c.Description = a.Description
	c.ExpectedMiles = a.ExpectedMiles
	r.appendEvent(id, model.EventAmended, memberID, "")
	cp := *c
	return &cp, nil
}

func (r *fakeRepo) AddAttachment(ctx context.Context, id string, att model.Attachment) (*model.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.claims[id]
	if !ok {
		return nil, ErrNotFound
	}
	if Terminal(c.Status) {
		return nil, ErrInvalidStateTransition
	}
	c.Attachments = append(c.Attachments, att)
	r.appendEvent(id, model.EventEvidence, c.MemberID, att.Filename)
	cp := *c
	return &cp, nil
}

func (r *fakeRepo) StartReview(ctx context.Context, id string, adminID int64) (*model.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.claims[id]
	if !ok {
		return nil, ErrNotFound
	}
	if c.Status != model.StatusPending {
		return nil, ErrInvalidStateTransition
	}
	c.Status = model.StatusProcessing
	r.appendEvent(id, model.EventReviewStart, adminID, "")
	cp := *c
	return &cp, nil
}

func (r *fakeRepo) Approve(ctx context.Context, id string, adminID int64, actualMiles int, adminNote string, credit func(tx *sql.Tx, c *model.Claim) error) (*model.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.claims[id]
	if !ok {
		return nil, ErrNotFound
	}
	if Terminal(c.Status) {
		return nil, ErrInvalidStateTransition
	}
	if err := credit(nil, c); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	c.Status = model.StatusApproved
	c.ActualMiles = &actualMiles
	c.AdminNote = adminNote
	c.ResolvedAt = &now
	r.appendEvent(id, model.EventApproved, adminID, adminNote)
	cp := *c
	return &cp, nil
}

func (r *fakeRepo) Reject(ctx context.Context, id string, adminID int64, reason string) (*model.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.claims[id]
	if !ok {
		return nil, ErrNotFound
	}
	if Terminal(c.Status) {
		return nil, ErrInvalidStateTransition
	}
	now := time.Now().UTC()
	c.Status = model.StatusRejected
	c.RejectionReason = reason
	c.ResolvedAt = &now
	r.appendEvent(id, model.EventRejected, adminID, reason)
	cp := *c
	return &cp, nil
}

func (r *fakeRepo) Events(ctx context.Context, id string) ([]model.ClaimEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ClaimEvent(nil), r.events[id]...), nil
}

func (r *fakeRepo) appendEvent(id, action string, actorID int64, note string) {
	r.events[id] = append(r.events[id], model.ClaimEvent{
		ClaimID: id, Action: action, ActorID: actorID, Note: note, CreatedAt: time.Now().UTC(),
	})
}

type fakeLedger struct {
	mu      sync.Mutex
	credits int
	miles   int
	err     error
}

func (l *fakeLedger) CreditTx(tx *sql.Tx, memberID int64, claimID string, miles int, description string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return 0, l.err
	}
	l.credits++
	l.miles += miles
	return int64(l.credits), nil
}

var (
	member = Actor{ID: 1, Role: model.RoleMember}
	admin  = Actor{ID: 99, Role: model.RoleAdmin}
)

func setupService(t *testing.T) (*Service, *fakeRepo, *fakeLedger) {
	t.Helper()
	repo := newFakeRepo()
	ledger := &fakeLedger{}
	return NewService(repo, ledger, slog.Default()), repo, ledger
}

func submitFlight(t *testing.T, svc *Service) *model.Claim {
	t.Helper()
	c, err := svc.Submit(context.Background(), member, flightSubmission())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return c
}

func TestSubmit(t *testing.T) {
	svc, repo, _ := setupService(t)

	c := submitFlight(t, svc)
	if c.Status != model.StatusPending {
		t.Errorf("status = %s, want pending", c.Status)
	}
	if c.ID == "" {
		t.Error("expected generated claim id")
	}
	if c.ExpectedMiles != 1250 {
		t.Errorf("expected_miles = %d, want 1250", c.ExpectedMiles)
	}

	events, _ := repo.Events(context.Background(), c.ID)
	if len(events) != 1 || events[0].Action != model.EventSubmitted {
		t.Errorf("events = %+v, want single submitted event", events)
	}
}

func TestSubmitValidationStoresNothing(t *testing.T) {
	svc, repo, _ := setupService(t)

	sub := flightSubmission()
	sub.Attachments = nil
	if _, err := svc.Submit(context.Background(), member, sub); !errors.Is(err, ErrMissingEvidence) {
		t.Fatalf("err = %v, want ErrMissingEvidence", err)
	}
	if len(repo.claims) != 0 {
		t.Errorf("claims stored = %d, want 0", len(repo.claims))
	}
}

func TestGetScopedToOwner(t *testing.T) {
	svc, _, _ := setupService(t)
	c := submitFlight(t, svc)

	if _, err := svc.Get(context.Background(), member, c.ID); err != nil {
		t.Errorf("owner get: %v", err)
	}
	if _, err := svc.Get(context.Background(), admin, c.ID); err != nil {
		t.Errorf("admin get: %v", err)
	}

	// Another member sees the claim as missing, not forbidden.
	other := Actor{ID: 2, Role: model.RoleMember}
	if _, err := svc.Get(context.Background(), other, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListScopesMembers(t *testing.T) {
	svc, _, _ := setupService(t)
	submitFlight(t, svc)

	other := Actor{ID: 2, Role: model.RoleMember}
	// A member asking for someone else's claims still gets only their own.
	claims, err := svc.List(context.Background(), other, Filter{MemberID: member.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(claims) != 0 {
		t.Errorf("got %d claims, want 0", len(claims))
	}

	claims, err = svc.List(context.Background(), admin, Filter{})
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(claims) != 1 {
		t.Errorf("admin got %d claims, want 1", len(claims))
	}
}

func TestAmendPendingOnly(t *testing.T) {
	svc, _, _ := setupService(t)
	c := submitFlight(t, svc)

	a := Amendment{
		Details:       c.Details,
		Description:   "corrected route",
		ExpectedMiles: 1400,
	}
	updated, err := svc.Amend(context.Background(), member, c.ID, a)
	if err != nil {
		t.Fatalf("amend: %v", err)
	}
	if updated.ExpectedMiles != 1400 {
		t.Errorf("expected_miles = %d, want 1400", updated.ExpectedMiles)
	}

	// Once review starts the claim is frozen to the member.
	if _, err := svc.StartReview(context.Background(), admin, c.ID); err != nil {
		t.Fatalf("start review: %v", err)
	}
	if _, err := svc.Amend(context.Background(), member, c.ID, a); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("err = %v, want ErrInvalidStateTransition", err)
	}
}

func TestAmendForeignClaim(t *testing.T) {
	svc, _, _ := setupService(t)
	c := submitFlight(t, svc)

	other := Actor{ID: 2, Role: model.RoleMember}
	a := Amendment{Details: c.Details, Description: "x", ExpectedMiles: 1}
	if _, err := svc.Amend(context.Background(), other, c.ID, a); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAddEvidence(t *testing.T) {
	svc, _, _ := setupService(t)
	c := submitFlight(t, svc)

	att := model.Attachment{ID: "att-9", URL: "https://bucket/att-9.png", Filename: "receipt.png"}
	updated, err := svc.AddEvidence(context.Background(), member, c.ID, att)
	if err != nil {
		t.Fatalf("add evidence: %v", err)
	}
	if len(updated.Attachments) != 2 {
		t.Errorf("attachments = %d, want 2", len(updated.Attachments))
	}

	if _, err := svc.AddEvidence(context.Background(), member, c.ID, model.Attachment{}); !errors.Is(err, ErrMissingEvidence) {
		t.Errorf("empty attachment: err = %v, want ErrMissingEvidence", err)
	}
}

func TestStartReviewRequiresAdmin(t *testing.T) {
	svc, _, _ := setupService(t)
	c := submitFlight(t, svc)

	if _, err := svc.StartReview(context.Background(), member, c.ID); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}

	updated, err := svc.StartReview(context.Background(), admin, c.ID)
	if err != nil {
		t.Fatalf("start review: %v", err)
	}
	if updated.Status != model.StatusProcessing {
		t.Errorf("status = %s, want processing", updated.Status)
	}
}

func TestApproveCreditsOnce(t *testing.T) {
	svc, _, ledger := setupService(t)
	c := submitFlight(t, svc)

	approved, err := svc.Approve(context.Background(), admin, c.ID, 1200, "verified against the flight manifest")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != model.StatusApproved {
		t.Errorf("status = %s, want approved", approved.Status)
	}
	if approved.ActualMiles == nil || *approved.ActualMiles != 1200 {
		t.Errorf("actual_miles = %v, want 1200", approved.ActualMiles)
	}
	if approved.ResolvedAt == nil {
		t.Error("expected resolved_at to be set")
	}
	if ledger.credits != 1 || ledger.miles != 1200 {
		t.Errorf("ledger credits = %d miles = %d, want 1 credit of 1200", ledger.credits, ledger.miles)
	}

	// A retried approve fails the state guard and issues no second credit.
	if _, err := svc.Approve(context.Background(), admin, c.ID, 1200, ""); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("retry err = %v, want ErrInvalidStateTransition", err)
	}
	if ledger.credits != 1 {
		t.Errorf("ledger credits = %d after retry, want 1", ledger.credits)
	}
}

func TestApproveRequiresAdmin(t *testing.T) {
	svc, _, ledger := setupService(t)
	c := submitFlight(t, svc)

	if _, err := svc.Approve(context.Background(), member, c.ID, 100, ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
	if ledger.credits != 0 {
		t.Errorf("ledger credits = %d, want 0", ledger.credits)
	}
}

func TestApproveNegativeMiles(t *testing.T) {
	svc, _, _ := setupService(t)
	c := submitFlight(t, svc)

	if _, err := svc.Approve(context.Background(), admin, c.ID, -1, ""); !errors.Is(err, ErrInvalidMilesValue) {
		t.Errorf("err = %v, want ErrInvalidMilesValue", err)
	}
}

func TestApproveLedgerFailureLeavesClaimOpen(t *testing.T) {
	svc, repo, ledger := setupService(t)
	c := submitFlight(t, svc)

	ledger.err = fmt.Errorf("ledger unavailable")
	if _, err := svc.Approve(context.Background(), admin, c.ID, 1200, ""); !errors.Is(err, ErrLedgerCreditFailed) {
		t.Fatalf("err = %v, want ErrLedgerCreditFailed", err)
	}

	got, _ := repo.GetByID(context.Background(), c.ID)
	if got.Status != model.StatusPending {
		t.Errorf("status = %s after failed credit, want pending", got.Status)
	}

	// The claim stays decidable: a later approve succeeds.
	ledger.err = nil
	if _, err := svc.Approve(context.Background(), admin, c.ID, 1200, ""); err != nil {
		t.Fatalf("approve after recovery: %v", err)
	}
	if ledger.credits != 1 {
		t.Errorf("ledger credits = %d, want 1", ledger.credits)
	}
}

func TestConcurrentApproveSingleWinner(t *testing.T) {
	svc, _, ledger := setupService(t)
	c := submitFlight(t, svc)

	const racers = 8
	var wg sync.WaitGroup
	errs := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Approve(context.Background(), admin, c.ID, 1200, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrInvalidStateTransition) {
			t.Errorf("loser err = %v, want ErrInvalidStateTransition", err)
		}
	}
	if wins != 1 {
		t.Errorf("winners = %d, want exactly 1", wins)
	}
	if ledger.credits != 1 {
		t.Errorf("ledger credits = %d, want exactly 1", ledger.credits)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	svc, repo, _ := setupService(t)
	c := submitFlight(t, svc)

	if _, err := svc.Reject(context.Background(), admin, c.ID, "   "); !errors.Is(err, ErrMissingDetailField) {
		t.Fatalf("err = %v, want ErrMissingDetailField", err)
	}

	// A refused reject leaves the claim where it was.
	got, _ := repo.GetByID(context.Background(), c.ID)
	if got.Status != model.StatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}

	rejected, err := svc.Reject(context.Background(), admin, c.ID, "duplicate of an earlier claim")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != model.StatusRejected {
		t.Errorf("status = %s, want rejected", rejected.Status)
	}
	if rejected.RejectionReason != "duplicate of an earlier claim" {
		t.Errorf("reason = %q", rejected.RejectionReason)
	}
}

func TestEventsAdminOnly(t *testing.T) {
	svc, _, _ := setupService(t)
	c := submitFlight(t, svc)

	if _, err := svc.Events(context.Background(), member, c.ID); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}

	if _, err := svc.StartReview(context.Background(), admin, c.ID); err != nil {
		t.Fatalf("start review: %v", err)
	}
	if _, err := svc.Approve(context.Background(), admin, c.ID, 1000, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}

	events, err := svc.Events(context.Background(), admin, c.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	want := []string{model.EventSubmitted, model.EventReviewStart, model.EventApproved}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, action := range want {
		if events[i].Action != action {
			t.Errorf("events[%d].Action = %q, want %q", i, events[i].Action, action)
		}
	}
}

func TestDeadlineMapsToTimeout(t *testing.T) {
	svc, repo, _ := setupService(t)
	repo.err = context.DeadlineExceeded

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := svc.Submit(ctx, member, flightSubmission())
	if !errors.Is(err, ErrOperationTimedOut) {
		t.Errorf("err = %v, want ErrOperationTimedOut", err)
	}
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrUnknownCategory, "unknown_category"},
		{ErrMissingEvidence, "missing_evidence"},
		{ErrInvalidStateTransition, "invalid_state_transition"},
		{ErrConcurrentModification, "concurrent_modification"},
		{ErrLedgerCreditFailed, "ledger_credit_failed"},
		{ErrOperationTimedOut, "operation_timed_out"},
		{fmt.Errorf("wrapped: %w", ErrNotFound), "not_found"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
