package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/claim"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/model"
)

// ClaimStore persists claims, their evidence attachments, and their audit
// trail. State transitions are serialized per claim id with
// status-conditioned updates: the losing writer gets an error, never a
// silent overwrite.
type ClaimStore struct {
	db *sql.DB
}

func NewClaimStore(db *sql.DB) *ClaimStore {
	return &ClaimStore{db: db}
}

const claimCols = `id, member_id, category, details, description, expected_miles, actual_miles, status, rejection_reason, admin_note, submitted_at, resolved_at`

func scanClaim(scanner interface{ Scan(...any) error }) (*model.Claim, error) {
	var c model.Claim
	var details string
	var actualMiles sql.NullInt64
	var resolvedAt sql.NullTime

	err := scanner.Scan(&c.ID, &c.MemberID, &c.Category, &details, &c.Description,
		&c.ExpectedMiles, &actualMiles, &c.Status, &c.RejectionReason, &c.AdminNote,
		&c.SubmittedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}

	if details != "" {
		if err := json.Unmarshal([]byte(details), &c.Details); err != nil {
			return nil, fmt.Errorf("unmarshal details: %w", err)
		}
	}
	if actualMiles.Valid {
		m := int(actualMiles.Int64)
		c.ActualMiles = &m
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		c.ResolvedAt = &t
	}
	return &c, nil
}

// Create inserts a claim, its attachments, and the submission audit event in
// one transaction. The claim arrives fully validated.
func (s *ClaimStore) Create(ctx context.Context, c *model.Claim) error {
	details, err := json.Marshal(c.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO claims (id, member_id, category, details, description, expected_miles, status, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.MemberID, c.Category, string(details), c.Description, c.ExpectedMiles, c.Status, c.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}

	for i := range c.Attachments {
		a := &c.Attachments[i]
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO claim_attachments (id, claim_id, url, filename, size_bytes, position)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			a.ID, c.ID, a.URL, a.Filename, a.SizeBytes, i,
		)
		if err != nil {
			return fmt.Errorf("insert attachment: %w", err)
		}
	}

	if err := appendEvent(ctx, tx, c.ID, model.EventSubmitted, c.MemberID, ""); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetByID returns a claim with its attachments, or nil if no such claim
// exists.
func (s *ClaimStore) GetByID(ctx context.Context, id string) (*model.Claim, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+claimCols+` FROM claims WHERE id = ?`, id)
	c, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}

	if c.Attachments, err = s.attachments(ctx, id); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ClaimStore) attachments(ctx context.Context, claimID string) ([]model.Attachment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, filename, size_bytes, created_at FROM claim_attachments
		 WHERE claim_id = ? ORDER BY position ASC`, claimID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	var atts []model.Attachment
	for rows.Next() {
		var a model.Attachment
		if err := rows.Scan(&a.ID, &a.URL, &a.Filename, &a.SizeBytes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		atts = append(atts, a)
	}
	return atts, rows.Err()
}

// List returns claims matching the filter, newest submission first. The
// query term matches case-insensitively against claim id, member email and
// name, and description.
func (s *ClaimStore) List(ctx context.Context, f claim.Filter) ([]model.Claim, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "c.status = ?")
		args = append(args, f.Status)
	}
	if f.MemberID != 0 {
		where = append(where, "c.member_id = ?")
		args = append(args, f.MemberID)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		where = append(where, `(LOWER(c.id) LIKE ? OR LOWER(c.description) LIKE ? OR LOWER(m.email) LIKE ? OR LOWER(m.name) LIKE ?)`)
		args = append(args, like, like, like, like)
	}

	query := `SELECT ` + prefixCols("c", claimCols) + `
		FROM claims c JOIN members m ON m.id = c.member_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY c.submitted_at DESC, c.id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var claims []model.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range claims {
		if claims[i].Attachments, err = s.attachments(ctx, claims[i].ID); err != nil {
			return nil, err
		}
	}
	return claims, nil
}

// UpdatePending revises member-editable fields while the claim is still
// pending and owned by memberID.
func (s *ClaimStore) UpdatePending(ctx context.Context, id string, memberID int64, a claim.Amendment) (*model.Claim, error) {
	details, err := json.Marshal(a.Details)
	if err != nil {
		return nil, fmt.Errorf("marshal details: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE claims SET details = ?, description = ?, expected_miles = ?
		 WHERE id = ? AND member_id = ? AND status = ?`,
		string(details), a.Description, a.ExpectedMiles, id, memberID, model.StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("update pending claim: %w", err)
	}
	if err := requireRow(ctx, tx, res, id, model.StatusPending); err != nil {
		return nil, err
	}

	if err := appendEvent(ctx, tx, id, model.EventAmended, memberID, ""); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(ctx, id)
}

// AddAttachment appends one evidence file to a non-terminal claim.
func (s *ClaimStore) AddAttachment(ctx context.Context, id string, att model.Attachment) (*model.Claim, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var status model.ClaimStatus
	var memberID int64
	err = tx.QueryRowContext(ctx, `SELECT status, member_id FROM claims WHERE id = ?`, id).Scan(&status, &memberID)
	if err == sql.ErrNoRows {
		return nil, claim.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get claim status: %w", err)
	}
	if claim.Terminal(status) {
		return nil, claim.ErrInvalidStateTransition
	}

	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO claim_attachments (id, claim_id, url, filename, size_bytes, position)
		 VALUES (?, ?, ?, ?, ?, (SELECT COUNT(*) FROM claim_attachments WHERE claim_id = ?))`,
		att.ID, id, att.URL, att.Filename, att.SizeBytes, id,
	)
	if err != nil {
		return nil, fmt.Errorf("insert attachment: %w", err)
	}

	if err := appendEvent(ctx, tx, id, model.EventEvidence, memberID, att.Filename); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(ctx, id)
}

// StartReview moves a pending claim into processing and records the review
// start in the audit trail.
func (s *ClaimStore) StartReview(ctx context.Context, id string, adminID int64) (*model.Claim, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE claims SET status = ? WHERE id = ? AND status = ?`,
		model.StatusProcessing, id, model.StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("start review: %w", err)
	}
	if err := requireRow(ctx, tx, res, id, model.StatusPending); err != nil {
		return nil, err
	}

	if err := appendEvent(ctx, tx, id, model.EventReviewStart, adminID, ""); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Approve resolves a reviewable claim as approved. The credit callback runs
// inside the same transaction: if it fails, the status change rolls back and
// no miles are credited. The conditional update is the transaction's first
// statement so a losing concurrent approver queues on the write lock rather
// than failing a stale read snapshot; its claim is then re-read to classify
// the zero-row case.
func (s *ClaimStore) Approve(ctx context.Context, id string, adminID int64, actualMiles int, adminNote string, credit func(tx *sql.Tx, c *model.Claim) error) (*model.Claim, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE claims SET status = ?, actual_miles = ?, admin_note = ?, resolved_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		model.StatusApproved, actualMiles, adminNote, time.Now().UTC(),
		id, model.StatusPending, model.StatusProcessing,
	)
	if err != nil {
		return nil, fmt.Errorf("approve claim: %w", err)
	}
	if err := requireReviewableRow(ctx, tx, res, id); err != nil {
		return nil, err
	}

	row := tx.QueryRowContext(ctx, `SELECT `+claimCols+` FROM claims WHERE id = ?`, id)
	c, err := scanClaim(row)
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}

	if err := credit(tx, c); err != nil {
		return nil, err
	}

	if err := appendEvent(ctx, tx, id, model.EventApproved, adminID, adminNote); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Reject resolves a reviewable claim as rejected with the given reason.
func (s *ClaimStore) Reject(ctx context.Context, id string, adminID int64, reason string) (*model.Claim, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE claims SET status = ?, rejection_reason = ?, resolved_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		model.StatusRejected, reason, time.Now().UTC(),
		id, model.StatusPending, model.StatusProcessing,
	)
	if err != nil {
		return nil, fmt.Errorf("reject claim: %w", err)
	}
	if err := requireReviewableRow(ctx, tx, res, id); err != nil {
		return nil, err
	}

	if err := appendEvent(ctx, tx, id, model.EventRejected, adminID, reason); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Events returns a claim's audit trail in chronological order.
func (s *ClaimStore) Events(ctx context.Context, id string) ([]model.ClaimEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, claim_id, action, actor_id, note, created_at FROM claim_events
		 WHERE claim_id = ? ORDER BY id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("list claim events: %w", err)
	}
	defer rows.Close()

	var events []model.ClaimEvent
	for rows.Next() {
		var e model.ClaimEvent
		if err := rows.Scan(&e.ID, &e.ClaimID, &e.Action, &e.ActorID, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan claim event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func appendEvent(ctx context.Context, tx *sql.Tx, claimID, action string, actorID int64, note string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO claim_events (claim_id, action, actor_id, note) VALUES (?, ?, ?, ?)`,
		claimID, action, actorID, note,
	)
	if err != nil {
		return fmt.Errorf("append claim event: %w", err)
	}
	return nil
}

// requireRow classifies a zero-row conditional update against an expected
// single from-status: the claim is missing, already moved on, or was
// modified by a concurrent writer.
func requireRow(ctx context.Context, tx *sql.Tx, res sql.Result, id string, want model.ClaimStatus) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var status model.ClaimStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM claims WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return claim.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get claim status: %w", err)
	}
	if status != want {
		return claim.ErrInvalidStateTransition
	}
	return claim.ErrConcurrentModification
}

// requireReviewableRow is requireRow for transitions allowed from any
// reviewable (non-terminal) status.
func requireReviewableRow(ctx context.Context, tx *sql.Tx, res sql.Result, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var status model.ClaimStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM claims WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return claim.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get claim status: %w", err)
	}
	if claim.Terminal(status) {
		return claim.ErrInvalidStateTransition
	}
	return claim.ErrConcurrentModification
}

// prefixCols qualifies a comma-separated column list with a table alias.
func prefixCols(alias, cols string) string {
	parts := strings.Split(cols, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}
