package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/model"
)

// LedgerStore is the member miles ledger: an append-only transaction log.
// Balances are derived, never stored.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// CreditTx records a claim credit inside an existing transaction so the
// caller can tie it to a claim state change. A unique index on
// (claim_id, kind='claim_credit') keeps double credits out even if the state
// guard were ever bypassed.
func (s *LedgerStore) CreditTx(tx *sql.Tx, memberID int64, claimID string, miles int, description string) (int64, error) {
	result, err := tx.Exec(
		`INSERT INTO miles_transactions (member_id, claim_id, amount, kind, description)
		 VALUES (?, ?, ?, ?, ?)`,
		memberID, claimID, miles, model.TxnClaimCredit, description,
	)
	if err != nil {
		return 0, fmt.Errorf("insert claim credit: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Adjust records a standalone ledger entry (manual adjustment, redemption).
func (s *LedgerStore) Adjust(ctx context.Context, memberID int64, amount int, kind, description string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO miles_transactions (member_id, amount, kind, description) VALUES (?, ?, ?, ?)`,
		memberID, amount, kind, description,
	)
	if err != nil {
		return 0, fmt.Errorf("insert ledger entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Balance computes a member's position: earned minus spent.
func (s *LedgerStore) Balance(ctx context.Context, memberID int64) (*model.MilesBalance, error) {
	var earned, spent sql.NullInt64

	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM miles_transactions WHERE member_id = ? AND amount > 0`,
		memberID,
	).Scan(&earned)
	if err != nil {
		return nil, fmt.Errorf("sum miles earned: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(-amount), 0) FROM miles_transactions WHERE member_id = ? AND amount < 0`,
		memberID,
	).Scan(&spent)
	if err != nil {
		return nil, fmt.Errorf("sum miles spent: %w", err)
	}

	return &model.MilesBalance{
		MemberID:    memberID,
		TotalEarned: int(earned.Int64),
		TotalSpent:  int(spent.Int64),
		Balance:     int(earned.Int64) - int(spent.Int64),
	}, nil
}

// Transactions returns a member's ledger history, newest first.
func (s *LedgerStore) Transactions(ctx context.Context, memberID int64) ([]model.MilesTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, member_id, claim_id, amount, kind, description, created_at
		 FROM miles_transactions WHERE member_id = ? ORDER BY id DESC`, memberID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.MilesTransaction
	for rows.Next() {
		var t model.MilesTransaction
		var claimID sql.NullString
		if err := rows.Scan(&t.ID, &t.MemberID, &claimID, &t.Amount, &t.Kind, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if claimID.Valid {
			t.ClaimID = &claimID.String
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
