package model

import "time"

// Miles transaction kind constants
const (
	TxnClaimCredit = "claim_credit"
	TxnAdjustment  = "adjustment"
	TxnRedemption  = "redemption"
)

// MilesTransaction is one append-only entry in a member's miles ledger.
// Balances are derived by summing amounts; rows are never updated or deleted.
type MilesTransaction struct {
	ID          int64     `json:"id"`
	MemberID    int64     `json:"member_id"`
	ClaimID     *string   `json:"claim_id,omitempty"`
	Amount      int       `json:"amount"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
