package model

import "time"

// Member role constants
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

type Member struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Tier      string    `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
}

// MilesBalance summarizes a member's ledger position.
type MilesBalance struct {
	MemberID    int64 `json:"member_id"`
	TotalEarned int   `json:"total_earned"`
	TotalSpent  int   `json:"total_spent"`
	Balance     int   `json:"balance"`
}
