package model

import "time"

// ClaimStatus represents where a mileage claim sits in its review lifecycle.
type ClaimStatus string

// Possible values for ClaimStatus
const (
	StatusPending    ClaimStatus = "pending"
	StatusProcessing ClaimStatus = "processing"
	StatusApproved   ClaimStatus = "approved"
	StatusRejected   ClaimStatus = "rejected"
)

// Category is the closed set of claim kinds. The category decides which
// detail fields and evidence a submission must carry.
type Category string

const (
	CategoryFlight          Category = "flight"
	CategoryPartnerPurchase Category = "partner_purchase"
	CategoryHotelStay       Category = "hotel_stay"
	CategoryCreditCard      Category = "credit_card"
	CategoryOther           Category = "other"
)

// FlightDetails describes a flight-type claim: miles missing from a flown
// segment.
type FlightDetails struct {
	TicketNumber string `json:"ticket_number"`
	FlightNumber string `json:"flight_number,omitempty"`
	SeatCode     string `json:"seat_code,omitempty"`
	Route        string `json:"route,omitempty"`
	FlightDate   string `json:"flight_date,omitempty"`
}

// PurchaseDetails describes a purchase-type claim: a partner transaction
// that should have earned miles.
type PurchaseDetails struct {
	InvoiceNumber string  `json:"invoice_number"`
	Amount        float64 `json:"amount"`
	Merchant      string  `json:"merchant,omitempty"`
}

// Details carries exactly one variant, dispatched on the claim category.
type Details struct {
	Flight   *FlightDetails   `json:"flight,omitempty"`
	Purchase *PurchaseDetails `json:"purchase,omitempty"`
}

// Attachment is a reference to an evidence file already held by the object
// store. The claim record never carries file bytes.
type Attachment struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

type Claim struct {
	ID              string       `json:"id"`
	MemberID        int64        `json:"member_id"`
	Category        Category     `json:"category"`
	Details         Details      `json:"details"`
	Description     string       `json:"description"`
	Attachments     []Attachment `json:"attachments"`
	ExpectedMiles   int          `json:"expected_miles"`
	ActualMiles     *int         `json:"actual_miles,omitempty"`
	Status          ClaimStatus  `json:"status"`
	RejectionReason string       `json:"rejection_reason,omitempty"`
	AdminNote       string       `json:"admin_note,omitempty"`
	SubmittedAt     time.Time    `json:"submitted_at"`
	ResolvedAt      *time.Time   `json:"resolved_at,omitempty"`
}

// Claim event action constants
const (
	EventSubmitted   = "submitted"
	EventAmended     = "amended"
	EventEvidence    = "evidence_added"
	EventReviewStart = "review_started"
	EventApproved    = "approved"
	EventRejected    = "rejected"
)

// ClaimEvent is one immutable entry in a claim's audit trail.
type ClaimEvent struct {
	ID        int64     `json:"id"`
	ClaimID   string    `json:"claim_id"`
	Action    string    `json:"action"`
	ActorID   int64     `json:"actor_id"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
