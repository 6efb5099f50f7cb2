package claim

import (
	"fmt"
	"math"
	"strings"

	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/model"
)

// ValidCategory reports whether c is one of the recognized claim kinds.
func ValidCategory(c model.Category) bool {
	switch c {
	case model.CategoryFlight, model.CategoryPartnerPurchase,
		model.CategoryHotelStay, model.CategoryCreditCard, model.CategoryOther:
		return true
	}
	return false
}

// flightType reports whether the category uses flight detail fields.
// Every other recognized category is purchase-type.
func flightType(c model.Category) bool {
	return c == model.CategoryFlight
}

// Submission is the full set of member-supplied fields for a new claim.
type Submission struct {
	MemberID      int64
	Category      model.Category
	Details       model.Details
	Description   string
	Attachments   []model.Attachment
	ExpectedMiles int
}

// Validate checks a submission against the category's requirements. It
// returns the normalized submission (trimmed description, derived expected
// miles) or the first validation error found. Nothing is persisted until
// validation passes in full.
func (s Submission) Validate() (Submission, error) {
	if !ValidCategory(s.Category) {
		return s, fmt.Errorf("category %q: %w", s.Category, ErrUnknownCategory)
	}

	if flightType(s.Category) {
		f := s.Details.Flight
		if f == nil || strings.TrimSpace(f.TicketNumber) == "" {
			return s, fmt.Errorf("ticket_number: %w", ErrMissingDetailField)
		}
		if strings.TrimSpace(f.SeatCode) == "" && strings.TrimSpace(f.FlightNumber) == "" {
			return s, fmt.Errorf("seat_code or flight_number: %w", ErrMissingDetailField)
		}
		if s.ExpectedMiles <= 0 {
			return s, fmt.Errorf("expected_miles: %w", ErrInvalidMilesValue)
		}
	} else {
		p := s.Details.Purchase
		if p == nil || strings.TrimSpace(p.InvoiceNumber) == "" {
			return s, fmt.Errorf("invoice_number: %w", ErrMissingDetailField)
		}
		if p.Amount <= 0 || math.IsInf(p.Amount, 0) || math.IsNaN(p.Amount) {
			return s, fmt.Errorf("amount: %w", ErrInvalidMilesValue)
		}
		// Purchase claims may omit the estimate; derive it from the
		// declared transaction amount.
		if s.ExpectedMiles == 0 {
			s.ExpectedMiles = int(math.Round(p.Amount))
		}
		if s.ExpectedMiles <= 0 {
			return s, fmt.Errorf("expected_miles: %w", ErrInvalidMilesValue)
		}
	}

	s.Description = strings.TrimSpace(s.Description)
	if s.Description == "" {
		return s, ErrMissingDescription
	}

	if len(s.Attachments) == 0 {
		return s, ErrMissingEvidence
	}

	return s, nil
}

// Amendment is the subset of fields a member may change while the claim is
// still pending. Attachments are append-only and handled separately.
type Amendment struct {
	Details       model.Details
	Description   string
	ExpectedMiles int
}

// validateAmendment reuses the submission rules against the claim's fixed
// category. The existing attachment list satisfies the evidence rule.
func validateAmendment(category model.Category, a Amendment) (Amendment, error) {
	sub := Submission{
		Category:      category,
		Details:       a.Details,
		Description:   a.Description,
		Attachments:   []model.Attachment{{}},
		ExpectedMiles: a.ExpectedMiles,
	}
	sub, err := sub.Validate()
	if err != nil {
		return a, err
	}
	a.Description = sub.Description
	a.ExpectedMiles = sub.ExpectedMiles
	return a, nil
}
