// Package claim implements the mileage-claim lifecycle: submission
// validation, the review state machine, and the miles-credit side effect
// applied on approval.
package claim

import (
	"fmt"

	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/model"
)

// transitions maps each status to the set of statuses it may move to.
// pending and processing move between each other; approved and rejected are
// terminal.
var transitions = map[model.ClaimStatus][]model.ClaimStatus{
	model.StatusPending:    {model.StatusProcessing, model.StatusApproved, model.StatusRejected},
	model.StatusProcessing: {model.StatusPending, model.StatusApproved, model.StatusRejected},
	model.StatusApproved:   {},
	model.StatusRejected:   {},
}

// ReviewableStatuses are the statuses from which an admin decision
// (approve/reject) is still possible.
var ReviewableStatuses = []model.ClaimStatus{model.StatusPending, model.StatusProcessing}

// Terminal reports whether s admits no further transitions.
func Terminal(s model.ClaimStatus) bool {
	return s == model.StatusApproved || s == model.StatusRejected
}

// CanTransition reports whether a claim in status from may move to status to.
func CanTransition(from, to model.ClaimStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseStatus converts a raw string into a ClaimStatus.
func ParseStatus(s string) (model.ClaimStatus, error) {
	switch model.ClaimStatus(s) {
	case model.StatusPending, model.StatusProcessing, model.StatusApproved, model.StatusRejected:
		return model.ClaimStatus(s), nil
	}
	return "", fmt.Errorf("unknown claim status %q", s)
}
