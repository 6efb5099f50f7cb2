package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/auth"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/claim"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeClaimError maps a lifecycle error onto an HTTP response. The error
// kind is always included so admin tooling can triage; validation errors also
// carry the specific problem for member-facing forms.
func writeClaimError(w http.ResponseWriter, err error) {
	kind := claim.Kind(err)
	body := map[string]string{"error": kind}

	var status int
	switch {
	case claim.IsValidation(err):
		status = http.StatusBadRequest
		body["message"] = err.Error()
	case kind == "not_found":
		status = http.StatusNotFound
	case kind == "unauthorized":
		status = http.StatusForbidden
	case kind == "invalid_state_transition", kind == "concurrent_modification":
		status = http.StatusConflict
	case kind == "ledger_credit_failed":
		status = http.StatusBadGateway
	case kind == "operation_timed_out":
		status = http.StatusGatewayTimeout
	default:
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, body)
}

// actor converts the request identity into a lifecycle actor.
func actor(r *http.Request) (claim.Actor, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		return claim.Actor{}, false
	}
	return claim.Actor{ID: id.MemberID, Role: id.Role}, true
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}
