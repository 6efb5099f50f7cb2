package handler

import (
	"log/slog"
	"net/http"

	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/auth"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/model"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/store"
)

// MemberHandler serves the member profile and miles ledger views.
type MemberHandler struct {
	members *store.MemberStore
	ledger  *store.LedgerStore
	logger  *slog.Logger
}

func NewMemberHandler(members *store.MemberStore, ledger *store.LedgerStore, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{members: members, ledger: ledger, logger: logger}
}

type profileResponse struct {
	Member  *model.Member       `json:"member"`
	Balance *model.MilesBalance `json:"balance"`
}

// Me returns the authenticated member's profile along with their miles balance.
func (h *MemberHandler) Me(w http.ResponseWriter, r *http.Request) {
	memberID := auth.MemberID(r.Context())

	member, err := h.members.GetByID(r.Context(), memberID)
	if err != nil {
		h.logger.Error("failed to load member", "member_id", memberID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if member == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "member not found"})
		return
	}

	balance, err := h.ledger.Balance(r.Context(), memberID)
	if err != nil {
		h.logger.Error("failed to load balance", "member_id", memberID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{Member: member, Balance: balance})
}

// Transactions returns the member's miles ledger, newest first.
func (h *MemberHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	memberID := auth.MemberID(r.Context())

	txns, err := h.ledger.Transactions(r.Context(), memberID)
	if err != nil {
		h.logger.Error("failed to load transactions", "member_id", memberID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if txns == nil {
		txns = []model.MilesTransaction{}
	}

	writeJSON(w, http.StatusOK, txns)
}
