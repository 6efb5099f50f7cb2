package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/claim"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/email"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/model"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/push"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/store"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/websocket"
)

// AdminClaimHandler serves the review endpoints. On terminal resolutions it
// fans the outcome out to the member's devices and inbox; those deliveries
// are best effort and never affect the committed transition.
type AdminClaimHandler struct {
	service     *claim.Service
	memberStore *store.MemberStore
	pushStore   *store.PushStore
	pushService *push.Service
	emailClient *email.Client
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewAdminClaimHandler(service *claim.Service, ms *store.MemberStore, ps *store.PushStore, pushSvc *push.Service, ec *email.Client, hub *websocket.Hub, logger *slog.Logger) *AdminClaimHandler {
	return &AdminClaimHandler{
		service:     service,
		memberStore: ms,
		pushStore:   ps,
		pushService: pushSvc,
		emailClient: ec,
		hub:         hub,
		logger:      logger,
	}
}

func (h *AdminClaimHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

func (h *AdminClaimHandler) List(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(r)
	if !ok {
		writeClaimError(w, claim.ErrUnauthorized)
		return
	}

	f := claim.Filter{Query: r.URL.Query().Get("q")}
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := claim.ParseStatus(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		f.Status = status
	}

	claims, err := h.service.List(r.Context(), act, f)
	if err != nil {
		h.logger.Error("list claims", "error", err)
		writeClaimError(w, err)
		return
	}
	if claims == nil {
		claims = []model.Claim{}
	}
	writeJSON(w, http.StatusOK, claims)
}

func (h *AdminClaimHandler) Get(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(r)
	if !ok {
		writeClaimError(w, claim.ErrUnauthorized)
		return
	}

	c, err := h.service.Get(r.Context(), act, r.PathValue("id"))
	if err != nil {
		writeClaimError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *AdminClaimHandler) StartReview(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(r)
	if !ok {
		writeClaimError(w, claim.ErrUnauthorized)
		return
	}

	c, err := h.service.StartReview(r.Context(), act, r.PathValue("id"))
	if err != nil {
		writeClaimError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("review_started", c.ID, string(c.Status), nil))
	writeJSON(w, http.StatusOK, c)
}

type approveRequest struct {
	ActualMiles int    `json:"actual_miles"`
	AdminNote   string `json:"admin_note"`
}

func (h *AdminClaimHandler) Approve(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(r)
	if !ok {
		writeClaimError(w, claim.ErrUnauthorized)
		return
	}

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	c, err := h.service.Approve(r.Context(), act, r.PathValue("id"), req.ActualMiles, req.AdminNote)
	if err != nil {
		writeClaimError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("approved", c.ID, string(c.Status), map[string]any{
		"actual_miles": req.ActualMiles,
	}))
	go h.notifyResolved(c)

	writeJSON(w, http.StatusOK, c)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *AdminClaimHandler) Reject(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(r)
	if !ok {
		writeClaimError(w, claim.ErrUnauthorized)
		return
	}

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	c, err := h.service.Reject(r.Context(), act, r.PathValue("id"), req.Reason)
	if err != nil {
		writeClaimError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("rejected", c.ID, string(c.Status), nil))
	go h.notifyResolved(c)

	writeJSON(w, http.StatusOK, c)
}

func (h *AdminClaimHandler) Events(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(r)
	if !ok {
		writeClaimError(w, claim.ErrUnauthorized)
		return
	}

	events, err := h.service.Events(r.Context(), act, r.PathValue("id"))
	if err != nil {
		writeClaimError(w, err)
		return
	}
	if events == nil {
		events = []model.ClaimEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// notifyResolved delivers the outcome to the member. Runs detached from the
// request; uses its own timeout.
func (h *AdminClaimHandler) notifyResolved(c *model.Claim) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if h.pushService != nil && h.pushStore != nil {
		h.pushService.NotifyClaimResolved(ctx, h.pushStore, c, h.logger)
	}

	if h.emailClient != nil && h.emailClient.Configured() {
		member, err := h.memberStore.GetByID(ctx, c.MemberID)
		if err != nil || member == nil {
			h.logger.Error("lookup member for resolution email", "member_id", c.MemberID, "error", err)
			return
		}
		if err := h.emailClient.SendClaimResolved(member.Email, member.Name, c); err != nil {
			h.logger.Error("send resolution email", "claim_id", c.ID, "error", err)
		}
	}
}
