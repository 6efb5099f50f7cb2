package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/claim"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/model"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/websocket"
)

// ClaimHandler serves the member-facing claim endpoints.
type ClaimHandler struct {
	service *claim.Service
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewClaimHandler(service *claim.Service, hub *websocket.Hub, logger *slog.Logger) *ClaimHandler {
	return &ClaimHandler{service: service, hub: hub, logger: logger}
}

func (h *ClaimHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type attachmentRequest struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
}

func (a attachmentRequest) toModel() model.Attachment {
	return model.Attachment{ID: a.ID, URL: a.URL, Filename: a.Filename, SizeBytes: a.SizeBytes}
}

type submitClaimRequest struct {
	Category      model.Category      `json:"category"`
	Details       model.Details       `json:"details"`
	Description   string              `json:"description"`
	Attachments   []attachmentRequest `json:"attachments"`
	ExpectedMiles int                 `json:"expected_miles"`
}

func (h *ClaimHandler) Submit(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(r)
	if !ok {
		writeClaimError(w, claim.ErrUnauthorized)
		return
	}

	var req submitClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	sub := claim.Submission{
		Category:      req.Category,
		Details:       req.Details,
		Description:   req.Description,
		ExpectedMiles: req.ExpectedMiles,
	}
	for _, a := range req.Attachments {
		sub.Attachments = append(sub.Attachments, a.toModel())
	}

	c, err := h.service.Submit(r.Context(), act, sub)
	if err != nil {
		writeClaimError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("submitted", c.ID, string(c.Status), map[string]any{
		"member_id": c.MemberID,
		"category":  string(c.Category),
	}))

	writeJSON(w, http.StatusCreated, c)
}

func (h *ClaimHandler) List(w http.ResponseWriter, r *http.Request) {
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

func (h *ClaimHandler) Get(w http.ResponseWriter, r *http.Request) {
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

type amendClaimRequest struct {
	Details       model.Details `json:"details"`
	Description   string        `json:"description"`
	ExpectedMiles int           `json:"expected_miles"`
}

// Amend lets the submitting member revise a claim that is still pending.
func (h *ClaimHandler) Amend(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(r)
	if !ok {
		writeClaimError(w, claim.ErrUnauthorized)
		return
	}

	var req amendClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	c, err := h.service.Amend(r.Context(), act, r.PathValue("id"), claim.Amendment{
		Details:       req.Details,
		Description:   req.Description,
		ExpectedMiles: req.ExpectedMiles,
	})
	if err != nil {
		writeClaimError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("amended", c.ID, string(c.Status), nil))
	writeJSON(w, http.StatusOK, c)
}

// AddEvidence appends an uploaded attachment reference to a claim.
func (h *ClaimHandler) AddEvidence(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(r)
	if !ok {
		writeClaimError(w, claim.ErrUnauthorized)
		return
	}

	var req attachmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	c, err := h.service.AddEvidence(r.Context(), act, r.PathValue("id"), req.toModel())
	if err != nil {
		writeClaimError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage("evidence_added", c.ID, string(c.Status), nil))
	writeJSON(w, http.StatusOK, c)
}
