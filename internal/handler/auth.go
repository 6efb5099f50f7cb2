package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/auth"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/model"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/store"
)

type AuthHandler struct {
	memberStore *store.MemberStore
	tokenSecret []byte
	tokenTTL    time.Duration
	logger      *slog.Logger
}

func NewAuthHandler(ms *store.MemberStore, tokenSecret []byte, tokenTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{memberStore: ms, tokenSecret: tokenSecret, tokenTTL: tokenTTL, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type tokenResponse struct {
	Token  string        `json:"token"`
	Member *model.Member `json:"member"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "valid email is required"})
		return
	}
	if len(req.Password) < 8 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	existing, err := h.memberStore.GetByEmail(r.Context(), req.Email)
	if err != nil {
		h.logger.Error("lookup member", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registration failed"})
		return
	}
	if existing != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
		return
	}

	member, err := h.memberStore.Create(r.Context(), req.Email, req.Password, req.Name, model.RoleMember)
	if err != nil {
		h.logger.Error("create member", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registration failed"})
		return
	}

	token, err := auth.IssueToken(h.tokenSecret, member.ID, member.Role, h.tokenTTL)
	if err != nil {
		h.logger.Error("issue token", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registration failed"})
		return
	}

	h.logger.Info("member registered", "member_id", member.ID)
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token, Member: member})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	member, err := h.memberStore.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Error("authenticate member", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "login failed"})
		return
	}
	if member == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
		return
	}

	token, err := auth.IssueToken(h.tokenSecret, member.ID, member.Role, h.tokenTTL)
	if err != nil {
		h.logger.Error("issue token", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "login failed"})
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token, Member: member})
}
