package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/attachment"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/auth"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/model"
)

// AttachmentHandler serves evidence uploads. A nil store means the object
// bucket is not configured and uploads are rejected.
type AttachmentHandler struct {
	store  *attachment.Store
	logger *slog.Logger
}

func NewAttachmentHandler(store *attachment.Store, logger *slog.Logger) *AttachmentHandler {
	return &AttachmentHandler{store: store, logger: logger}
}

const multipartMemoryLimit = 4 << 20

// Upload accepts a multipart form with a single "file" field and stores it
// as claim evidence, returning the attachment reference to put on the claim.
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "evidence storage not configured"})
		return
	}

	memberID := auth.MemberID(r.Context())
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file field is required"})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	att, err := h.store.Upload(r.Context(), memberID, header.Filename, contentType, file, header.Size)
	if err != nil {
		h.logger.Warn("evidence upload rejected", "member_id", memberID, "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, att)
}

type presignRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type presignResponse struct {
	Attachment model.Attachment  `json:"attachment"`
	UploadURL  string            `json:"upload_url"`
	Headers    map[string]string `json:"headers"`
}

// Presign hands the browser a short-lived URL to PUT evidence directly to
// the bucket. The returned attachment reference is attached to the claim
// after the upload completes.
func (h *AttachmentHandler) Presign(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "evidence storage not configured"})
		return
	}

	var req presignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	memberID := auth.MemberID(r.Context())
	att, url, headers, err := h.store.PresignPut(r.Context(), memberID, req.Filename, req.ContentType)
	if err != nil {
		h.logger.Warn("presign rejected", "member_id", memberID, "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, presignResponse{Attachment: att, UploadURL: url, Headers: headers})
}

// Remove deletes an uploaded evidence object the member decided not to put
// on a claim. The object key embeds the uploader's member id, which must
// match the caller; anything else reads as not found.
func (h *AttachmentHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "evidence storage not configured"})
		return
	}

	key := r.PathValue("key")
	memberID := auth.MemberID(r.Context())
	if !attachment.OwnedBy(key, memberID) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "attachment not found"})
		return
	}

	if err := h.store.Delete(r.Context(), key); err != nil {
		h.logger.Error("delete evidence object", "member_id", memberID, "key", key, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "could not delete attachment"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
