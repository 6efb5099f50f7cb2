package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/attachment"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/claim"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/config"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/email"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/handler"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/middleware"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/push"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/store"
	ws "github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/websocket"
)

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	authH       *handler.AuthHandler
	claimH      *handler.ClaimHandler
	adminClaimH *handler.AdminClaimHandler
	memberH     *handler.MemberHandler
	attachmentH *handler.AttachmentHandler
	pushH       *handler.PushHandler
	tokenSecret []byte
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, cfg config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	memberStore := store.NewMemberStore(db)
	claimStore := store.NewClaimStore(db)
	ledgerStore := store.NewLedgerStore(db)
	pushStore := store.NewPushStore(db)

	claimSvc := claim.NewService(claimStore, ledgerStore, logger.With("component", "claims"))

	attachmentStore := attachment.New(attachment.Config{
		Endpoint:   cfg.Evidence.Endpoint,
		Region:     cfg.Evidence.Region,
		Bucket:     cfg.Evidence.Bucket,
		AccessKey:  cfg.Evidence.AccessKey,
		SecretKey:  cfg.Evidence.SecretKey,
		PresignTTL: cfg.Evidence.PresignTTL,
		MaxBytes:   cfg.Evidence.MaxBytes,
	})

	var pushSvc *push.Service
	var pushH *handler.PushHandler
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(push.Config{
			VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
			Subscriber:      cfg.Push.Subscriber,
		})
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler"))
	}

	var emailClient *email.Client
	if cfg.Email.ServerToken != "" {
		emailClient = email.NewClient(cfg.Email.ServerToken, cfg.Email.FromEmail, cfg.Email.BaseURL)
	}

	secret := []byte(cfg.TokenSecret)

	return &Server{
		db:          db,
		hub:         hub,
		authH:       handler.NewAuthHandler(memberStore, secret, cfg.TokenTTL, logger.With("component", "auth")),
		claimH:      handler.NewClaimHandler(claimSvc, hub, logger.With("component", "claim_handler")),
		adminClaimH: handler.NewAdminClaimHandler(claimSvc, memberStore, pushStore, pushSvc, emailClient, hub, logger.With("component", "admin_handler")),
		memberH:     handler.NewMemberHandler(memberStore, ledgerStore, logger.With("component", "member_handler")),
		attachmentH: handler.NewAttachmentHandler(attachmentStore, logger.With("component", "attachment_handler")),
		pushH:       pushH,
		tokenSecret: secret,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter so main can run periodic cleanup.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /healthz", s.healthHandler)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))

	// Member routes
	memberMux := http.NewServeMux()
	s.registerMemberRoutes(memberMux)

	// Admin routes
	adminMux := http.NewServeMux()
	s.registerAdminRoutes(adminMux)

	authMiddleware := middleware.RequireAuth(s.tokenSecret)
	outerMux.Handle("/api/", authMiddleware(memberMux))
	outerMux.Handle("/api/admin/", authMiddleware(middleware.RequireAdmin(adminMux)))
	outerMux.Handle("GET /ws/admin", authMiddleware(middleware.RequireAdmin(ws.HandleWebSocket(s.hub))))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerMemberRoutes(mux *http.ServeMux) {
	// Profile and ledger
	mux.HandleFunc("GET /api/me", s.memberH.Me)
	mux.HandleFunc("GET /api/me/transactions", s.memberH.Transactions)

	// Claim routes
	mux.HandleFunc("POST /api/claims", s.claimH.Submit)
	mux.HandleFunc("GET /api/claims", s.claimH.List)
	mux.HandleFunc("GET /api/claims/{id}", s.claimH.Get)
	mux.HandleFunc("PUT /api/claims/{id}", s.claimH.Amend)
	mux.HandleFunc("POST /api/claims/{id}/attachments", s.claimH.AddEvidence)

	// Evidence uploads
	mux.HandleFunc("POST /api/attachments", s.attachmentH.Upload)
	mux.HandleFunc("POST /api/attachments/presign", s.attachmentH.Presign)
	mux.HandleFunc("DELETE /api/attachments/{key...}", s.attachmentH.Remove)

	// Push notification routes
	if s.pushH != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	}
}

func (s *Server) registerAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/admin/claims", s.adminClaimH.List)
	mux.HandleFunc("GET /api/admin/claims/{id}", s.adminClaimH.Get)
	mux.HandleFunc("POST /api/admin/claims/{id}/review", s.adminClaimH.StartReview)
	mux.HandleFunc("POST /api/admin/claims/{id}/approve", s.adminClaimH.Approve)
	mux.HandleFunc("POST /api/admin/claims/{id}/reject", s.adminClaimH.Reject)
	mux.HandleFunc("GET /api/admin/claims/{id}/events", s.adminClaimH.Events)
}
