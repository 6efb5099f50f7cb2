// Package push delivers web push notifications about claim resolutions to a
// member's subscribed devices.
package push

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/model"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/store"
)

// ErrExpired is returned when a push subscription is no longer valid (410 Gone).
var ErrExpired = errors.New("push subscription expired")

// Payload is the JSON sent to the push service.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Config holds VAPID configuration.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

// Service handles sending web push notifications.
type Service struct {
	publicKey  string
	privateKey string
	subscriber string
}

// NewService creates a new push service with VAPID keys.
func NewService(cfg Config) *Service {
	if cfg.Subscriber == "" {
		cfg.Subscriber = "mailto:noreply@lotusmiles.example"
	}
	return &Service{
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		subscriber: cfg.Subscriber,
	}
}

// VAPIDPublicKey returns the VAPID public key for client-side subscription.
func (s *Service) VAPIDPublicKey() string {
	return s.publicKey
}

// Send sends a push notification to a subscription.
func (s *Service) Send(sub *model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotification(data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		Subscriber:      s.subscriber,
		TTL:             86400,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		return ErrExpired
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}

	return nil
}

// NotifyClaimResolved pushes the claim outcome to every device the member has
// subscribed. Expired subscriptions are pruned. Failures are logged and never
// propagate; the claim transition has already committed.
func (s *Service) NotifyClaimResolved(ctx context.Context, pushStore *store.PushStore, claim *model.Claim, logger *slog.Logger) {
	subs, err := pushStore.ListByMember(ctx, claim.MemberID)
	if err != nil {
		logger.Error("list push subscriptions", "member_id", claim.MemberID, "error", err)
		return
	}

	payload := Payload{
		Tag: "claim-" + claim.ID,
		URL: "/claims/" + claim.ID,
	}
	switch claim.Status {
	case model.StatusApproved:
		miles := 0
		if claim.ActualMiles != nil {
			miles = *claim.ActualMiles
		}
		payload.Title = "Claim approved"
		payload.Body = fmt.Sprintf("%d miles were credited to your account.", miles)
	case model.StatusRejected:
		payload.Title = "Claim rejected"
		payload.Body = claim.RejectionReason
	default:
		return
	}

	for i := range subs {
		sub := &subs[i]
		err := s.Send(sub, payload)
		if errors.Is(err, ErrExpired) {
			if derr := pushStore.DeleteByEndpoint(ctx, sub.Endpoint); derr != nil {
				logger.Error("prune expired subscription", "error", derr)
			}
			continue
		}
		if err != nil {
			logger.Error("push claim resolution", "member_id", claim.MemberID, "error", err)
		}
	}
}

// GenerateVAPIDKeys generates a new ECDSA P-256 key pair for VAPID.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ECDSA key: %w", err)
	}

	pubBytes := elliptic.Marshal(elliptic.P256(), key.PublicKey.X, key.PublicKey.Y)
	publicKey = base64.RawURLEncoding.EncodeToString(pubBytes)

	// Fixed-width scalar; D.Bytes() drops leading zeros.
	d := make([]byte, 32)
	key.D.FillBytes(d)
	privateKey = base64.RawURLEncoding.EncodeToString(d)

	return publicKey, privateKey, nil
}
