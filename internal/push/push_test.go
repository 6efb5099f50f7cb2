package push

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/database"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/model"
	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/store"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	// Public key is a base64url-encoded uncompressed P-256 point.
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	// Private key is a base64url-encoded 32-byte scalar.
	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

// subscriptionKeys mints the browser-side half of a push subscription so the
// payload encryption in Send has a real point to work against.
func subscriptionKeys(t *testing.T) (p256dh, auth string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate subscription key: %v", err)
	}
	point := elliptic.Marshal(elliptic.P256(), key.PublicKey.X, key.PublicKey.Y)
	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		t.Fatalf("generate auth secret: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(point), base64.RawURLEncoding.EncodeToString(secret)
}

func setupPushMember(t *testing.T) (*store.PushStore, *model.Member) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m, err := store.NewMemberStore(db).Create(context.Background(),
		"linh@example.com", "secret-password", "Linh Tran", model.RoleMember)
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	return store.NewPushStore(db), m
}

func testService(t *testing.T) *Service {
	t.Helper()
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}
	return NewService(Config{VAPIDPublicKey: pub, VAPIDPrivateKey: priv})
}

func TestNotifyClaimResolvedDeliversToEachDevice(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("push method = %s, want POST", r.Method)
		}
		if r.Header.Get("TTL") == "" {
			t.Error("push request missing TTL header")
		}
		hits.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	ps, m := setupPushMember(t)
	p256dh, auth := subscriptionKeys(t)
	for _, ep := range []string{ts.URL + "/dev1", ts.URL + "/dev2"} {
		if _, err := ps.Subscribe(context.Background(), m.ID, ep, p256dh, auth, ""); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}

	miles := 1200
	testService(t).NotifyClaimResolved(context.Background(), ps, &model.Claim{
		ID:          "clm-approved",
		MemberID:    m.ID,
		Status:      model.StatusApproved,
		ActualMiles: &miles,
	}, slog.Default())

	if got := hits.Load(); got != 2 {
		t.Errorf("push deliveries = %d, want 2", got)
	}
}

func TestNotifyClaimResolvedPrunesExpired(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer ts.Close()

	ps, m := setupPushMember(t)
	p256dh, auth := subscriptionKeys(t)
	if _, err := ps.Subscribe(context.Background(), m.ID, ts.URL+"/stale", p256dh, auth, ""); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	testService(t).NotifyClaimResolved(context.Background(), ps, &model.Claim{
		ID:              "clm-rejected",
		MemberID:        m.ID,
		Status:          model.StatusRejected,
		RejectionReason: "duplicate claim",
	}, slog.Default())

	subs, err := ps.ListByMember(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("subscriptions after 410 = %d, want 0", len(subs))
	}
}

func TestNotifyClaimResolvedIgnoresUnresolved(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected push for a pending claim")
	}))
	defer ts.Close()

	ps, m := setupPushMember(t)
	p256dh, auth := subscriptionKeys(t)
	if _, err := ps.Subscribe(context.Background(), m.ID, ts.URL+"/dev", p256dh, auth, ""); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	testService(t).NotifyClaimResolved(context.Background(), ps, &model.Claim{
		ID:       "clm-pending",
		MemberID: m.ID,
		Status:   model.StatusPending,
	}, slog.Default())
}
