package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/model"
)

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendClaimResolved emails the member about the outcome of their mileage
// claim.
func (c *Client) SendClaimResolved(toEmail, memberName string, claim *model.Claim) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	var subject, outcome string
	switch claim.Status {
	case model.StatusApproved:
		miles := 0
		if claim.ActualMiles != nil {
			miles = *claim.ActualMiles
		}
		subject = "Your mileage claim was approved"
		outcome = fmt.Sprintf("Your claim has been approved and %d miles were credited to your account.", miles)
	case model.StatusRejected:
		subject = "Your mileage claim was rejected"
		outcome = fmt.Sprintf("Your claim was rejected: %s", claim.RejectionReason)
	default:
		return fmt.Errorf("claim %s is not resolved", claim.ID)
	}

	textBody := fmt.Sprintf("Hello %s,\n\n%s\n\nClaim reference: %s", memberName, outcome, claim.ID)
	htmlBody := fmt.Sprintf(
		`<p>Hello %s,</p><p>%s</p><p>Claim reference: <code>%s</code></p>`,
		memberName, outcome, claim.ID,
	)

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("email service returned %d", resp.StatusCode)
	}
	return nil
}
