package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"
)

const resendEndpoint = "https://api.resend.com/emails"

// ResendClient is the concrete Sender backed by the Resend API.
type ResendClient struct {
	apiKey     string
	fromAddr   string // e.g. "drafts@clearbound.app"
	fromName   string // e.g. "ClearBound"
	endpoint   string
	httpClient *http.Client
}

// NewResendClient returns a Sender that delivers email via Resend.
func NewResendClient(apiKey, fromAddr, fromName string) *ResendClient {
	return &ResendClient{
		apiKey:   apiKey,
		fromAddr: fromAddr,
		fromName: fromName,
		endpoint: resendEndpoint,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// WithEndpoint overrides the Resend URL. Used in tests.
func (c *ResendClient) WithEndpoint(u string) *ResendClient {
	c.endpoint = u
	return c
}

// ─── RESEND API SHAPES ────────────────────────────────────────────────────────

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

type resendResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Name       string `json:"name"`
		Message    string `json:"message"`
		StatusCode int    `json:"statusCode"`
	} `json:"error"`
}

// ─── SENDER IMPLEMENTATION ────────────────────────────────────────────────────

// SendDraft sends the generated draft to the buyer.
func (c *ResendClient) SendDraft(ctx context.Context, p DraftParams) error {
	subject := "Your ClearBound draft is ready"
	if p.Subject != "" {
		subject = fmt.Sprintf("Your ClearBound draft: %s", p.Subject)
	}
	return c.send(ctx, p.To, subject, draftHTML(p), draftText(p))
}

// SendReceipt sends the post-payment receipt email.
func (c *ResendClient) SendReceipt(ctx context.Context, p ReceiptParams) error {
	amount := fmt.Sprintf("$%.2f", float64(p.AmountCents)/100)
	return c.send(ctx, p.To, "Your payment was received", receiptHTML(p.Package, amount), "")
}

// ─── HTTP SEND ────────────────────────────────────────────────────────────────

func (c *ResendClient) send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	from := fmt.Sprintf("%s <%s>", c.fromName, c.fromAddr)

	bodyBytes, err := json.Marshal(resendRequest{
		From:    from,
		To:      []string{to},
		Subject: subject,
		HTML:    htmlBody,
		Text:    textBody,
	})
	if err != nil {
		return fmt.Errorf("email: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("email: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email: http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("email: read response: %w", err)
	}

	var parsed resendResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return fmt.Errorf("email: unmarshal response (status %d): %w", resp.StatusCode, err)
	}

	if parsed.Error != nil {
		return fmt.Errorf("email: Resend error %s: %s", parsed.Error.Name, parsed.Error.Message)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("email: unexpected status %d: %.200s", resp.StatusCode, string(respBytes))
	}

	return nil
}

// ─── RENDERING ────────────────────────────────────────────────────────────────

// paragraphsHTML escapes text and turns blank-line-separated blocks into <p>.
func paragraphsHTML(text string) string {
	var b strings.Builder
	for _, para := range strings.Split(strings.TrimSpace(text), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		escaped := strings.ReplaceAll(html.EscapeString(para), "\n", "<br>")
		fmt.Fprintf(&b, "<p>%s</p>\n", escaped)
	}
	return b.String()
}

func draftHTML(p DraftParams) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px;">Your draft is ready</h2>
`)
	if p.MessageText != "" {
		b.WriteString(`  <h3>Message</h3>` + "\n")
		b.WriteString(paragraphsHTML(p.MessageText))
	}
	if p.EmailText != "" {
		b.WriteString(`  <h3>Email</h3>` + "\n")
		if p.Subject != "" {
			fmt.Fprintf(&b, "<p><strong>Subject:</strong> %s</p>\n", html.EscapeString(p.Subject))
		}
		b.WriteString(paragraphsHTML(p.EmailText))
	}
	if p.Insight != nil {
		fmt.Fprintf(&b, "  <h3>%s</h3>\n", html.EscapeString(p.Insight.Title))
		for _, s := range p.Insight.Sections {
			fmt.Fprintf(&b, "<h4>%s</h4>\n<ul>\n", html.EscapeString(s.Title))
			for _, bullet := range s.Bullets {
				fmt.Fprintf(&b, "<li>%s</li>\n", html.EscapeString(bullet))
			}
			b.WriteString("</ul>\n")
		}
		fmt.Fprintf(&b, `<p style="color: #6b7280; font-size: 14px;">%s</p>`+"\n", html.EscapeString(p.Insight.Disclaimer))
	}
	fmt.Fprintf(&b, `  <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 32px 0;">
  <p style="color: #9ca3af; font-size: 12px;">
    ClearBound · Reference %s · Drafts are structure, not advice
  </p>
</body>
</html>`, html.EscapeString(p.RequestID))
	return b.String()
}

// draftText is the plain-text alternative part.
func draftText(p DraftParams) string {
	var parts []string
	if p.MessageText != "" {
		parts = append(parts, "MESSAGE\n\n"+p.MessageText)
	}
	if p.EmailText != "" {
		block := "EMAIL\n\n"
		if p.Subject != "" {
			block += "Subject: " + p.Subject + "\n\n"
		}
		parts = append(parts, block+p.EmailText)
	}
	if p.Insight != nil {
		var b strings.Builder
		b.WriteString(strings.ToUpper(p.Insight.Title) + "\n")
		for _, s := range p.Insight.Sections {
			b.WriteString("\n" + s.Title + "\n")
			for _, bullet := range s.Bullets {
				b.WriteString("- " + bullet + "\n")
			}
		}
		b.WriteString("\n" + p.Insight.Disclaimer)
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func receiptHTML(pkg, amount string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px;">Payment Confirmed</h2>
  <p>We have received your payment of <strong>%s</strong> for a ClearBound
  %s draft. If you asked for email delivery, the draft will arrive in a
  separate message.</p>
  <p style="color: #6b7280; font-size: 14px;">
    If you have any questions, reply to this email.
  </p>
  <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 32px 0;">
  <p style="color: #9ca3af; font-size: 12px;">
    ClearBound · One-time purchase · No account required
  </p>
</body>
</html>`, amount, html.EscapeString(pkg))
}
