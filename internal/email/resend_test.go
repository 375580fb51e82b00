package email_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/useclearbound-netizen/clearbound-v2/internal/email"
)

func TestSendDraft_RendersAndEscapes(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer re_test" {
			t.Errorf("auth header: %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id":"em_1"}`))
	}))
	defer srv.Close()

	c := email.NewResendClient("re_test", "drafts@clearbound.app", "ClearBound").WithEndpoint(srv.URL)
	err := c.SendDraft(context.Background(), email.DraftParams{
		To:          "buyer@example.com",
		RequestID:   "req-1",
		Package:     "bundle",
		MessageText: "First <b>para</b>.\n\nSecond para.",
		Subject:     "Confirming the schedule",
		EmailText:   "Hi,\n\nBody.",
		Insight: &email.InsightBlock{
			Title:      "Strategic Insight",
			Sections:   []email.InsightSection{{Title: "Signals observed", Bullets: []string{"One."}}},
			Disclaimer: "Not advice.",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got["from"] != "ClearBound <drafts@clearbound.app>" {
		t.Errorf("from: %v", got["from"])
	}
	if got["subject"] != "Your ClearBound draft: Confirming the schedule" {
		t.Errorf("subject: %v", got["subject"])
	}
	body, _ := got["html"].(string)
	for _, want := range []string{"<p>First &lt;b&gt;para&lt;/b&gt;.</p>", "<p>Second para.</p>", "<li>One.</li>", "req-1"} {
		if !strings.Contains(body, want) {
			t.Errorf("html missing %q", want)
		}
	}
	if strings.Contains(body, "<b>para</b>") {
		t.Error("draft text must be escaped")
	}
	text, _ := got["text"].(string)
	if !strings.Contains(text, "Subject: Confirming the schedule") || !strings.Contains(text, "- One.") {
		t.Errorf("text part: %q", text)
	}
}

func TestSend_ErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"resend error", http.StatusUnprocessableEntity, `{"error":{"name":"validation_error","message":"bad to"}}`, "validation_error"},
		{"bad status", http.StatusInternalServerError, `{}`, "unexpected status 500"},
		{"not json", http.StatusBadGateway, `<html>`, "unmarshal response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := email.NewResendClient("k", "a@b.c", "n").WithEndpoint(srv.URL).
				SendReceipt(context.Background(), email.ReceiptParams{To: "x@y.z", Package: "message", AmountCents: 199})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}
