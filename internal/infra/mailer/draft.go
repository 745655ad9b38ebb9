// Package mailer renders dispute draft responses as RFC 822 messages.
package mailer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jordan-wright/email"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
)

// DraftRenderer turns a dispute resolution into an .eml payload.
type DraftRenderer struct {
	from string
}

// NewDraftRenderer creates a renderer sending from the given address.
func NewDraftRenderer(from string) *DraftRenderer {
	return &DraftRenderer{from: from}
}

// RenderDraft builds the message for the draft response. Fallback drafts are
// flagged in a header so reviewers know no model wrote them.
func (r *DraftRenderer) RenderDraft(res *domain.DisputeResolution, to string) ([]byte, error) {
	if res == nil {
		return nil, errors.New("nil resolution")
	}
	if strings.TrimSpace(to) == "" {
		return nil, &domain.ErrValidation{Field: "to", Message: "recipient address is required"}
	}

	e := email.NewEmail()
	e.From = r.from
	e.To = []string{to}
	e.Subject = fmt.Sprintf("Regarding your %s dispute", res.Classification)
	e.Text = []byte(res.DraftResponse.Text)
	e.Headers.Set("X-Dispute-ID", res.ID)
	e.Headers.Set("X-Dispute-Classification", string(res.Classification))
	if res.DraftResponse.Fallback {
		e.Headers.Set("X-Draft-Fallback", "true")
	}

	b, err := e.Bytes()
	if err != nil {
		return nil, fmt.Errorf("render draft: %w", err)
	}
	return b, nil
}
