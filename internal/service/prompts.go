package service

import (
	"fmt"
	"strings"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/finance"
)

// Fallback texts used when the gateway cannot answer.
const (
	FallbackNextAction    = "Please review the case details and consult with a supervisor."
	FallbackDraftResponse = "We apologize for the inconvenience. A supervisor will contact you shortly to resolve this matter."
)

// Token budgets per task.
const (
	classifyMaxTokens = 10
	actionMaxTokens   = 500
	draftMaxTokens    = 600
	explainMaxTokens  = 600
)

func classifyPrompt(req *domain.DisputeRequest) string {
	return fmt.Sprintf(`You are a customer service AI assistant. Analyze the following dispute information and classify it into one of these categories: fraud, billing, or service.

Transaction History:
%s

Customer Interactions:
%s

Based on this information, classify the dispute type. Respond with only one word: fraud, billing, or service.

Classification:`, req.TransactionHistory, req.CustomerInteractions)
}

func actionPrompt(kind domain.DisputeType, req *domain.DisputeRequest, policies []domain.Policy, evidence string) string {
	var pc strings.Builder
	for i, p := range policies {
		if i > 0 {
			pc.WriteString("\n\n")
		}
		fmt.Fprintf(&pc, "Policy: %s\nContent: %s", p.Title, p.Text)
	}
	var ev string
	if evidence != "" {
		ev = "\n\nNetwork Evidence:\n" + evidence
	}
	return fmt.Sprintf(`You are a customer service supervisor providing guidance to an agent handling a %s dispute.

Relevant Company Policies:
%s

Case Details:
Transaction History: %s
Customer Interactions: %s%s

Based on the policies and case details, provide clear, actionable next steps for the customer service agent. Be specific and practical.

Next Action Steps:`, kind, pc.String(), req.TransactionHistory, req.CustomerInteractions, ev)
}

func draftPrompt(kind domain.DisputeType, nextAction, customerName string) string {
	return fmt.Sprintf(`You are a professional customer service representative. Write a courteous and helpful response to a customer about their %s dispute.

Next Action Plan:
%s

Write a professional email response to %s that:
1. Acknowledges their concern
2. Explains what steps will be taken
3. Sets appropriate expectations
4. Maintains a helpful and empathetic tone

Email Response:`, kind, nextAction, customerName)
}

func explainPrompt(rec *domain.StatementRecord, buckets []domain.CategoryBucket) string {
	var b strings.Builder
	b.WriteString("You are a helpful personal finance assistant. Explain this monthly statement in simple, plain English.\n")
	b.WriteString("Focus on what the customer needs to know and any important insights.\n\nStatement Details:\n")
	for _, f := range []struct {
		label string
		value domain.StatementField
	}{
		{"Previous Balance", domain.FieldPreviousBalance},
		{"New Charges", domain.FieldNewCharges},
		{"Payments", domain.FieldPayments},
		{"Current Balance", domain.FieldCurrentBalance},
		{"Minimum Payment", domain.FieldMinimumPayment},
		{"Interest Charged", domain.FieldInterestCharged},
		{"Available Credit", domain.FieldAvailableCredit},
	} {
		v := rec.Amount(f.value)
		if v.Valid {
			fmt.Fprintf(&b, "- %s: %s\n", f.label, finance.FormatUSD(v.Decimal))
		} else {
			fmt.Fprintf(&b, "- %s: Not specified\n", f.label)
		}
	}
	if rec.PaymentDueDate != nil {
		fmt.Fprintf(&b, "- Due Date: %s\n", rec.PaymentDueDate.Format("01/02/2006"))
	} else {
		b.WriteString("- Due Date: Not specified\n")
	}
	if len(buckets) > 0 {
		b.WriteString("- Spending Categories:")
		for i, bk := range buckets {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, " %s %s", bk.Category, finance.FormatUSD(bk.Spent))
		}
		b.WriteByte('\n')
	}
	b.WriteString("\nProvide a clear, conversational explanation of what happened this month and what it means for the customer.\n\nStatement Explanation:")
	return b.String()
}

// evidenceSummary renders network evidence for the action prompt.
func evidenceSummary(ev *domain.NetworkEvidence) string {
	if ev == nil || ev.Impact == nil {
		return ""
	}
	im := ev.Impact
	if !im.OutageDetected {
		return "No BGP outage was found in the supplied device logs."
	}
	s := fmt.Sprintf("%d incident(s), %s minutes of downtime, %d peer(s) and %d prefix(es) affected. Root cause: %s. Impact level: %s.",
		im.IncidentCount, im.DowntimeMinutes.StringFixed(2), im.AffectedPeers, im.AffectedPrefixes, im.RootCause, im.Level)
	if im.SLA != nil {
		s += fmt.Sprintf(" Availability %s%% against a %s%% target; service credit %s.",
			im.SLA.Availability.String(), im.SLA.Target.String(), finance.FormatUSD(im.SLA.Credit))
	}
	return s
}
