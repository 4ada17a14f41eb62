package copilot

import (
	"fmt"
	"strings"
)

const (
	msgGreeting         = "Hello! I'm your Sales Copilot. How can I help you today? You can start by ingesting a lead from CRM."
	msgGenerateRequest  = "Generate draft proposal"
	msgGenerating       = "Copilot is analyzing lead data and generating an AI Executive Summary..."
	msgDraftReady       = "I've synthesized an Executive Summary focused on Acme's throughput bottlenecks and rework rates. The pricing table has also been populated with initial requirements."
	msgApprovalSent     = "Approval request sent. I'll notify you when the manager responds."
	msgApprovalPlain    = "Requesting manager approval"
	msgEmailDrafting    = "Drafting a follow-up email from the approved proposal..."
	defaultApprovalNote = "Ready for review."
)

func ingestRequestMessage(lead Lead) string {
	return "Ingest lead from CRM for " + shortCompany(lead.Company)
}

func ingestedMessage(lead Lead) string {
	return fmt.Sprintf("Lead %q ingested successfully. Opportunity: %q. Ready to generate a draft?", lead.Company, lead.Opportunity)
}

func approvalRequestMessage(requestedDiscount *int) string {
	if requestedDiscount == nil {
		return msgApprovalPlain
	}
	return fmt.Sprintf("Requesting approval with %d%% discount", *requestedDiscount)
}

func approvedMessage(discount int, note string) string {
	if discount > 0 {
		return fmt.Sprintf("Approved! A %d%% discount has been applied. Note: %q.", discount, note)
	}
	return fmt.Sprintf("Approved! Note: %q.", note)
}

func rejectedMessage(note string) string {
	return fmt.Sprintf("Rejected: %q. Please adjust and resubmit.", note)
}

func restoredMessage(v Version) string {
	return fmt.Sprintf("Restored to version: %s (%s)", v.Label, DisplayTime(v.Timestamp))
}

func templateAppliedMessage(t Template) string {
	return fmt.Sprintf("Applied template: %s", t.Name)
}

func emailSentMessage(draft EmailDraft) string {
	return fmt.Sprintf("Email sent successfully to %s <%s>.", draft.ToName, draft.To)
}

// shortCompany drops legal suffixes, so "Acme Manufacturing Pvt Ltd" reads as
// "Acme Manufacturing" in the user's own request line.
func shortCompany(company string) string {
	trimmed := strings.TrimSpace(company)
	for _, suffix := range []string{" Pvt Ltd", " Ltd", " Inc.", " Inc", " LLC", " GmbH"} {
		trimmed = strings.TrimSuffix(trimmed, suffix)
	}
	return trimmed
}
