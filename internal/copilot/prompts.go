package copilot

import (
	"fmt"
	"strings"
)

// Fallback texts substituted when generation fails or comes back empty.
const (
	SummaryEmptyFallback  = "Failed to generate AI summary."
	SummaryFailedFallback = "Error generating AI summary. Contoso Dynamics is prepared to transform your factory floor with industry-leading automation, targeting your specific throughput bottlenecks and rework challenges."
	EmailEmptyFallback    = "Failed to draft email."
	EmailFailedFallback   = "Email draft failed."
)

// SummaryPrompt asks for the executive summary of a proposal for lead.
func SummaryPrompt(lead Lead) string {
	var b strings.Builder
	b.WriteString("You are an expert Sales Engineer. Generate a high-impact Executive Summary for a professional sales proposal.\n\n")
	b.WriteString("CLIENT DATA:\n")
	fmt.Fprintf(&b, "Lead: %s\n", lead.Company)
	fmt.Fprintf(&b, "Contact: %s\n", lead.Contact)
	fmt.Fprintf(&b, "Opportunity: %s\n", lead.Opportunity)
	fmt.Fprintf(&b, "Pain Points: %s\n\n", strings.Join(lead.PainPoints, ", "))
	b.WriteString("PROPOSED SCOPE:\n")
	b.WriteString(ProposedScope)
	b.WriteString("\n\nINSTRUCTIONS:\n")
	fmt.Fprintf(&b, "1. Focus heavily on how the %q directly solves %s.\n", lead.Opportunity, quotedList(lead.PainPoints))
	b.WriteString("2. Maintain a professional, persuasive, and visionary tone.\n")
	b.WriteString("3. The response should ONLY contain the Executive Summary text, about 2-3 paragraphs.\n")
	b.WriteString("4. Do not include section headers like \"Executive Summary\".\n")
	return b.String()
}

// EmailPrompt asks for a follow-up email to the lead's contact.
func EmailPrompt(lead Lead, summary string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Draft a professional follow-up email to %s from %s regarding the proposal for %s.\n", lead.Contact, lead.Company, lead.Opportunity)
	fmt.Fprintf(&b, "Context: %s\n", summary)
	b.WriteString("Make it warm, professional, and clear.\n")
	return b.String()
}

func quotedList(items []string) string {
	quoted := make([]string, 0, len(items))
	for _, item := range items {
		quoted = append(quoted, fmt.Sprintf("%q", item))
	}
	return strings.Join(quoted, " and ")
}
