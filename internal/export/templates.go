package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"copilot/api/internal/copilot"
	"copilot/api/internal/pricing"
)

var proposalTemplate = template.Must(template.New("proposal").Funcs(template.FuncMap{
	"lines": func(s string) []string {
		return strings.Split(strings.TrimSpace(s), "\n")
	},
}).Parse(proposalHTML))

// TemplateData holds data for proposal template rendering
type TemplateData struct {
	Company     string
	Contact     string
	Email       string
	Opportunity string
	Sections    []TemplateSection
	Items       []TemplateItem
	Subtotal    string
	Volume      string
	VolumePct   int
	Manual      string
	ManualPct   int
	Total       string
	Approval    *TemplateApproval
	GeneratedAt string
}

type TemplateSection struct {
	Title string
	Body  string
}

type TemplateItem struct {
	Name      string
	Quantity  int
	UnitPrice string
	LineTotal string
}

type TemplateApproval struct {
	Status   string
	Note     string
	Decision string
	Date     string
}

// NewTemplateData flattens a workspace into display strings.
func NewTemplateData(state copilot.State, now time.Time) TemplateData {
	p := state.Proposal
	data := TemplateData{
		Sections: []TemplateSection{
			{Title: "Executive Summary", Body: p.ExecutiveSummary},
			{Title: "Scope of Work", Body: p.ScopeOfWork},
			{Title: "Deliverables", Body: p.Deliverables},
			{Title: "Timeline", Body: p.Timeline},
			{Title: "Terms", Body: p.Terms},
		},
		GeneratedAt: copilot.DisplayTime(now),
	}
	if state.Lead != nil {
		data.Company = state.Lead.Company
		data.Contact = state.Lead.Contact
		data.Email = state.Lead.Email
		data.Opportunity = state.Lead.Opportunity
	}

	for _, item := range p.PricingItems() {
		data.Items = append(data.Items, TemplateItem{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: pricing.FormatUSD(item.UnitPrice),
			LineTotal: pricing.FormatUSD(pricing.LineTotal(item)),
		})
	}
	b := p.Breakdown()
	data.Subtotal = pricing.FormatUSD(b.Subtotal)
	data.VolumePct = b.VolumeDiscountPercent
	data.Volume = pricing.FormatUSD(b.VolumeDiscount.Neg())
	data.ManualPct = b.ManualDiscountPercent
	data.Manual = pricing.FormatUSD(b.ManualDiscount.Neg())
	data.Total = pricing.FormatUSD(b.Total)

	if a := state.Approval; a != nil {
		stamp := &TemplateApproval{Status: string(a.Status), Note: a.Note, Decision: a.DecisionNote}
		if a.DecidedAt != nil {
			stamp.Date = copilot.DisplayTime(*a.DecidedAt)
		}
		data.Approval = stamp
	}
	return data
}

// RenderProposalHTML renders the proposal template with provided data
func RenderProposalHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := proposalTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const proposalHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Opportunity}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.5; max-width: 800px; margin: 2rem auto; color: #1f2933; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; margin-bottom: 0.25rem; }
    h2 { font-size: 1.1em; margin-top: 1.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    table { width: 100%; border-collapse: collapse; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.4rem; border-bottom: 1px solid #ddd; }
    td.num, th.num { text-align: right; }
    tr.total td { font-weight: bold; border-top: 2px solid #333; }
    .stamp { margin-top: 2rem; padding: 1rem; border-left: 3px solid #2f855a; background: #f0fff4; }
  </style>
</head>
<body>
  <h1>{{.Opportunity}}</h1>
  <div class="meta">Prepared for {{.Contact}}, {{.Company}} | {{.Email}} | {{.GeneratedAt}}</div>
  {{range .Sections}}
  <h2>{{.Title}}</h2>
  {{range lines .Body}}<p>{{.}}</p>{{end}}
  {{end}}
  <h2>Pricing</h2>
  <table>
    <tr><th>Item</th><th class="num">Qty</th><th class="num">Unit Price</th><th class="num">Line Total</th></tr>
    {{range .Items}}<tr><td>{{.Name}}</td><td class="num">{{.Quantity}}</td><td class="num">{{.UnitPrice}}</td><td class="num">{{.LineTotal}}</td></tr>
    {{end}}
    <tr><td colspan="3">Subtotal</td><td class="num">{{.Subtotal}}</td></tr>
    {{if .VolumePct}}<tr><td colspan="3">Volume Discount ({{.VolumePct}}%)</td><td class="num">{{.Volume}}</td></tr>{{end}}
    {{if .ManualPct}}<tr><td colspan="3">Approved Discount ({{.ManualPct}}%)</td><td class="num">{{.Manual}}</td></tr>{{end}}
    <tr class="total"><td colspan="3">Total</td><td class="num">{{.Total}}</td></tr>
  </table>
  {{with .Approval}}
  <div class="stamp">
    <strong>{{.Status}}</strong>{{if .Date}} on {{.Date}}{{end}}
    {{if .Note}}<p>Request: {{.Note}}</p>{{end}}
    {{if .Decision}}<p>Manager note: {{.Decision}}</p>{{end}}
  </div>
  {{end}}
</body>
</html>`
