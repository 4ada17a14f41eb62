package copilot

import "github.com/shopspring/decimal"

// SampleLead is the mocked CRM opportunity.
var SampleLead = Lead{
	Company:     "Acme Manufacturing Pvt Ltd",
	Contact:     "Riya Sharma",
	Email:       "riya.sharma@acme-mfg.co.in",
	Opportunity: "Factory Floor Automation - Phase 1",
	PainPoints: []string{
		"Manual assembly throughput bottlenecks",
		"High rework rate",
	},
}

// Pricebook unit prices.
var (
	PriceRoboticArm      = decimal.NewFromInt(15000)
	PriceMLQualityModule = decimal.NewFromInt(12000)
	PriceOnsiteInstall   = decimal.NewFromInt(800)
)

const (
	ProposedScope = "Deployment of robotic assembly units and ML modules to supervise production lines. Installation includes hardware setup, software integration, and onsite personnel training."

	EmailAttachmentName = "proposal_factory_automation.pdf"
)

// InitialContent is the proposal text a fresh page starts with.
func InitialContent() Content {
	return Content{
		ExecutiveSummary: "This proposal outlines the strategy for implementing high-efficiency automated systems at Acme Manufacturing. Our solution focuses on eliminating current manual bottlenecks and improving output quality through precision robotics and ML-driven quality control.",
		ScopeOfWork:      "Phase 1 involves the deployment of robotic assembly units and ML modules to supervise production lines. Installation includes hardware setup, software integration, and onsite personnel training.",
		Deliverables:     "- Robotic Assembly Unit (Base Model)\n- ML Quality Supervision Software\n- Training Manuals\n- Support Documentation",
		Timeline:         "6-8 weeks after Purchase Order",
		Terms:            "30% upfront payment, 70% on final delivery and acceptance testing.",
		Pricing:          []LineItem{},
	}
}

// PresetPricing is the table a generated draft starts with.
func PresetPricing() []LineItem {
	return []LineItem{
		{ID: "1", Name: "Robotic Arm", Price: PriceRoboticArm, Quantity: 1},
		{ID: "2", Name: "ML Quality Module", Price: PriceMLQualityModule, Quantity: 1},
		{ID: "3", Name: "Onsite Install (Days)", Price: PriceOnsiteInstall, Quantity: 5},
	}
}
