// Package copilot holds the proposal workspace state and the transitions that
// move it forward. Transitions are pure: Apply returns a new State and leaves
// its input untouched, so the controller can run them under a lock and the
// tests can run them without one.
package copilot

import (
	"time"

	"copilot/api/internal/pricing"

	"github.com/shopspring/decimal"
)

type Lead struct {
	Company     string   `json:"company"`
	Contact     string   `json:"contact"`
	Email       string   `json:"email"`
	Opportunity string   `json:"opportunity"`
	PainPoints  []string `json:"painPoints"`
}

// Prices go over the wire as JSON numbers, as browser clients read them.
// Quoted values still decode.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type LineItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Content is the editable proposal document. Discount is the manager-approved
// percentage and only changes through an approval.
type Content struct {
	ExecutiveSummary string     `json:"executiveSummary"`
	ScopeOfWork      string     `json:"scopeOfWork"`
	Deliverables     string     `json:"deliverables"`
	Timeline         string     `json:"timeline"`
	Terms            string     `json:"terms"`
	Pricing          []LineItem `json:"pricing"`
	Discount         int        `json:"discount"`
}

type Version struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Label     string    `json:"label"`
	Proposal  Content   `json:"proposal"`
}

// Template is a pricing-independent bundle of the proposal text sections.
type Template struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	ExecutiveSummary string `json:"executiveSummary"`
	ScopeOfWork      string `json:"scopeOfWork"`
	Deliverables     string `json:"deliverables"`
	Timeline         string `json:"timeline"`
	Terms            string `json:"terms"`
}

type ApprovalStatus string

const (
	StatusDraft    ApprovalStatus = "Draft"
	StatusPending  ApprovalStatus = "Pending Approval"
	StatusApproved ApprovalStatus = "Approved"
	StatusRejected ApprovalStatus = "Rejected"
)

type ApprovalRequest struct {
	ID                string         `json:"id"`
	Requester         string         `json:"requester"`
	Note              string         `json:"note"`
	Status            ApprovalStatus `json:"status"`
	Timestamp         time.Time      `json:"timestamp"`
	RequestedDiscount *int           `json:"requestedDiscount,omitempty"`
	DecisionNote      string         `json:"decisionNote,omitempty"`
	DecidedAt         *time.Time     `json:"decidedAt,omitempty"`
}

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// EmailDraft is the follow-up composer. Pending is true while the body is
// still being generated.
type EmailDraft struct {
	ToName     string `json:"toName"`
	To         string `json:"to"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	Attachment string `json:"attachment"`
	Pending    bool   `json:"pending"`
}

// State is everything one copilot page holds for its lifetime.
type State struct {
	ID        string           `json:"id"`
	// Revision counts saved transitions; stores use it to reject stale writes.
	Revision  int64            `json:"revision"`
	CreatedAt time.Time        `json:"createdAt"`
	Lead      *Lead            `json:"lead,omitempty"`
	Proposal  Content          `json:"proposal"`
	Baseline  Content          `json:"baseline"`
	Versions  []Version        `json:"versions"`
	Templates []Template       `json:"templates"`
	Approval  *ApprovalRequest `json:"approval,omitempty"`
	Messages  []Message        `json:"messages"`
	Email     *EmailDraft      `json:"email,omitempty"`
}

// ApprovalStatus is Draft until a request exists.
func (s State) ApprovalStatus() ApprovalStatus {
	if s.Approval == nil {
		return StatusDraft
	}
	return s.Approval.Status
}

// CanFinalize reports whether export and the follow-up email are unlocked.
func (s State) CanFinalize() bool {
	return s.Lead != nil && s.ApprovalStatus() == StatusApproved
}

// Dirty reports whether the live proposal has changed since the last save point.
func (s State) Dirty() bool {
	return !s.Proposal.Equal(s.Baseline)
}

// Pricing returns the derived totals for the live proposal.
func (s State) Pricing() pricing.Breakdown {
	return s.Proposal.Breakdown()
}

func (c Content) Breakdown() pricing.Breakdown {
	return pricing.Compute(c.PricingItems(), pricing.DefaultVolumeRule, c.Discount)
}

func (c Content) PricingItems() []pricing.Item {
	items := make([]pricing.Item, 0, len(c.Pricing))
	for _, li := range c.Pricing {
		items = append(items, pricing.Item{
			ID:        li.ID,
			Name:      li.Name,
			UnitPrice: li.Price,
			Quantity:  li.Quantity,
		})
	}
	return items
}

// Clone returns a copy that shares no mutable memory with c.
func (c Content) Clone() Content {
	out := c
	if c.Pricing != nil {
		out.Pricing = make([]LineItem, len(c.Pricing))
		copy(out.Pricing, c.Pricing)
	}
	return out
}

func (c Content) Equal(other Content) bool {
	if c.ExecutiveSummary != other.ExecutiveSummary ||
		c.ScopeOfWork != other.ScopeOfWork ||
		c.Deliverables != other.Deliverables ||
		c.Timeline != other.Timeline ||
		c.Terms != other.Terms ||
		c.Discount != other.Discount ||
		len(c.Pricing) != len(other.Pricing) {
		return false
	}
	for i := range c.Pricing {
		a, b := c.Pricing[i], other.Pricing[i]
		if a.ID != b.ID || a.Name != b.Name || a.Quantity != b.Quantity || !a.Price.Equal(b.Price) {
			return false
		}
	}
	return true
}

func (l Lead) clone() Lead {
	out := l
	out.PainPoints = append([]string(nil), l.PainPoints...)
	return out
}

func (a ApprovalRequest) clone() ApprovalRequest {
	out := a
	if a.RequestedDiscount != nil {
		v := *a.RequestedDiscount
		out.RequestedDiscount = &v
	}
	if a.DecidedAt != nil {
		v := *a.DecidedAt
		out.DecidedAt = &v
	}
	return out
}

// Clone deep-copies the state.
func (s State) Clone() State {
	out := s
	if s.Lead != nil {
		lead := s.Lead.clone()
		out.Lead = &lead
	}
	out.Proposal = s.Proposal.Clone()
	out.Baseline = s.Baseline.Clone()
	if s.Versions != nil {
		out.Versions = make([]Version, len(s.Versions))
		for i, v := range s.Versions {
			v.Proposal = v.Proposal.Clone()
			out.Versions[i] = v
		}
	}
	if s.Templates != nil {
		out.Templates = append([]Template(nil), s.Templates...)
	}
	if s.Approval != nil {
		approval := s.Approval.clone()
		out.Approval = &approval
	}
	if s.Messages != nil {
		out.Messages = append([]Message(nil), s.Messages...)
	}
	if s.Email != nil {
		email := *s.Email
		out.Email = &email
	}
	return out
}

// FindVersion returns the stored snapshot with the given id.
func (s State) FindVersion(id string) (Version, bool) {
	for _, v := range s.Versions {
		if v.ID == id {
			return v, true
		}
	}
	return Version{}, false
}

// DisplayTime formats timestamps the way the transcript shows them.
func DisplayTime(t time.Time) string {
	return t.Format("1/2/2006, 3:04:05 PM")
}
