package copilot

import (
	"fmt"
	"strings"
	"time"

	"copilot/api/internal/pricing"
	"copilot/api/internal/rbac"
)

// DefaultMaxRequestedDiscount caps the discount a rep may ask for.
const DefaultMaxRequestedDiscount = 15

// Version labels.
const (
	LabelDraftGenerated = "AI Draft Generated"
	LabelApproved       = "Approved Version"
	LabelManualRevision = "Manual Revision"
)

// Env supplies the impure inputs a transition needs.
type Env struct {
	Now                  time.Time
	NewID                func(kind string) string
	MaxRequestedDiscount int
}

func (e Env) id(kind string) string {
	if e.NewID == nil {
		return fmt.Sprintf("%s_%d", kind, e.Now.UnixNano())
	}
	return e.NewID(kind)
}

func (e Env) maxDiscount() int {
	if e.MaxRequestedDiscount <= 0 {
		return DefaultMaxRequestedDiscount
	}
	return e.MaxRequestedDiscount
}

// Action is one state transition.
type Action interface {
	apply(s *State, env Env) error
}

// Apply runs action against a copy of s. On error the original state is
// returned unchanged.
func Apply(s State, action Action, env Env) (State, error) {
	next := s.Clone()
	if err := action.apply(&next, env); err != nil {
		return s, err
	}
	return next, nil
}

// NewState opens a workspace with the greeting and the starting proposal text.
func NewState(id string, now time.Time) State {
	initial := InitialContent()
	s := State{
		ID:        id,
		CreatedAt: now,
		Proposal:  initial,
		Baseline:  initial.Clone(),
		Versions:  []Version{},
		Templates: []Template{},
		Messages:  []Message{},
	}
	s.say(RoleAssistant, msgGreeting, now)
	return s
}

func (s *State) say(role MessageRole, content string, now time.Time) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content, Timestamp: now})
}

// snapshot prepends a deep copy of the live proposal and makes it the save point.
func (s *State) snapshot(label string, env Env) Version {
	v := Version{
		ID:        env.id("ver"),
		Timestamp: env.Now,
		Label:     label,
		Proposal:  s.Proposal.Clone(),
	}
	s.Versions = append([]Version{v}, s.Versions...)
	s.Baseline = s.Proposal.Clone()
	return v
}

func (s *State) requireLead() error {
	if s.Lead == nil {
		return ErrNoLead
	}
	return nil
}

type IngestLead struct {
	Lead Lead
}

func (a IngestLead) apply(s *State, env Env) error {
	if s.Lead != nil {
		return ErrLeadIngested
	}
	lead := a.Lead.clone()
	s.say(RoleUser, ingestRequestMessage(lead), env.Now)
	s.Lead = &lead
	s.say(RoleAssistant, ingestedMessage(lead), env.Now)
	return nil
}

// BeginDraft records the request for a generated draft. The summary itself
// arrives later through CompleteDraft.
type BeginDraft struct{}

func (BeginDraft) apply(s *State, env Env) error {
	if err := s.requireLead(); err != nil {
		return err
	}
	s.say(RoleUser, msgGenerateRequest, env.Now)
	s.say(RoleSystem, msgGenerating, env.Now)
	return nil
}

// CompleteDraft replaces the proposal with a fresh draft around Summary. It
// overwrites whatever the live proposal holds at that moment.
type CompleteDraft struct {
	Summary string
}

func (a CompleteDraft) apply(s *State, env Env) error {
	if err := s.requireLead(); err != nil {
		return err
	}
	draft := InitialContent()
	draft.ExecutiveSummary = a.Summary
	draft.Pricing = PresetPricing()
	draft.Discount = 0
	s.Proposal = draft
	s.snapshot(LabelDraftGenerated, env)
	s.say(RoleAssistant, msgDraftReady, env.Now)
	return nil
}

// Proposal text fields addressable by EditField.
const (
	FieldExecutiveSummary = "executiveSummary"
	FieldScopeOfWork      = "scopeOfWork"
	FieldDeliverables     = "deliverables"
	FieldTimeline         = "timeline"
	FieldTerms            = "terms"
)

type EditField struct {
	Field string
	Value string
}

func (a EditField) apply(s *State, _ Env) error {
	if err := s.requireLead(); err != nil {
		return err
	}
	switch a.Field {
	case FieldExecutiveSummary:
		s.Proposal.ExecutiveSummary = a.Value
	case FieldScopeOfWork:
		s.Proposal.ScopeOfWork = a.Value
	case FieldDeliverables:
		s.Proposal.Deliverables = a.Value
	case FieldTimeline:
		s.Proposal.Timeline = a.Value
	case FieldTerms:
		s.Proposal.Terms = a.Value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, a.Field)
	}
	return nil
}

type AdjustQuantity struct {
	ItemID string
	Delta  int
}

func (a AdjustQuantity) apply(s *State, _ Env) error {
	if err := s.requireLead(); err != nil {
		return err
	}
	for i := range s.Proposal.Pricing {
		if s.Proposal.Pricing[i].ID == a.ItemID {
			s.Proposal.Pricing[i].Quantity = pricing.AdjustQuantity(s.Proposal.Pricing[i].Quantity, a.Delta)
			return nil
		}
	}
	return fmt.Errorf("line item %q: %w", a.ItemID, ErrNotFound)
}

// SubmitApproval creates the live request, replacing a rejected one. A nil or
// zero RequestedDiscount means no discount was asked for.
type SubmitApproval struct {
	Role              rbac.Role
	Note              string
	RequestedDiscount *int
}

func (a SubmitApproval) apply(s *State, env Env) error {
	if !rbac.Can(a.Role, rbac.ActionRequestApproval) {
		return ErrForbidden
	}
	if status := s.ApprovalStatus(); status != StatusDraft && status != StatusRejected {
		return fmt.Errorf("%w: %s", ErrInvalidTransition, status)
	}
	if len(s.Proposal.Pricing) == 0 {
		return ErrEmptyPricing
	}

	var requested *int
	if a.RequestedDiscount != nil {
		v := *a.RequestedDiscount
		if v < 0 || v > env.maxDiscount() {
			return fmt.Errorf("%w: %d not in 0..%d", ErrDiscountOutOfRange, v, env.maxDiscount())
		}
		if v > 0 {
			requested = &v
		}
	}

	note := strings.TrimSpace(a.Note)
	if note == "" {
		note = defaultApprovalNote
	}

	s.say(RoleUser, approvalRequestMessage(requested), env.Now)
	s.Approval = &ApprovalRequest{
		ID:                env.id("apr"),
		Requester:         rbac.RoleSalesRep.Label(),
		Note:              note,
		Status:            StatusPending,
		Timestamp:         env.Now,
		RequestedDiscount: requested,
	}
	s.say(RoleAssistant, msgApprovalSent, env.Now)
	return nil
}

type DecideApproval struct {
	Role    rbac.Role
	Approve bool
	Note    string
}

func (a DecideApproval) apply(s *State, env Env) error {
	if !rbac.Can(a.Role, rbac.ActionDecideApproval) {
		return ErrForbidden
	}
	if s.Approval == nil || s.Approval.Status != StatusPending {
		return fmt.Errorf("%w: %s", ErrInvalidTransition, s.ApprovalStatus())
	}

	decidedAt := env.Now
	s.Approval.DecisionNote = a.Note
	s.Approval.DecidedAt = &decidedAt

	if !a.Approve {
		s.Approval.Status = StatusRejected
		s.say(RoleAssistant, rejectedMessage(a.Note), env.Now)
		return nil
	}

	s.Approval.Status = StatusApproved
	if s.Approval.RequestedDiscount != nil {
		s.Proposal.Discount = *s.Approval.RequestedDiscount
	}
	s.snapshot(LabelApproved, env)
	s.say(RoleAssistant, approvedMessage(s.Proposal.Discount, a.Note), env.Now)
	return nil
}

// RestoreVersion makes a stored snapshot the live proposal again without
// recording a new version.
type RestoreVersion struct {
	VersionID string
}

func (a RestoreVersion) apply(s *State, env Env) error {
	v, ok := s.FindVersion(a.VersionID)
	if !ok {
		return fmt.Errorf("version %q: %w", a.VersionID, ErrNotFound)
	}
	s.Proposal = v.Proposal.Clone()
	s.Baseline = v.Proposal.Clone()
	s.say(RoleSystem, restoredMessage(v), env.Now)
	return nil
}

// AutoSave records a "Manual Revision" when the proposal moved since the last
// save point, and does nothing otherwise.
type AutoSave struct{}

func (AutoSave) apply(s *State, env Env) error {
	if s.Lead == nil || !s.Dirty() {
		return nil
	}
	s.snapshot(LabelManualRevision, env)
	return nil
}

type SaveTemplate struct {
	Name string
}

func (a SaveTemplate) apply(s *State, env Env) error {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		return ErrEmptyName
	}
	p := s.Proposal
	s.Templates = append(s.Templates, Template{
		ID:               env.id("tpl"),
		Name:             name,
		ExecutiveSummary: p.ExecutiveSummary,
		ScopeOfWork:      p.ScopeOfWork,
		Deliverables:     p.Deliverables,
		Timeline:         p.Timeline,
		Terms:            p.Terms,
	})
	return nil
}

// ApplyTemplate overwrites the text sections; pricing and discount stay.
type ApplyTemplate struct {
	TemplateID string
}

func (a ApplyTemplate) apply(s *State, env Env) error {
	if err := s.requireLead(); err != nil {
		return err
	}
	for _, t := range s.Templates {
		if t.ID != a.TemplateID {
			continue
		}
		s.Proposal.ExecutiveSummary = t.ExecutiveSummary
		s.Proposal.ScopeOfWork = t.ScopeOfWork
		s.Proposal.Deliverables = t.Deliverables
		s.Proposal.Timeline = t.Timeline
		s.Proposal.Terms = t.Terms
		s.say(RoleSystem, templateAppliedMessage(t), env.Now)
		return nil
	}
	return fmt.Errorf("template %q: %w", a.TemplateID, ErrNotFound)
}

// PostMessage echoes free text into the transcript. Nothing answers it.
type PostMessage struct {
	Text string
}

func (a PostMessage) apply(s *State, env Env) error {
	if strings.TrimSpace(a.Text) == "" {
		return ErrEmptyMessage
	}
	s.say(RoleUser, a.Text, env.Now)
	return nil
}

// OpenEmail opens the composer addressed to the lead; the body follows via
// CompleteEmail.
type OpenEmail struct{}

func (OpenEmail) apply(s *State, env Env) error {
	if err := s.requireLead(); err != nil {
		return err
	}
	if !s.CanFinalize() {
		return ErrNotFinalized
	}
	s.Email = &EmailDraft{
		ToName:     s.Lead.Contact,
		To:         s.Lead.Email,
		Subject:    "Proposal: " + s.Lead.Opportunity,
		Attachment: EmailAttachmentName,
		Pending:    true,
	}
	s.say(RoleSystem, msgEmailDrafting, env.Now)
	return nil
}

// CompleteEmail fills the composer body. A composer discarded in the
// meantime stays closed.
type CompleteEmail struct {
	Body string
}

func (a CompleteEmail) apply(s *State, _ Env) error {
	if s.Email == nil {
		return nil
	}
	s.Email.Body = a.Body
	s.Email.Pending = false
	return nil
}

// EditEmail applies cosmetic edits; nil fields are left as they are.
type EditEmail struct {
	Subject *string
	Body    *string
}

func (a EditEmail) apply(s *State, _ Env) error {
	if s.Email == nil {
		return ErrComposerClosed
	}
	if a.Subject != nil {
		s.Email.Subject = *a.Subject
	}
	if a.Body != nil {
		s.Email.Body = *a.Body
		s.Email.Pending = false
	}
	return nil
}

// CloseEmail closes the composer, noting a send in the transcript.
type CloseEmail struct {
	Sent bool
}

func (a CloseEmail) apply(s *State, env Env) error {
	if s.Email == nil {
		return ErrComposerClosed
	}
	if a.Sent {
		s.say(RoleSystem, emailSentMessage(*s.Email), env.Now)
	}
	s.Email = nil
	return nil
}
