package app

import (
	"time"

	"copilot/api/internal/copilot"
	"copilot/api/internal/pricing"
	"copilot/api/internal/rbac"
)

// WorkspaceView is what the page renders: the raw state plus everything
// derived from it.
type WorkspaceView struct {
	ID             string                   `json:"id"`
	CreatedAt      time.Time                `json:"createdAt"`
	Role           rbac.Role                `json:"role"`
	RoleLabel      string                   `json:"roleLabel"`
	Lead           *copilot.Lead            `json:"lead"`
	Proposal       copilot.Content          `json:"proposal"`
	Pricing        pricing.Breakdown        `json:"pricing"`
	PricingDisplay PricingDisplay           `json:"pricingDisplay"`
	ApprovalStatus copilot.ApprovalStatus   `json:"approvalStatus"`
	Approval       *copilot.ApprovalRequest `json:"approval"`
	CanFinalize    bool                     `json:"canFinalize"`
	Dirty          bool                     `json:"dirty"`
	Versions       []copilot.Version        `json:"versions"`
	Templates      []copilot.Template       `json:"templates"`
	Messages       []copilot.Message        `json:"messages"`
	Email          *copilot.EmailDraft      `json:"email"`
	Permissions    map[rbac.Action]bool     `json:"permissions"`
}

type PricingDisplay struct {
	Subtotal       string `json:"subtotal"`
	VolumeDiscount string `json:"volumeDiscount"`
	ManualDiscount string `json:"manualDiscount"`
	Total          string `json:"total"`
}

var viewActions = []rbac.Action{
	rbac.ActionRead,
	rbac.ActionEdit,
	rbac.ActionRequestApproval,
	rbac.ActionDecideApproval,
	rbac.ActionFinalize,
}

func newWorkspaceView(state copilot.State, role rbac.Role) WorkspaceView {
	breakdown := state.Pricing()
	permissions := make(map[rbac.Action]bool, len(viewActions))
	for _, action := range viewActions {
		permissions[action] = rbac.Can(role, action)
	}
	return WorkspaceView{
		ID:        state.ID,
		CreatedAt: state.CreatedAt,
		Role:      role,
		RoleLabel: role.Label(),
		Lead:      state.Lead,
		Proposal:  state.Proposal,
		Pricing:   breakdown,
		PricingDisplay: PricingDisplay{
			Subtotal:       pricing.FormatUSD(breakdown.Subtotal),
			VolumeDiscount: pricing.FormatUSD(breakdown.VolumeDiscount.Neg()),
			ManualDiscount: pricing.FormatUSD(breakdown.ManualDiscount.Neg()),
			Total:          pricing.FormatUSD(breakdown.Total),
		},
		ApprovalStatus: state.ApprovalStatus(),
		Approval:       state.Approval,
		CanFinalize:    state.CanFinalize(),
		Dirty:          state.Dirty(),
		Versions:       state.Versions,
		Templates:      state.Templates,
		Messages:       state.Messages,
		Email:          state.Email,
		Permissions:    permissions,
	}
}
