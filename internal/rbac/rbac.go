// Package rbac gates copilot actions by the role the viewer is acting as.
// It mirrors what the UI offers each role and is not a security boundary.
package rbac

import "strings"

type Role string
type Action string

const (
	RoleSalesRep Role = "sales_rep"
	RoleManager  Role = "manager"
)

const (
	ActionRead            Action = "read"
	ActionEdit            Action = "edit"
	ActionRequestApproval Action = "request_approval"
	ActionDecideApproval  Action = "decide_approval"
	ActionFinalize        Action = "finalize"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleSalesRep:
		return action == ActionRead || action == ActionEdit || action == ActionRequestApproval || action == ActionFinalize
	case RoleManager:
		return action == ActionRead || action == ActionEdit || action == ActionDecideApproval || action == ActionFinalize
	default:
		return false
	}
}

// Parse accepts the wire values as well as the display labels.
func Parse(value string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(RoleSalesRep), "sales rep", "sales-rep", "rep":
		return RoleSalesRep, true
	case string(RoleManager):
		return RoleManager, true
	default:
		return "", false
	}
}

// Normalize falls back to the sales rep view, which is where a fresh page starts.
func Normalize(role string) Role {
	if parsed, ok := Parse(role); ok {
		return parsed
	}
	return RoleSalesRep
}

func (r Role) Label() string {
	switch r {
	case RoleManager:
		return "Manager"
	case RoleSalesRep:
		return "Sales Rep"
	default:
		return string(r)
	}
}
