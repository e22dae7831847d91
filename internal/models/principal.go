package models

import (
	"time"
)

// Role represents a principal's role in the registry
type Role string

const (
	RoleAdmin    Role = "admin"    // Full registry access
	RoleOperator Role = "operator" // Can initialize resources and drive ownership updates
	RoleViewer   Role = "viewer"   // Read-only access
)

// Permission represents a specific permission
type Permission string

const (
	// Ownership permissions
	PermOwnerRead    Permission = "owner:read"
	PermOwnerUpdate  Permission = "owner:update"
	PermResourceInit Permission = "resource:init"

	// Audit permissions
	PermAuditRead Permission = "audit:read"

	// System permissions
	PermSystemRead Permission = "system:read"

	// Principal management permissions
	PermPrincipalCreate Permission = "principal:create"
	PermPrincipalRead   Permission = "principal:read"
	PermPrincipalRevoke Permission = "principal:revoke"
)

// Principal is an authenticated caller of the registry API. Updates are
// dispatched with the principal's ID as the sender, so the FSM, not the role,
// decides whether the caller may change ownership.
type Principal struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	KeyHash   string    `json:"-"` // Never expose in JSON
	CreatedAt time.Time `json:"created_at"`
}

// PrincipalRequest represents a request to create a principal
type PrincipalRequest struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// PrincipalCreated is returned once at creation time; the API key is not
// recoverable afterwards.
type PrincipalCreated struct {
	Principal Principal `json:"principal"`
	APIKey    string    `json:"api_key"`
}

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		// All permissions
		PermOwnerRead, PermOwnerUpdate, PermResourceInit,
		PermAuditRead,
		PermSystemRead,
		PermPrincipalCreate, PermPrincipalRead, PermPrincipalRevoke,
	},
	RoleOperator: {
		// Drives ownership, read-only elsewhere
		PermOwnerRead, PermOwnerUpdate, PermResourceInit,
		PermAuditRead,
		PermSystemRead,
		PermPrincipalRead,
	},
	RoleViewer: {
		// Read-only access
		PermOwnerRead,
		PermAuditRead,
		PermSystemRead,
	},
}

// HasPermission checks if a role has a specific permission
func (r Role) HasPermission(perm Permission) bool {
	perms, ok := RolePermissions[r]
	if !ok {
		return false
	}

	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

// GetPermissions returns all permissions for a role
func (r Role) GetPermissions() []Permission {
	return RolePermissions[r]
}

// IsValid checks if a role is valid
func (r Role) IsValid() bool {
	_, ok := RolePermissions[r]
	return ok
}
