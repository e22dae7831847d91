package models

import (
	"fmt"
	"time"

	"github.com/custodian-sh/custodian/pkg/ownership"
)

// Resource name length bound. Names address ownership records, so they follow
// the same character rules as principal IDs.
const MaxResourceNameLen = 64

// Resource is a named ownership record as stored by the registry.
type Resource struct {
	Name      string          `json:"name"`
	State     ownership.State `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TransitionRecord is one audited ownership change. Owner and Proposed carry
// the post-transition values.
type TransitionRecord struct {
	ID         string         `json:"id"`
	Resource   string         `json:"resource"`
	Action     string         `json:"action"`
	FromKind   ownership.Kind `json:"from_kind"`
	ToKind     ownership.Kind `json:"to_kind"`
	Sender     string         `json:"sender"`
	Owner      string         `json:"owner,omitempty"`
	Proposed   string         `json:"proposed,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// ValidateResourceName checks that a resource name is addressable: 1 to
// MaxResourceNameLen characters of lowercase letters, digits, '.', '_', '-'.
func ValidateResourceName(name string) error {
	if name == "" || len(name) > MaxResourceNameLen {
		return fmt.Errorf("invalid resource name %q: must be 1-%d characters", name, MaxResourceNameLen)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			return fmt.Errorf("invalid resource name %q: character %q not allowed", name, r)
		}
	}
	return nil
}
