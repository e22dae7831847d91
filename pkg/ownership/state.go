// Package ownership implements a finite state machine for the ownership of a
// resource, built around a safe two-step transfer protocol: the current owner
// proposes a successor and the successor must accept before the role changes
// hands. The owner role can also be abolished forever, and an optional
// emergency owner entity can be granted and revoked by the owner.
//
// The package is pure: state goes in, state comes out. Persistence, identity
// and transport live with the caller.
package ownership

// Kind enumerates the finite states an ownership record can be in.
type Kind string

const (
	// KindUninitialized means no ownership record has been written yet.
	KindUninitialized Kind = "uninitialized"
	// KindStd means an owner currently holds the role.
	KindStd Kind = "std"
	// KindProposed means an owner holds the role and a successor has been
	// proposed but has not yet accepted.
	KindProposed Kind = "proposed"
	// KindAbolished means the owner role has been thrown away forever.
	KindAbolished Kind = "abolished"
)

// State is the complete ownership record for a single resource. The zero
// value is the uninitialized state, so reading a record that was never
// written yields a usable State.
type State struct {
	Kind           Kind   `json:"kind"`
	Owner          string `json:"owner,omitempty"`
	Proposed       string `json:"proposed,omitempty"`
	EmergencyOwner string `json:"emergency_owner,omitempty"`
}

// Snapshot is the answer to an ownership query, shaped for API responses.
type Snapshot struct {
	Owner          string `json:"owner,omitempty"`
	Proposed       string `json:"proposed,omitempty"`
	Initialized    bool   `json:"initialized"`
	Abolished      bool   `json:"abolished"`
	EmergencyOwner string `json:"emergency_owner,omitempty"`
}

// kind maps the zero value to KindUninitialized.
func (s State) kind() Kind {
	if s.Kind == "" {
		return KindUninitialized
	}
	return s.Kind
}

// Current returns the current owner. The second return is false when no owner
// holds the role (uninitialized or abolished).
func (s State) Current() (string, bool) {
	switch s.kind() {
	case KindStd, KindProposed:
		return s.Owner, true
	default:
		return "", false
	}
}

// ProposedOwner returns the pending successor, if a proposal is open.
func (s State) ProposedOwner() (string, bool) {
	if s.kind() == KindProposed {
		return s.Proposed, true
	}
	return "", false
}

// Emergency returns the emergency owner, if one is set.
func (s State) Emergency() (string, bool) {
	switch s.kind() {
	case KindStd, KindProposed:
		if s.EmergencyOwner != "" {
			return s.EmergencyOwner, true
		}
	}
	return "", false
}

// IsOwner reports whether principal is the current owner.
func (s State) IsOwner(principal string) bool {
	owner, ok := s.Current()
	return ok && owner == principal
}

// IsProposed reports whether principal is the pending successor.
func (s State) IsProposed(principal string) bool {
	proposed, ok := s.ProposedOwner()
	return ok && proposed == principal
}

// IsEmergencyOwner reports whether principal holds the emergency owner role.
func (s State) IsEmergencyOwner(principal string) bool {
	emergency, ok := s.Emergency()
	return ok && emergency == principal
}

// Initialized reports whether the record has left the uninitialized state.
func (s State) Initialized() bool {
	return s.kind() != KindUninitialized
}

// Abolished reports whether the owner role has been abolished.
func (s State) Abolished() bool {
	return s.kind() == KindAbolished
}

// Snapshot renders the state as a query answer.
func (s State) Snapshot() Snapshot {
	snap := Snapshot{
		Initialized: s.Initialized(),
		Abolished:   s.Abolished(),
	}
	if owner, ok := s.Current(); ok {
		snap.Owner = owner
	}
	if proposed, ok := s.ProposedOwner(); ok {
		snap.Proposed = proposed
	}
	if emergency, ok := s.Emergency(); ok {
		snap.EmergencyOwner = emergency
	}
	return snap
}

// AssertOwner is IsOwner as an assertion: it returns ErrNotOwner when the
// caller is not the current owner.
func (s State) AssertOwner(caller string) error {
	if !s.IsOwner(caller) {
		return ErrNotOwner
	}
	return nil
}

// AssertProposed returns ErrNotProposedOwner when the caller is not the
// pending successor.
func (s State) AssertProposed(caller string) error {
	if !s.IsProposed(caller) {
		return ErrNotProposedOwner
	}
	return nil
}

// AssertEmergencyOwner returns ErrNotEmergencyOwner when the caller does not
// hold the emergency owner role.
func (s State) AssertEmergencyOwner(caller string) error {
	if !s.IsEmergencyOwner(caller) {
		return ErrNotEmergencyOwner
	}
	return nil
}
