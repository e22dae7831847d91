package ownership

import "fmt"

// InitAction names the events valid against an uninitialized record.
type InitAction string

const (
	// InitSetInitialOwner sets the first owner. Anyone may initialize; there is
	// no ownership to protect yet.
	InitSetInitialOwner InitAction = "set_initial_owner"
	// InitAbolishOwnerRole starts the record with the owner role already
	// abolished. No owner can ever be set afterwards.
	InitAbolishOwnerRole InitAction = "abolish_owner_role"
)

// Init is an initialization event.
type Init struct {
	Action InitAction `json:"action"`
	Owner  string     `json:"owner,omitempty"`
}

// UpdateAction names the events valid against an initialized record.
type UpdateAction string

const (
	// ActionProposeNewOwner proposes a successor. Owner only.
	ActionProposeNewOwner UpdateAction = "propose_new_owner"
	// ActionClearProposed withdraws the pending proposal. Owner only.
	ActionClearProposed UpdateAction = "clear_proposed"
	// ActionAcceptProposed promotes the pending successor to owner. Proposed
	// owner only.
	ActionAcceptProposed UpdateAction = "accept_proposed"
	// ActionAbolishOwnerRole throws away the keys to the owner role forever.
	// Owner only.
	ActionAbolishOwnerRole UpdateAction = "abolish_owner_role"
	// ActionSetEmergencyOwner grants the emergency owner role to a separate
	// entity managed by the owner. Owner only.
	ActionSetEmergencyOwner UpdateAction = "set_emergency_owner"
	// ActionClearEmergencyOwner revokes the emergency owner role. Owner only.
	ActionClearEmergencyOwner UpdateAction = "clear_emergency_owner"
)

// Update is an ownership update event dispatched by Transition.
type Update struct {
	Action         UpdateAction `json:"action"`
	Proposed       string       `json:"proposed,omitempty"`
	EmergencyOwner string       `json:"emergency_owner,omitempty"`
}

// InitOwner builds the init event that sets the first owner.
func InitOwner(owner string) Init {
	return Init{Action: InitSetInitialOwner, Owner: owner}
}

// InitAbolished builds the init event that abolishes the role from the start.
func InitAbolished() Init {
	return Init{Action: InitAbolishOwnerRole}
}

// ProposeNewOwner builds the update event proposing a successor.
func ProposeNewOwner(proposed string) Update {
	return Update{Action: ActionProposeNewOwner, Proposed: proposed}
}

// ClearProposed builds the update event withdrawing the pending proposal.
func ClearProposed() Update {
	return Update{Action: ActionClearProposed}
}

// AcceptProposed builds the update event accepting the pending proposal.
func AcceptProposed() Update {
	return Update{Action: ActionAcceptProposed}
}

// AbolishOwnerRole builds the update event abolishing the owner role.
func AbolishOwnerRole() Update {
	return Update{Action: ActionAbolishOwnerRole}
}

// SetEmergencyOwner builds the update event granting the emergency owner role.
func SetEmergencyOwner(principal string) Update {
	return Update{Action: ActionSetEmergencyOwner, EmergencyOwner: principal}
}

// ClearEmergencyOwner builds the update event revoking the emergency owner role.
func ClearEmergencyOwner() Update {
	return Update{Action: ActionClearEmergencyOwner}
}

// ParseInitAction maps a wire string to an InitAction.
func ParseInitAction(s string) (InitAction, error) {
	switch InitAction(s) {
	case InitSetInitialOwner, InitAbolishOwnerRole:
		return InitAction(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// ParseUpdateAction maps a wire string to an UpdateAction.
func ParseUpdateAction(s string) (UpdateAction, error) {
	switch UpdateAction(s) {
	case ActionProposeNewOwner, ActionClearProposed, ActionAcceptProposed,
		ActionAbolishOwnerRole, ActionSetEmergencyOwner, ActionClearEmergencyOwner:
		return UpdateAction(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// Initialize applies an init event. Only an uninitialized record can be
// initialized; any other state returns ErrStateTransition.
func Initialize(state State, init Init) (State, error) {
	if state.kind() != KindUninitialized {
		return State{}, ErrStateTransition
	}
	switch init.Action {
	case InitSetInitialOwner:
		if err := ValidatePrincipal(init.Owner); err != nil {
			return State{}, err
		}
		return State{Kind: KindStd, Owner: init.Owner}, nil
	case InitAbolishOwnerRole:
		return State{Kind: KindAbolished}, nil
	default:
		return State{}, fmt.Errorf("%w: %q", ErrUnknownAction, string(init.Action))
	}
}

// Transition applies an update event on behalf of sender and returns the
// resulting state. The (state, event) pair is matched first, so an event that
// is meaningless in the current state fails with ErrStateTransition no matter
// who sent it. Valid pairs then assert the sender and finally validate any
// principal carried by the event.
func Transition(state State, sender string, update Update) (State, error) {
	switch {
	case state.kind() == KindStd && update.Action == ActionProposeNewOwner:
		if err := state.AssertOwner(sender); err != nil {
			return State{}, err
		}
		if err := ValidatePrincipal(update.Proposed); err != nil {
			return State{}, err
		}
		return State{
			Kind:           KindProposed,
			Owner:          state.Owner,
			Proposed:       update.Proposed,
			EmergencyOwner: state.EmergencyOwner,
		}, nil

	case state.kind() == KindStd && update.Action == ActionSetEmergencyOwner:
		if err := state.AssertOwner(sender); err != nil {
			return State{}, err
		}
		if err := ValidatePrincipal(update.EmergencyOwner); err != nil {
			return State{}, err
		}
		return State{
			Kind:           KindStd,
			Owner:          state.Owner,
			EmergencyOwner: update.EmergencyOwner,
		}, nil

	case state.kind() == KindStd && update.Action == ActionClearEmergencyOwner:
		if err := state.AssertOwner(sender); err != nil {
			return State{}, err
		}
		return State{Kind: KindStd, Owner: state.Owner}, nil

	case state.kind() == KindStd && update.Action == ActionAbolishOwnerRole:
		if err := state.AssertOwner(sender); err != nil {
			return State{}, err
		}
		return State{Kind: KindAbolished}, nil

	case state.kind() == KindProposed && update.Action == ActionAcceptProposed:
		if err := state.AssertProposed(sender); err != nil {
			return State{}, err
		}
		return State{
			Kind:           KindStd,
			Owner:          state.Proposed,
			EmergencyOwner: state.EmergencyOwner,
		}, nil

	case state.kind() == KindProposed && update.Action == ActionClearProposed:
		if err := state.AssertOwner(sender); err != nil {
			return State{}, err
		}
		return State{
			Kind:           KindStd,
			Owner:          state.Owner,
			EmergencyOwner: state.EmergencyOwner,
		}, nil

	default:
		return State{}, ErrStateTransition
	}
}
