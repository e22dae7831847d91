package ownership

import "errors"

// Errors returned from ownership state transitions and assertions.
var (
	// ErrNotOwner is returned when a caller who is not the current owner
	// attempts an owner-only action.
	ErrNotOwner = errors.New("caller is not owner")

	// ErrNotProposedOwner is returned when a caller who is not the proposed
	// owner attempts to accept a pending proposal.
	ErrNotProposedOwner = errors.New("caller is not the proposed owner")

	// ErrNotEmergencyOwner is returned by AssertEmergencyOwner when the caller
	// does not hold the emergency owner role.
	ErrNotEmergencyOwner = errors.New("caller is not the emergency owner")

	// ErrStateTransition is returned when an event is not valid in the current
	// state, including any attempt to initialize an already initialized record
	// or to update an uninitialized or abolished one.
	ErrStateTransition = errors.New("owner state transition was not valid")

	// ErrInvalidPrincipal is returned when a principal identifier carried by an
	// event does not satisfy ValidatePrincipal.
	ErrInvalidPrincipal = errors.New("invalid principal id")

	// ErrUnknownAction is returned when an action string does not name any
	// known init or update event.
	ErrUnknownAction = errors.New("unknown ownership action")
)
