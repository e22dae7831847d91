package ownership

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueries(t *testing.T) {
	tests := []struct {
		name          string
		state         State
		wantOwner     string
		wantProposed  string
		wantEmergency string
		initialized   bool
		abolished     bool
	}{
		{
			name:  "zero value is uninitialized",
			state: State{},
		},
		{
			name:        "std",
			state:       State{Kind: KindStd, Owner: "alice"},
			wantOwner:   "alice",
			initialized: true,
		},
		{
			name:          "std with emergency owner",
			state:         State{Kind: KindStd, Owner: "alice", EmergencyOwner: "carol"},
			wantOwner:     "alice",
			wantEmergency: "carol",
			initialized:   true,
		},
		{
			name:          "proposed",
			state:         State{Kind: KindProposed, Owner: "alice", Proposed: "bob", EmergencyOwner: "carol"},
			wantOwner:     "alice",
			wantProposed:  "bob",
			wantEmergency: "carol",
			initialized:   true,
		},
		{
			name:        "abolished",
			state:       State{Kind: KindAbolished},
			initialized: true,
			abolished:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, ok := tt.state.Current()
			assert.Equal(t, tt.wantOwner != "", ok)
			assert.Equal(t, tt.wantOwner, owner)

			proposed, ok := tt.state.ProposedOwner()
			assert.Equal(t, tt.wantProposed != "", ok)
			assert.Equal(t, tt.wantProposed, proposed)

			emergency, ok := tt.state.Emergency()
			assert.Equal(t, tt.wantEmergency != "", ok)
			assert.Equal(t, tt.wantEmergency, emergency)

			assert.Equal(t, tt.initialized, tt.state.Initialized())
			assert.Equal(t, tt.abolished, tt.state.Abolished())

			snap := tt.state.Snapshot()
			assert.Equal(t, tt.wantOwner, snap.Owner)
			assert.Equal(t, tt.wantProposed, snap.Proposed)
			assert.Equal(t, tt.wantEmergency, snap.EmergencyOwner)
			assert.Equal(t, tt.initialized, snap.Initialized)
			assert.Equal(t, tt.abolished, snap.Abolished)
		})
	}
}

func TestAssertions(t *testing.T) {
	state := State{Kind: KindProposed, Owner: "alice", Proposed: "bob", EmergencyOwner: "carol"}

	assert.NoError(t, state.AssertOwner("alice"))
	assert.ErrorIs(t, state.AssertOwner("bob"), ErrNotOwner)
	assert.ErrorIs(t, state.AssertOwner("mallory"), ErrNotOwner)

	assert.NoError(t, state.AssertProposed("bob"))
	assert.ErrorIs(t, state.AssertProposed("alice"), ErrNotProposedOwner)

	assert.NoError(t, state.AssertEmergencyOwner("carol"))
	assert.ErrorIs(t, state.AssertEmergencyOwner("alice"), ErrNotEmergencyOwner)

	// No assertion holds against an abolished record.
	abolished := State{Kind: KindAbolished}
	assert.ErrorIs(t, abolished.AssertOwner("alice"), ErrNotOwner)
	assert.ErrorIs(t, abolished.AssertProposed("bob"), ErrNotProposedOwner)
	assert.ErrorIs(t, abolished.AssertEmergencyOwner("carol"), ErrNotEmergencyOwner)
}

func TestStateRoundTrip(t *testing.T) {
	// Stores persist State as JSON; the zero value must come back usable.
	state := State{Kind: KindProposed, Owner: "alice", Proposed: "bob"}
	raw, err := json.Marshal(state)
	require.NoError(t, err)

	var decoded State
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, state, decoded)

	var zero State
	require.NoError(t, json.Unmarshal([]byte(`{}`), &zero))
	assert.False(t, zero.Initialized())
}

func TestValidatePrincipal(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		wantErr   bool
	}{
		{"simple", "alice", false},
		{"with separators", "svc.payments_prod-1", false},
		{"minimum length", "abc", false},
		{"digits only", "12345", false},
		{"too short", "ab", true},
		{"empty", "", true},
		{"too long", strings.Repeat("a", MaxPrincipalLen+1), true},
		{"uppercase", "Alice", true},
		{"whitespace", "alice smith", true},
		{"unicode", "ålice", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePrincipal(tt.principal)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPrincipal)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseActions(t *testing.T) {
	for _, s := range []string{
		"propose_new_owner", "clear_proposed", "accept_proposed",
		"abolish_owner_role", "set_emergency_owner", "clear_emergency_owner",
	} {
		action, err := ParseUpdateAction(s)
		require.NoError(t, err)
		assert.Equal(t, UpdateAction(s), action)
	}

	for _, s := range []string{"set_initial_owner", "abolish_owner_role"} {
		action, err := ParseInitAction(s)
		require.NoError(t, err)
		assert.Equal(t, InitAction(s), action)
	}

	_, err := ParseUpdateAction("transfer")
	assert.ErrorIs(t, err, ErrUnknownAction)
	_, err = ParseInitAction("propose_new_owner")
	assert.ErrorIs(t, err, ErrUnknownAction)
}
