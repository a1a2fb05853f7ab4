package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mafia-game/backend/internal/models"
)

func newTestSession() *Session {
	players := []*models.Player{
		{Name: "A", IsAlive: true},
		{Name: "B", IsAlive: true},
		{Name: "C", IsAlive: true},
		{Name: "D", IsAlive: true},
	}
	return NewSession(players, NewRoleAssignment(map[string]models.Role{
		"A": models.RoleCitizen,
		"B": models.RoleMafia,
		"C": models.RoleDetective,
		"D": models.RoleMafia,
	}))
}

func TestSessionEliminateIsMonotonic(t *testing.T) {
	s := newTestSession()
	s.Day = 2
	s.Votes = Ballot{"A": "B"}

	e, ok := s.Eliminate("A", models.CauseVote)
	require.True(t, ok)
	assert.Equal(t, models.Elimination{Name: "A", Role: models.RoleCitizen, Day: 2, Cause: models.CauseVote}, e)
	assert.False(t, s.IsAlive("A"))
	assert.NotContains(t, s.Votes, "A")

	_, ok = s.Eliminate("A", models.CauseNight)
	assert.False(t, ok)
	_, ok = s.Eliminate("nobody", models.CauseNight)
	assert.False(t, ok)
	_, ok = s.Eliminate("", models.CauseNight)
	assert.False(t, ok)

	assert.Len(t, s.History, 1)
	assert.Len(t, s.Players, 4, "dead players stay in the roster")
}

func TestSessionAliveHolders(t *testing.T) {
	s := newTestSession()
	assert.Equal(t, []string{"B", "D"}, s.AliveHolders(models.RoleMafia))

	s.Eliminate("B", models.CauseNight)
	assert.Equal(t, []string{"D"}, s.AliveHolders(models.RoleMafia))
	assert.Empty(t, s.AliveHolders(models.RoleDoctor))
	assert.Equal(t, []string{"A", "C", "D"}, s.AliveNames())
}

func TestSessionBallotComplete(t *testing.T) {
	s := newTestSession()
	s.Votes = Ballot{"A": "B", "B": "", "C": "B"}
	assert.False(t, s.BallotComplete())

	// a departed voter no longer holds the ballot open
	s.Eliminate("D", models.CauseDisconnect)
	assert.True(t, s.BallotComplete())
}

func TestSnapshotHidesOtherRoles(t *testing.T) {
	s := newTestSession()
	s.recordInvestigation("C", "B", true)

	snap := s.SnapshotFor("C")
	assert.Equal(t, models.RoleDetective, snap.Role)
	assert.Equal(t, map[string]bool{"B": true}, snap.Investigated)
	assert.Equal(t, []string{"A", "B", "C", "D"}, snap.Alive)

	other := s.SnapshotFor("A")
	assert.Equal(t, models.RoleCitizen, other.Role)
	assert.Nil(t, other.Investigated)
}
