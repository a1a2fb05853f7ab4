package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mafia-game/backend/internal/models"
)

var fiveRoles = map[string]models.Role{
	"A": models.RoleMafia,
	"B": models.RoleCitizen,
	"C": models.RoleDetective,
	"D": models.RoleCitizen,
	"E": models.RoleDoctor,
}

func TestRunDaySavedVictimSurvives(t *testing.T) {
	room, rec := newTestRoom(t, testOptions(), nil, "A", "B", "C", "D", "E")
	s := startSession(room, models.PhaseNight, fiveRoles)
	s.Night = NightActions{MafiaTarget: "B", DoctorSave: "B"}

	require.NoError(t, room.runDay(context.Background()))
	assert.Equal(t, 1, s.Day)
	assert.Equal(t, models.PhaseDay, s.Phase)
	assert.Len(t, s.AliveNames(), 5)
	assert.Contains(t, rec.narratives("conn-D"), peacefulNightLine)
	assert.Empty(t, rec.all("conn-D", models.EventPlayerEliminated))
}

func TestRunDayUnsavedVictimDies(t *testing.T) {
	room, rec := newTestRoom(t, testOptions(), nil, "A", "B", "C", "D", "E")
	s := startSession(room, models.PhaseNight, fiveRoles)
	s.Night = NightActions{MafiaTarget: "B", DoctorSave: "E"}

	require.NoError(t, room.runDay(context.Background()))
	assert.False(t, s.IsAlive("B"))
	assert.Equal(t, []models.Elimination{{Name: "B", Role: models.RoleCitizen, Day: 1, Cause: models.CauseNight}}, s.History)

	eliminated := rec.all("conn-D", models.EventPlayerEliminated)
	require.Len(t, eliminated, 1)
	assert.Equal(t, models.PlayerEliminated{Name: "B", Role: models.RoleCitizen}, eliminated[0])
	assert.Contains(t, rec.narratives("conn-D"), "After a terrifying night, B was found dead!")

	left := rec.all("conn-D", models.EventUserLeft)
	require.Len(t, left, 1)
	assert.Equal(t, models.UserPresence{ID: "conn-B", Name: "B"}, left[0])
}

func TestRunDayMafiaReachesParity(t *testing.T) {
	room, rec := newTestRoom(t, testOptions(), nil, "A", "B", "C")
	s := startSession(room, models.PhaseNight, map[string]models.Role{"A": models.RoleMafia})
	s.Night = NightActions{MafiaTarget: "B"}

	err := room.runDay(context.Background())
	require.ErrorIs(t, err, errGameOver)
	assert.Equal(t, models.PhaseGameOver, s.Phase)
	assert.Equal(t, models.FactionMafia, s.Winner)

	over := rec.all("conn-C", models.EventGameOver)
	require.Len(t, over, 1)
	result := over[0].(models.GameOver)
	assert.Equal(t, models.FactionMafia, result.Winner)
	assert.Equal(t, models.RoleMafia, result.Roles["A"].Title)
	assert.Len(t, result.History, 1)
}

func TestRunVotingEliminatesMafia(t *testing.T) {
	room, rec := newTestRoom(t, testOptions(), nil, "A", "B", "C", "D")
	s := startSession(room, models.PhaseSpeaking, map[string]models.Role{"A": models.RoleMafia})
	s.Day = 1

	room.inbox <- voteEvent{connID: "conn-A", target: "B"}
	room.inbox <- voteEvent{connID: "conn-B", target: "A"}
	room.inbox <- voteEvent{connID: "conn-C", target: "A"}
	room.inbox <- voteEvent{connID: "conn-D", target: "A"}

	err := room.runVoting(context.Background())
	require.ErrorIs(t, err, errGameOver)
	assert.False(t, s.IsAlive("A"))
	assert.Equal(t, models.FactionCitizens, s.Winner)
	assert.Equal(t, "A", s.PrevEliminated)

	entered := rec.all("conn-B", models.EventPhaseEntered)
	require.NotEmpty(t, entered)
	voting := entered[0].(models.PhaseEntered)
	assert.Equal(t, models.PhaseVoting, voting.Phase)
	assert.Equal(t, []string{"A", "B", "C", "D"}, voting.Candidates)

	assert.Contains(t, rec.narratives("conn-B"), "C voted against A")
	assert.Contains(t, rec.narratives("conn-B"), "The town decided to cast out A. They were... Mafia!")
}

func TestRunVotingDepartedLeaderIsNoVerdict(t *testing.T) {
	room, rec := newTestRoom(t, testOptions(), nil, "A", "B", "C", "D", "E", "F")
	s := startSession(room, models.PhaseSpeaking, map[string]models.Role{"A": models.RoleMafia})
	s.Day = 1

	room.inbox <- voteEvent{connID: "conn-C", target: "F"}
	room.inbox <- voteEvent{connID: "conn-D", target: "F"}
	room.inbox <- voteEvent{connID: "conn-E", target: "F"}
	room.inbox <- leaveEvent{connID: "conn-F"}
	room.inbox <- voteEvent{connID: "conn-A", target: "B"}
	room.inbox <- voteEvent{connID: "conn-B", target: "A"}

	require.NoError(t, room.runVoting(context.Background()))
	assert.Empty(t, s.PrevEliminated)
	assert.Equal(t, "F", s.PrevBallot["C"], "votes for a departed player still count")
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, s.AliveNames())
	assert.Contains(t, rec.narratives("conn-A"), noVerdictLine)
}

func TestRunVotingEliminationDropsPeer(t *testing.T) {
	room, rec := newTestRoom(t, testOptions(), nil, "A", "B", "C", "D", "E")
	s := startSession(room, models.PhaseSpeaking, fiveRoles)
	s.Day = 1

	room.inbox <- voteEvent{connID: "conn-A", target: "B"}
	room.inbox <- voteEvent{connID: "conn-B", target: "A"}
	room.inbox <- voteEvent{connID: "conn-C", target: "B"}
	room.inbox <- voteEvent{connID: "conn-D", target: "B"}
	room.inbox <- voteEvent{connID: "conn-E", target: ""}

	require.NoError(t, room.runVoting(context.Background()))
	assert.False(t, s.IsAlive("B"))

	left := rec.all("conn-C", models.EventUserLeft)
	require.Len(t, left, 1)
	assert.Equal(t, models.UserPresence{ID: "conn-B", Name: "B"}, left[0])
}

func TestRunVotingTieEliminatesNobody(t *testing.T) {
	room, rec := newTestRoom(t, testOptions(), nil, "A", "B", "C", "D", "E")
	s := startSession(room, models.PhaseSpeaking, fiveRoles)
	s.Day = 1

	room.inbox <- voteEvent{connID: "conn-A", target: "B"}
	room.inbox <- voteEvent{connID: "conn-B", target: "A"}
	room.inbox <- voteEvent{connID: "conn-C", target: "B"}
	room.inbox <- voteEvent{connID: "conn-D", target: "A"}
	room.inbox <- voteEvent{connID: "conn-E", target: ""}

	require.NoError(t, room.runVoting(context.Background()))
	assert.Len(t, s.AliveNames(), 5)
	assert.Empty(t, s.PrevEliminated)
	assert.Len(t, s.PrevBallot, 5)
	assert.Empty(t, s.Votes)
	assert.Contains(t, rec.narratives("conn-A"), tiedVoteLine)
	assert.Contains(t, rec.narratives("conn-A"), "E abstained")
}

func TestRunVotingMafiaWinsAtParity(t *testing.T) {
	room, rec := newTestRoom(t, testOptions(), nil, "A", "B", "C")
	s := startSession(room, models.PhaseSpeaking, map[string]models.Role{"A": models.RoleMafia})
	s.Day = 1

	room.inbox <- voteEvent{connID: "conn-A", target: "B"}
	room.inbox <- voteEvent{connID: "conn-B", target: "C"}
	room.inbox <- voteEvent{connID: "conn-C", target: "B"}

	require.ErrorIs(t, room.runVoting(context.Background()), errGameOver)
	assert.False(t, s.IsAlive("B"))
	assert.Equal(t, models.FactionMafia, s.Winner)
	assert.Len(t, rec.all("conn-C", models.EventGameOver), 1)
}

func TestRunVotingTimeoutAbstains(t *testing.T) {
	opts := testOptions()
	opts.VoteTimeout = 5 * time.Millisecond
	room, _ := newTestRoom(t, opts, nil, "A", "B", "C", "D")
	s := startSession(room, models.PhaseSpeaking, map[string]models.Role{"A": models.RoleMafia})
	s.Day = 1

	room.inbox <- voteEvent{connID: "conn-B", target: "A"}

	require.ErrorIs(t, room.runVoting(context.Background()), errGameOver)
	assert.Equal(t, Ballot{"A": "", "B": "A", "C": "", "D": ""}, s.PrevBallot)
	assert.Equal(t, models.FactionCitizens, s.Winner)
}

func TestRunVotingBotsVote(t *testing.T) {
	policy := &stubPolicy{vote: "A"}
	room, _ := newTestRoom(t, testOptions(), policy, "A", "B")
	room.handleAddBot("conn-A", "")
	room.handleAddBot("conn-A", "")
	s := startSession(room, models.PhaseSpeaking, map[string]models.Role{"A": models.RoleMafia})
	s.Day = 1

	room.inbox <- voteEvent{connID: "conn-A", target: "B"}
	room.inbox <- voteEvent{connID: "conn-B", target: "A"}

	require.ErrorIs(t, room.runVoting(context.Background()), errGameOver)
	assert.Equal(t, "A", s.PrevBallot["Bot 1"])
	assert.Equal(t, "A", s.PrevBallot["Bot 2"])
	assert.False(t, s.IsAlive("A"))
}

func TestHandleVoteGuards(t *testing.T) {
	room, _ := newTestRoom(t, testOptions(), nil, "A", "B", "C")
	s := startSession(room, models.PhaseDay, map[string]models.Role{"A": models.RoleMafia})

	room.handleVote("conn-A", "B") // not voting yet
	assert.Empty(t, s.Votes)

	s.Phase = models.PhaseVoting
	s.Eliminate("C", models.CauseNight)
	room.handleVote("conn-C", "A")     // dead voter
	room.handleVote("conn-A", "C")     // dead target
	room.handleVote("conn-A", "Ghost") // unknown target
	room.handleVote("conn-X", "A")     // not in room
	assert.Empty(t, s.Votes)

	room.handleVote("conn-A", "B")
	room.handleVote("conn-A", "")
	assert.Equal(t, Ballot{"A": ""}, s.Votes, "latest vote replaces the earlier one")
}

func TestGiveTurnEndsOnSkip(t *testing.T) {
	opts := testOptions()
	opts.TimeUnit = time.Hour
	room, rec := newTestRoom(t, opts, nil, "A", "B")
	startSession(room, models.PhaseSpeaking, nil)

	room.inbox <- skipEvent{connID: "conn-B"} // not the speaker
	room.inbox <- skipEvent{connID: "conn-A"}

	done := make(chan error, 1)
	go func() { done <- room.giveTurn(context.Background(), "A") }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("turn did not end on skip")
	}
	assert.Nil(t, room.turn)
	turns := rec.all("conn-B", models.EventSpeakerTurnStarted)
	require.Len(t, turns, 1)
	assert.Equal(t, models.SpeakerTurn{Name: "A", DurationSeconds: 1}, turns[0])
}

func TestHandleSkipOnlyCurrentSpeaker(t *testing.T) {
	room, _ := newTestRoom(t, testOptions(), nil, "A", "B")
	startSession(room, models.PhaseSpeaking, nil)

	turn := &speakerTurn{name: "A"}
	room.turn = turn
	room.handleSkip("conn-B")
	assert.False(t, turn.skipped)
	room.handleSkip("conn-A")
	assert.True(t, turn.skipped)
}

func TestRunSpeakingGivesEveryAliveSpeakerATurn(t *testing.T) {
	room, rec := newTestRoom(t, testOptions(), nil, "A", "B", "C")
	room.handleAddBot("conn-A", "")
	s := startSession(room, models.PhaseDay, nil)
	s.Eliminate("C", models.CauseNight)

	require.NoError(t, room.runSpeaking(context.Background()))

	var speakers []string
	for _, p := range rec.all("conn-A", models.EventSpeakerTurnStarted) {
		speakers = append(speakers, p.(models.SpeakerTurn).Name)
	}
	assert.ElementsMatch(t, []string{"A", "B", "Bot 1"}, speakers)
	assert.True(t, s.Speaking.Done())
}

func TestDayHint(t *testing.T) {
	s := NewSession([]*models.Player{
		{Name: "A", IsAlive: true},
		{Name: "B", IsAlive: false},
		{Name: "C", IsAlive: true},
		{Name: "D", IsAlive: true},
	}, NewRoleAssignment(fiveRoles))

	assert.Empty(t, dayHint(s))

	s.PrevBallot = Ballot{"A": "", "C": ""}
	assert.Contains(t, dayHint(s), "without a verdict")

	s.PrevBallot = Ballot{"A": "B", "C": "B", "D": "A"}
	s.PrevEliminated = "B"
	assert.Equal(t, "Yesterday an innocent, B, was cast out. Still among you are those who pushed for it: A, C.", dayHint(s))

	s.PrevBallot = Ballot{"C": "A", "D": "A"}
	s.PrevEliminated = "A"
	assert.Contains(t, dayHint(s), "caught one of the Mafia. 2 of those")
}
