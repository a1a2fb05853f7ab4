package game

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mafia-game/backend/internal/models"
)

type sent struct {
	connID  string
	event   string
	payload interface{}
}

// recorder is a Notifier that keeps every outbound event.
type recorder struct {
	mu   sync.Mutex
	msgs []sent
}

func (r *recorder) Send(connID, eventType string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, sent{connID: connID, event: eventType, payload: payload})
}

func (r *recorder) all(connID, eventType string) []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []interface{}
	for _, m := range r.msgs {
		if m.connID == connID && m.event == eventType {
			out = append(out, m.payload)
		}
	}
	return out
}

// waitFor blocks until connID has received an eventType payload accepted by match.
func (r *recorder) waitFor(t *testing.T, connID, eventType string, match func(interface{}) bool) interface{} {
	t.Helper()
	var found interface{}
	require.Eventually(t, func() bool {
		for _, p := range r.all(connID, eventType) {
			if match == nil || match(p) {
				found = p
				return true
			}
		}
		return false
	}, 3*time.Second, 2*time.Millisecond, "no %s for %s", eventType, connID)
	return found
}

func (r *recorder) narratives(connID string) []string {
	var out []string
	for _, p := range r.all(connID, models.EventNarrativeLog) {
		out = append(out, p.(models.NarrativeLog).Message)
	}
	return out
}

func phaseIs(phase models.GamePhase) func(interface{}) bool {
	return func(p interface{}) bool {
		return p.(models.PhaseEntered).Phase == phase
	}
}

// stubPolicy returns fixed decisions and counts calls.
type stubPolicy struct {
	mu         sync.Mutex
	night      map[models.Role]string
	vote       string
	nightCalls int
}

func (p *stubPolicy) DecideNightAction(role models.Role, _ Snapshot) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nightCalls++
	return p.night[role]
}

func (p *stubPolicy) DecideVote(Snapshot) string {
	return p.vote
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.TimeUnit = time.Millisecond
	opts.RoleRevealDelay = 0
	opts.NightIntroDelay = 0
	opts.NightStepDelay = 0
	opts.DayDiscussionDelay = 0
	opts.VoteResultDelay = 0
	opts.NightActionTimeout = 0
	opts.VoteTimeout = 0
	opts.RoomIdleTTL = 0
	return opts
}

func newTestRegistry(t *testing.T, opts Options, policy BotPolicy) (*RoomRegistry, *recorder) {
	t.Helper()
	rec := &recorder{}
	options := []Option{
		WithLogger(zap.NewNop()),
		WithRandSource(func() *rand.Rand { return rand.New(rand.NewSource(7)) }),
	}
	if policy != nil {
		options = append(options, WithBotPolicy(policy))
	}
	rr := NewRoomRegistry(opts, rec, options...)
	t.Cleanup(rr.Close)
	return rr, rec
}

// newTestRoom builds a room that is driven directly by the test goroutine.
func newTestRoom(t *testing.T, opts Options, policy BotPolicy, names ...string) (*Room, *recorder) {
	t.Helper()
	rr, rec := newTestRegistry(t, opts, policy)
	settings := models.Settings{PlayerCount: 10, SpeakingTime: 1, Roles: map[models.Role]int{}}
	room := newRoom("TEST01", "", settings, rr)
	for _, name := range names {
		room.handleJoin("conn-"+name, name)
	}
	return room, rec
}

// startSession puts the room in the given phase with an explicit role map.
func startSession(room *Room, phase models.GamePhase, roles map[string]models.Role) *Session {
	players := make([]*models.Player, 0, len(room.handles))
	for _, h := range room.handles {
		players = append(players, &models.Player{Name: h.Name, IsAlive: true, IsBot: h.IsBot})
	}
	room.session = NewSession(players, NewRoleAssignment(roles))
	room.session.Phase = phase
	return room.session
}

func strPtr(s string) *string { return &s }
