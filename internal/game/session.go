package game

import (
	"github.com/mafia-game/backend/internal/models"
)

// Session is the mutable game state owned by one Room.
// Only the room's own goroutine touches it.
type Session struct {
	Phase   models.GamePhase
	Day     int
	Players []*models.Player
	Roles   RoleAssignment

	Night    NightActions
	Votes    Ballot
	Speaking *SpeakingScheduler
	History  []models.Elimination

	// previous day, for narrative hints
	PrevBallot     Ballot
	PrevEliminated string

	// detective name -> target -> isMafia, fed to bot snapshots
	Investigations map[string]map[string]bool

	Winner models.Faction
}

// NewSession builds a session in SETUP from the roster and its roles.
func NewSession(players []*models.Player, roles RoleAssignment) *Session {
	return &Session{
		Phase:          models.PhaseSetup,
		Players:        players,
		Roles:          roles,
		Votes:          Ballot{},
		Investigations: make(map[string]map[string]bool),
	}
}

func (s *Session) Player(name string) *models.Player {
	for _, p := range s.Players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (s *Session) IsAlive(name string) bool {
	p := s.Player(name)
	return p != nil && p.IsAlive
}

// AliveNames returns alive players in roster order.
func (s *Session) AliveNames() []string {
	names := make([]string, 0, len(s.Players))
	for _, p := range s.Players {
		if p.IsAlive {
			names = append(names, p.Name)
		}
	}
	return names
}

// AliveHolders returns the alive players holding role, in roster order.
func (s *Session) AliveHolders(role models.Role) []string {
	var names []string
	for _, p := range s.Players {
		if p.IsAlive && s.Roles.Role(p.Name) == role {
			names = append(names, p.Name)
		}
	}
	return names
}

// Eliminate marks an alive player dead and records it in the history.
// Dead players are never revived, so a second call is a no-op.
func (s *Session) Eliminate(name, cause string) (models.Elimination, bool) {
	p := s.Player(name)
	if p == nil || !p.IsAlive {
		return models.Elimination{}, false
	}
	p.IsAlive = false
	e := models.Elimination{
		Name:  name,
		Role:  s.Roles.Role(name),
		Day:   s.Day,
		Cause: cause,
	}
	s.History = append(s.History, e)
	delete(s.Votes, name)
	return e, true
}

// CheckWinner evaluates the win condition over the current roster.
func (s *Session) CheckWinner() (models.Faction, bool) {
	return EvaluateWinner(s.Players, s.Roles)
}

// BallotComplete reports whether every alive player has a ballot entry.
func (s *Session) BallotComplete() bool {
	for _, p := range s.Players {
		if !p.IsAlive {
			continue
		}
		if _, ok := s.Votes[p.Name]; !ok {
			return false
		}
	}
	return true
}

func (s *Session) recordInvestigation(detective, target string, isMafia bool) {
	seen, ok := s.Investigations[detective]
	if !ok {
		seen = make(map[string]bool)
		s.Investigations[detective] = seen
	}
	seen[target] = isMafia
}

// Snapshot is the view handed to the bot-decision policy for one player.
// It never exposes another player's role.
type Snapshot struct {
	Self         string
	Role         models.Role
	Day          int
	Players      []string
	Alive        []string
	Investigated map[string]bool
}

// SnapshotFor builds the bot view of the session for self.
func (s *Session) SnapshotFor(self string) Snapshot {
	players := make([]string, 0, len(s.Players))
	for _, p := range s.Players {
		players = append(players, p.Name)
	}
	snap := Snapshot{
		Self:    self,
		Role:    s.Roles.Role(self),
		Day:     s.Day,
		Players: players,
		Alive:   s.AliveNames(),
	}
	if seen, ok := s.Investigations[self]; ok {
		snap.Investigated = make(map[string]bool, len(seen))
		for name, isMafia := range seen {
			snap.Investigated[name] = isMafia
		}
	}
	return snap
}
