package game

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mafia-game/backend/internal/models"
)

const (
	nightFallsLine    = "Night falls over the town. Everyone, close your eyes."
	peacefulNightLine = "Thanks to some intervention, the night passed peacefully!"
	tiedVoteLine      = "The town could not agree on a verdict because of a tied vote."
	noVerdictLine     = "Nobody was accused today. The town goes to sleep uneasy."
)

func wakeLine(role models.Role) string {
	return fmt.Sprintf("%s, wake up.", role)
}

func winLine(winner models.Faction) string {
	if winner == models.FactionMafia {
		return "The Mafia has taken over the town! They win!"
	}
	return "Every member of the Mafia has been eliminated! The citizens win!"
}

// dayHint builds a hint from the previous day's ballot.
func dayHint(s *Session) string {
	if len(s.PrevBallot) == 0 {
		return ""
	}
	if s.PrevEliminated == "" {
		return "Yesterday's vote ended without a verdict. Suspicion still hangs over the town."
	}

	var accusers []string
	for voter, target := range s.PrevBallot {
		if target == s.PrevEliminated && s.IsAlive(voter) {
			accusers = append(accusers, voter)
		}
	}
	sort.Strings(accusers)

	if s.Roles.Role(s.PrevEliminated) == models.RoleMafia {
		return fmt.Sprintf("Yesterday the town caught one of the Mafia. %d of those who accused %s are still alive.",
			len(accusers), s.PrevEliminated)
	}
	if len(accusers) == 0 {
		return fmt.Sprintf("Yesterday an innocent, %s, was cast out, and none of the accusers survived the night.", s.PrevEliminated)
	}
	return fmt.Sprintf("Yesterday an innocent, %s, was cast out. Still among you are those who pushed for it: %s.",
		s.PrevEliminated, strings.Join(accusers, ", "))
}
