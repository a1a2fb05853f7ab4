package game

import (
	"sort"

	"github.com/mafia-game/backend/internal/models"
)

// NightActions holds the choices collected during one night. Empty means no action.
type NightActions struct {
	MafiaTarget     string `json:"mafiaTarget"`
	DetectiveTarget string `json:"detectiveTarget"`
	DoctorSave      string `json:"doctorSave"`
}

// NightVictim resolves the Mafia/Doctor interaction.
// The Mafia target dies unless the Doctor saved exactly that player.
func NightVictim(mafiaTarget, doctorSave string) string {
	if mafiaTarget == "" || mafiaTarget == doctorSave {
		return ""
	}
	return mafiaTarget
}

// Ballot maps voter name to target name. An empty target is an abstention.
type Ballot map[string]string

// Clone returns a copy of the ballot.
func (b Ballot) Clone() Ballot {
	out := make(Ballot, len(b))
	for voter, target := range b {
		out[voter] = target
	}
	return out
}

// VoteOutcome is the result of tallying a ballot
type VoteOutcome struct {
	Counts     map[string]int `json:"counts"`
	Eliminated string         `json:"eliminated"`
	Tied       bool           `json:"tied"`
}

// TallyVotes counts votes per target and picks the unique maximum.
// Targets are counted as given; legality is checked when votes are submitted.
func TallyVotes(ballot Ballot) VoteOutcome {
	counts := make(map[string]int)
	for _, target := range ballot {
		if target == "" {
			continue
		}
		counts[target]++
	}

	targets := make([]string, 0, len(counts))
	for target := range counts {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	maxVotes := 0
	leader := ""
	tie := false
	for _, target := range targets {
		n := counts[target]
		if n > maxVotes {
			maxVotes = n
			leader = target
			tie = false
		} else if n == maxVotes && maxVotes > 0 {
			tie = true
		}
	}

	outcome := VoteOutcome{Counts: counts, Tied: tie}
	if !tie {
		outcome.Eliminated = leader
	}
	return outcome
}

// EvaluateWinner checks the alive roster. Zero alive Mafia is always a Citizen win.
func EvaluateWinner(players []*models.Player, roles RoleAssignment) (models.Faction, bool) {
	aliveTotal := 0
	aliveMafia := 0
	for _, player := range players {
		if !player.IsAlive {
			continue
		}
		aliveTotal++
		if roles.Role(player.Name) == models.RoleMafia {
			aliveMafia++
		}
	}
	aliveCitizens := aliveTotal - aliveMafia

	if aliveMafia == 0 {
		return models.FactionCitizens, true
	}
	if aliveMafia >= aliveCitizens {
		return models.FactionMafia, true
	}
	return "", false
}
