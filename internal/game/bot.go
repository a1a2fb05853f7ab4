package game

import (
	"math/rand"
	"sync"

	"github.com/mafia-game/backend/internal/models"
)

// BotPolicy decides for bot-controlled roster entries, and for humans whose
// night action timed out. An empty result means no action.
type BotPolicy interface {
	DecideNightAction(role models.Role, snap Snapshot) string
	DecideVote(snap Snapshot) string
}

// RandomPolicy makes role-based random choices.
type RandomPolicy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomPolicy(seed int64) *RandomPolicy {
	return &RandomPolicy{rng: rand.New(rand.NewSource(seed))}
}

func (p *RandomPolicy) pick(names []string) string {
	if len(names) == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return names[p.rng.Intn(len(names))]
}

func (p *RandomPolicy) DecideNightAction(role models.Role, snap Snapshot) string {
	others := without(snap.Alive, snap.Self)

	switch role {
	case models.RoleMafia:
		// the snapshot hides other roles, so fellow Mafia are fair game too
		return p.pick(others)
	case models.RoleDoctor:
		return p.pick(snap.Alive)
	case models.RoleDetective:
		var fresh []string
		for _, name := range others {
			if _, seen := snap.Investigated[name]; !seen {
				fresh = append(fresh, name)
			}
		}
		if len(fresh) == 0 {
			fresh = others
		}
		return p.pick(fresh)
	default:
		return ""
	}
}

func (p *RandomPolicy) DecideVote(snap Snapshot) string {
	others := without(snap.Alive, snap.Self)
	// a detective bot votes out a Mafia it has uncovered
	var known []string
	for _, name := range others {
		if snap.Investigated[name] {
			known = append(known, name)
		}
	}
	if len(known) > 0 {
		return p.pick(known)
	}
	return p.pick(others)
}

func without(names []string, skip string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name != skip {
			out = append(out, name)
		}
	}
	return out
}
