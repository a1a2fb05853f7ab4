package game

import (
	"math/rand"

	"github.com/mafia-game/backend/internal/models"
)

var roleCatalog = map[models.Role]models.RoleInfo{
	models.RoleMafia: {
		Title:       models.RoleMafia,
		Icon:        "🔪",
		Description: "You are the killer. At night, choose a victim.",
	},
	models.RoleDetective: {
		Title:       models.RoleDetective,
		Icon:        "🕵️‍♂️",
		Description: "You seek the truth. At night, choose someone to investigate.",
	},
	models.RoleDoctor: {
		Title:       models.RoleDoctor,
		Icon:        "👨‍⚕️",
		Description: "You are the healer. At night, choose someone to protect from the Mafia.",
	},
	models.RoleCitizen: {
		Title:       models.RoleCitizen,
		Icon:        "👤",
		Description: "You are innocent. Use your wits during the day to expose the Mafia.",
	},
}

// RoleInfoFor returns the display info for a role.
func RoleInfoFor(role models.Role) models.RoleInfo {
	return roleCatalog[role]
}

// RoleAssignment maps player name to role. It is never mutated after construction.
type RoleAssignment struct {
	roles map[string]models.RoleInfo
}

// NewRoleAssignment builds an assignment from an explicit name→role map.
func NewRoleAssignment(byName map[string]models.Role) RoleAssignment {
	roles := make(map[string]models.RoleInfo, len(byName))
	for name, role := range byName {
		roles[name] = RoleInfoFor(role)
	}
	return RoleAssignment{roles: roles}
}

// Role returns the role title of a player, or "" for unknown names.
func (a RoleAssignment) Role(name string) models.Role {
	return a.roles[name].Title
}

// Info returns the full role info of a player.
func (a RoleAssignment) Info(name string) (models.RoleInfo, bool) {
	info, ok := a.roles[name]
	return info, ok
}

// All returns a copy of the assignment for the end-of-game reveal.
func (a RoleAssignment) All() map[string]models.RoleInfo {
	out := make(map[string]models.RoleInfo, len(a.roles))
	for name, info := range a.roles {
		out[name] = info
	}
	return out
}

// Len returns the number of assigned players.
func (a RoleAssignment) Len() int {
	return len(a.roles)
}

// AssignRoles shuffles the configured role multiset and binds roles index-for-index.
// Players beyond the list get Citizen; extra roles beyond the roster are dropped.
func AssignRoles(names []string, counts map[models.Role]int, rng *rand.Rand) RoleAssignment {
	roles := make([]models.Role, 0, len(names))
	// fixed order so a seeded shuffle is reproducible
	for _, role := range models.Roles {
		for i := 0; i < counts[role]; i++ {
			roles = append(roles, role)
		}
	}

	rng.Shuffle(len(roles), func(i, j int) {
		roles[i], roles[j] = roles[j], roles[i]
	})

	byName := make(map[string]models.Role, len(names))
	for i, name := range names {
		role := models.RoleCitizen
		if i < len(roles) {
			role = roles[i]
		}
		byName[name] = role
	}
	return NewRoleAssignment(byName)
}
