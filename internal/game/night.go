package game

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mafia-game/backend/internal/models"
)

// nightOrder is the fixed collection order. Roles are never collected concurrently.
var nightOrder = []models.Role{models.RoleMafia, models.RoleDetective, models.RoleDoctor}

var nightPrompts = map[models.Role]string{
	models.RoleMafia:     "Mafia, choose your victim.",
	models.RoleDetective: "Detective, choose someone to investigate.",
	models.RoleDoctor:    "Doctor, choose someone to save.",
}

// pendingAction is the one-shot slot for a role's action this night.
type pendingAction struct {
	role      models.Role
	submitted bool
	by        string
	choice    string
}

// fulfill resolves the slot once. Later calls are no-ops and return false.
func (p *pendingAction) fulfill(by, choice string) bool {
	if p.submitted {
		return false
	}
	p.submitted = true
	p.by = by
	p.choice = choice
	return true
}

func canChooseSelf(role models.Role) bool {
	return role != models.RoleDetective
}

// nightCandidates lists legal targets of role for actor.
func (r *Room) nightCandidates(role models.Role, actor string) []string {
	alive := r.session.AliveNames()
	if canChooseSelf(role) {
		return alive
	}
	return without(alive, actor)
}

func (r *Room) legalNightTarget(role models.Role, actor, target string) bool {
	if !r.session.IsAlive(target) {
		return false
	}
	return canChooseSelf(role) || target != actor
}

// collectNightAction prompts every alive holder of role and waits for the
// first valid submission. With no alive holder it resolves to no action.
func (r *Room) collectNightAction(ctx context.Context, role models.Role) (actor, choice string, err error) {
	s := r.session
	holders := s.AliveHolders(role)
	if len(holders) == 0 {
		r.logger.Debug("no alive holder, skipping night action", zap.String("role", string(role)))
		return "", "", nil
	}

	p := &pendingAction{role: role}
	r.pending = p
	defer func() { r.pending = nil }()

	for _, name := range r.humanHolders(holders) {
		r.notifier.Send(r.handleByName(name).ConnID, models.EventNightActionRequested, models.NightActionPrompt{
			Role:          role,
			Prompt:        nightPrompts[role],
			CanChooseSelf: canChooseSelf(role),
			Candidates:    r.nightCandidates(role, name),
		})
	}

	// bots only wait on humans; once none is left to answer, the policy decides
	timedOut, err := r.await(ctx, r.opts.NightActionTimeout, func() bool {
		return p.submitted || len(r.humanHolders(s.AliveHolders(role))) == 0
	})
	if err != nil {
		return "", "", err
	}
	if p.submitted {
		return p.by, p.choice, nil
	}

	alive := s.AliveHolders(role)
	if len(alive) == 0 {
		return "", "", nil
	}
	if !timedOut {
		r.decideForBot(p, alive[0])
		return p.by, p.choice, nil
	}

	r.logger.Info("night action timed out, delegating", zap.String("role", string(role)), zap.String("holder", alive[0]))
	r.decideForBot(p, alive[0])
	r.sendTo(alive[0], models.EventNarrativeLog, models.NarrativeLog{
		Message:  "Time is up. Fate has chosen for you.",
		Category: models.CategorySystem,
	})
	return p.by, p.choice, nil
}

// humanHolders filters names down to those with a live connection.
func (r *Room) humanHolders(names []string) []string {
	var out []string
	for _, name := range names {
		if h := r.handleByName(name); h != nil && !h.IsBot {
			out = append(out, name)
		}
	}
	return out
}

func (r *Room) decideForBot(p *pendingAction, name string) {
	choice := r.policy.DecideNightAction(p.role, r.session.SnapshotFor(name))
	if choice != "" && !r.legalNightTarget(p.role, name, choice) {
		choice = ""
	}
	p.fulfill(name, choice)
}

func (r *Room) handleNightAction(connID string, choice *string) {
	s := r.session
	p := r.pending
	if s == nil || s.Phase != models.PhaseNight || p == nil {
		r.logger.Debug("night action ignored outside collection", zap.String("conn", connID))
		return
	}
	h := r.handleByConn(connID)
	if h == nil || !s.IsAlive(h.Name) || s.Roles.Role(h.Name) != p.role {
		r.logger.Debug("night action ignored from ineligible player", zap.String("conn", connID))
		return
	}

	target := ""
	if choice != nil {
		target = strings.TrimSpace(*choice)
	}
	if target != "" && !r.legalNightTarget(p.role, h.Name, target) {
		r.logger.Debug("night action ignored, illegal target", zap.String("conn", connID), zap.String("target", target))
		return
	}

	if !p.fulfill(h.Name, target) {
		r.logger.Debug("night action discarded, role already resolved", zap.String("conn", connID))
		return
	}
	r.logger.Info("night action resolved", zap.String("role", string(p.role)), zap.String("by", h.Name))
}

// revealInvestigation sends the detective's result to the investigator only.
func (r *Room) revealInvestigation(detective, target string) {
	if detective == "" || target == "" {
		return
	}
	isMafia := r.session.Roles.Role(target) == models.RoleMafia
	r.session.recordInvestigation(detective, target, isMafia)

	verdict := "innocent."
	if isMafia {
		verdict = "Mafia!"
	}
	r.sendTo(detective, models.EventNarrativeLog, models.NarrativeLog{
		Message:  fmt.Sprintf("Investigation result: %s is %s", target, verdict),
		Category: models.CategorySystem,
	})
}
