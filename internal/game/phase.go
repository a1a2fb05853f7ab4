package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mafia-game/backend/internal/models"
)

// play drives SETUP → NIGHT → DAY → SPEAKING → VOTING → ... until GAME_OVER.
// A finished game returns nil; a closed room or cancelled ctx returns an error.
func (r *Room) play(ctx context.Context) error {
	err := r.playPhases(ctx)
	if errors.Is(err, errGameOver) {
		return nil
	}
	return err
}

func (r *Room) playPhases(ctx context.Context) error {
	if err := r.sleep(ctx, r.opts.RoleRevealDelay); err != nil {
		return err
	}
	r.broadcast(models.EventGameStarted, r.info())

	for {
		if err := r.runNight(ctx); err != nil {
			return err
		}
		if err := r.runDay(ctx); err != nil {
			return err
		}
		if err := r.runSpeaking(ctx); err != nil {
			return err
		}
		if err := r.runVoting(ctx); err != nil {
			return err
		}
	}
}

func (r *Room) enterPhase(phase models.GamePhase, candidates []string) {
	s := r.session
	s.Phase = phase
	r.logger.Info("phase entered", zap.String("phase", string(phase)), zap.Int("day", s.Day))
	r.broadcast(models.EventPhaseEntered, models.PhaseEntered{
		Phase:      phase,
		Day:        s.Day,
		Alive:      s.AliveNames(),
		Candidates: candidates,
	})
}

func (r *Room) runNight(ctx context.Context) error {
	s := r.session
	s.Night = NightActions{}
	r.enterPhase(models.PhaseNight, nil)
	r.narrate(nightFallsLine, models.CategoryNarrative)
	if err := r.sleep(ctx, r.opts.NightIntroDelay); err != nil {
		return err
	}

	for _, role := range nightOrder {
		r.narrate(wakeLine(role), models.CategoryNarrative)
		actor, choice, err := r.collectNightAction(ctx, role)
		if err != nil {
			return err
		}
		switch role {
		case models.RoleMafia:
			s.Night.MafiaTarget = choice
		case models.RoleDetective:
			s.Night.DetectiveTarget = choice
			r.revealInvestigation(actor, choice)
		case models.RoleDoctor:
			s.Night.DoctorSave = choice
		}
		if err := r.sleep(ctx, r.opts.NightStepDelay); err != nil {
			return err
		}
	}
	return nil
}

func (r *Room) runDay(ctx context.Context) error {
	s := r.session
	s.Day++
	r.enterPhase(models.PhaseDay, nil)

	victim := NightVictim(s.Night.MafiaTarget, s.Night.DoctorSave)
	if e, ok := s.Eliminate(victim, models.CauseNight); ok {
		r.announceElimination(e)
		r.narrate(fmt.Sprintf("After a terrifying night, %s was found dead!", e.Name), models.CategoryAlert)
		r.dropFromMesh(e.Name)
	} else {
		r.narrate(peacefulNightLine, models.CategoryNarrative)
	}
	if hint := dayHint(s); hint != "" {
		r.narrate(hint, models.CategoryNarrative)
	}

	if winner, over := s.CheckWinner(); over {
		r.finish(winner)
		return errGameOver
	}
	return r.sleep(ctx, r.opts.DayDiscussionDelay)
}

func (r *Room) runSpeaking(ctx context.Context) error {
	s := r.session
	r.enterPhase(models.PhaseSpeaking, nil)

	sched := NewSpeakingScheduler(s.AliveNames(), r.rng)
	s.Speaking = sched
	for !sched.Done() {
		name, _ := sched.Current()
		if s.IsAlive(name) {
			if err := r.giveTurn(ctx, name); err != nil {
				return err
			}
		}
		sched.Advance()
	}
	return nil
}

// giveTurn announces a speaker and waits for the deadline, a skip by that
// speaker, or their departure. Bots yield the floor at once.
func (r *Room) giveTurn(ctx context.Context, name string) error {
	seconds := r.settings.SpeakingTime
	r.broadcast(models.EventSpeakerTurnStarted, models.SpeakerTurn{Name: name, DurationSeconds: seconds})

	h := r.handleByName(name)
	if h == nil || h.IsBot {
		return r.interrupted()
	}

	turn := &speakerTurn{name: name}
	r.turn = turn
	defer func() { r.turn = nil }()

	limit := time.Duration(seconds+1) * r.opts.TimeUnit
	_, err := r.await(ctx, limit, func() bool {
		return turn.skipped || !r.session.IsAlive(name)
	})
	return err
}

func (r *Room) runVoting(ctx context.Context) error {
	s := r.session
	s.Votes = Ballot{}
	alive := s.AliveNames()
	r.enterPhase(models.PhaseVoting, alive)

	for _, name := range alive {
		if h := r.handleByName(name); h != nil && h.IsBot {
			target := r.policy.DecideVote(s.SnapshotFor(name))
			if !s.IsAlive(target) {
				target = ""
			}
			r.castVote(name, target)
		}
	}

	timedOut, err := r.await(ctx, r.opts.VoteTimeout, s.BallotComplete)
	if err != nil {
		return err
	}
	if timedOut {
		for _, name := range s.AliveNames() {
			if _, voted := s.Votes[name]; !voted {
				s.Votes[name] = ""
			}
		}
		r.logger.Info("vote timed out, missing ballots abstain")
	}

	outcome := TallyVotes(s.Votes)
	s.PrevBallot = s.Votes.Clone()
	s.PrevEliminated = ""
	s.Votes = Ballot{}

	switch {
	case outcome.Tied:
		r.narrate(tiedVoteLine, models.CategoryNarrative)
	case outcome.Eliminated == "":
		r.narrate(noVerdictLine, models.CategoryNarrative)
	default:
		if e, ok := s.Eliminate(outcome.Eliminated, models.CauseVote); ok {
			s.PrevEliminated = e.Name
			r.announceElimination(e)
			r.narrate(fmt.Sprintf("The town decided to cast out %s. They were... %s!", e.Name, e.Role), models.CategoryAlert)
			r.dropFromMesh(e.Name)
		} else {
			// the accused left before the count
			r.narrate(noVerdictLine, models.CategoryNarrative)
		}
	}

	if winner, over := s.CheckWinner(); over {
		r.finish(winner)
		return errGameOver
	}
	return r.sleep(ctx, r.opts.VoteResultDelay)
}

func (r *Room) castVote(voter, target string) {
	r.session.Votes[voter] = target
	msg := fmt.Sprintf("%s voted against %s", voter, target)
	if target == "" {
		msg = fmt.Sprintf("%s abstained", voter)
	}
	r.narrate(msg, models.CategorySystem)
}

func (r *Room) handleVote(connID, target string) {
	s := r.session
	if s == nil || s.Phase != models.PhaseVoting {
		r.logger.Debug("vote ignored outside voting", zap.String("conn", connID))
		return
	}
	h := r.handleByConn(connID)
	if h == nil || !s.IsAlive(h.Name) {
		r.logger.Debug("vote ignored from ineligible player", zap.String("conn", connID))
		return
	}
	if target != "" && !s.IsAlive(target) {
		r.logger.Debug("vote ignored, illegal target", zap.String("conn", connID), zap.String("target", target))
		return
	}
	r.castVote(h.Name, target)
}

func (r *Room) announceElimination(e models.Elimination) {
	r.broadcast(models.EventPlayerEliminated, models.PlayerEliminated{Name: e.Name, Role: e.Role})
}

// dropFromMesh tells peers to close their media links to an eliminated player.
// Disconnects already send user-left from handleLeave.
func (r *Room) dropFromMesh(name string) {
	h := r.handleByName(name)
	if h == nil || h.IsBot {
		return
	}
	r.broadcast(models.EventUserLeft, models.UserPresence{ID: h.ConnID, Name: h.Name})
}

// finish moves the session to the terminal phase.
func (r *Room) finish(winner models.Faction) {
	s := r.session
	s.Winner = winner
	r.enterPhase(models.PhaseGameOver, nil)
	r.narrate(winLine(winner), models.CategoryNarrative)
	r.broadcast(models.EventGameOver, models.GameOver{
		Winner:  winner,
		Roles:   s.Roles.All(),
		History: append([]models.Elimination(nil), s.History...),
	})
	r.logger.Info("game over", zap.String("winner", string(winner)), zap.Int("day", s.Day))
}
