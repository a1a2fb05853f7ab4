package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mafia-game/backend/internal/models"
)

// Notifier delivers outbound events to a single connection.
type Notifier interface {
	Send(connID, eventType string, payload interface{})
}

var (
	errGameOver   = errors.New("game over")
	errRoomClosed = errors.New("room closed")
)

type joinEvent struct{ connID, name string }
type addBotEvent struct{ connID, name string }
type startEvent struct{ connID string }
type nightActionEvent struct {
	connID string
	choice *string
}
type voteEvent struct{ connID, target string }
type skipEvent struct{ connID string }
type leaveEvent struct{ connID string }
type infoEvent struct{ reply chan models.RoomInfo }

type speakerTurn struct {
	name    string
	skipped bool
}

// Room is an isolated game instance. All of its state is owned by the
// goroutine running run; everything else talks to it through post.
type Room struct {
	Code      string
	CreatedAt time.Time

	hostID   string
	handles  []*models.PlayerHandle
	settings models.Settings
	session  *Session
	pending  *pendingAction
	turn     *speakerTurn
	closed   bool
	botSeq   int

	opts     Options
	notifier Notifier
	policy   BotPolicy
	rng      *rand.Rand
	logger   *zap.Logger
	registry *RoomRegistry

	inbox chan interface{}
	done  chan struct{}
}

func newRoom(code, hostID string, settings models.Settings, reg *RoomRegistry) *Room {
	return &Room{
		Code:      code,
		CreatedAt: time.Now(),
		hostID:    hostID,
		settings:  settings,
		opts:      reg.opts,
		notifier:  reg.notifier,
		policy:    reg.policy,
		rng:       reg.newRand(),
		logger:    reg.logger.With(zap.String("room", code)),
		registry:  reg,
		inbox:     make(chan interface{}, 64),
		done:      make(chan struct{}),
	}
}

// post queues an event for the room goroutine. It fails once the room is gone.
func (r *Room) post(ev interface{}) bool {
	select {
	case r.inbox <- ev:
		return true
	case <-r.done:
		return false
	}
}

func (r *Room) run(ctx context.Context) {
	defer r.shutdown()

	var idle <-chan time.Time
	if r.opts.RoomIdleTTL > 0 {
		t := time.NewTimer(r.opts.RoomIdleTTL)
		defer t.Stop()
		idle = t.C
	}

	for !r.closed {
		if r.session != nil && r.session.Phase == models.PhaseSetup {
			if err := r.play(ctx); err != nil {
				return
			}
			continue
		}

		select {
		case ev := <-r.inbox:
			r.handle(ev)
		case <-idle:
			idle = nil
			if r.humanCount() == 0 {
				r.logger.Info("closing idle room")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (r *Room) shutdown() {
	r.registry.remove(r)
	close(r.done)
	r.logger.Info("room destroyed")
}

// interrupted reports whether the phase loop must unwind.
func (r *Room) interrupted() error {
	if r.closed {
		return errRoomClosed
	}
	if r.session != nil && r.session.Phase == models.PhaseGameOver {
		return errGameOver
	}
	return nil
}

// await keeps handling inbound events until done reports true, the
// deadline fires (timedOut) or the room has to stop. d <= 0 waits without deadline.
func (r *Room) await(ctx context.Context, d time.Duration, done func() bool) (timedOut bool, err error) {
	if err := r.interrupted(); err != nil {
		return false, err
	}
	if done() {
		return false, nil
	}

	var deadline <-chan time.Time
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		deadline = t.C
	}

	for {
		select {
		case ev := <-r.inbox:
			r.handle(ev)
			if err := r.interrupted(); err != nil {
				return false, err
			}
			if done() {
				return false, nil
			}
		case <-deadline:
			return true, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

func never() bool { return false }

// sleep is a narrative delay during which inbound events are still handled.
func (r *Room) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return r.interrupted()
	}
	_, err := r.await(ctx, d, never)
	return err
}

func (r *Room) handle(ev interface{}) {
	switch e := ev.(type) {
	case joinEvent:
		r.handleJoin(e.connID, e.name)
	case addBotEvent:
		r.handleAddBot(e.connID, e.name)
	case startEvent:
		r.handleStart(e.connID)
	case nightActionEvent:
		r.handleNightAction(e.connID, e.choice)
	case voteEvent:
		r.handleVote(e.connID, e.target)
	case skipEvent:
		r.handleSkip(e.connID)
	case leaveEvent:
		r.handleLeave(e.connID)
	case infoEvent:
		e.reply <- r.info()
	default:
		r.logger.Warn("unknown room event", zap.String("type", fmt.Sprintf("%T", ev)))
	}
}

func (r *Room) handleJoin(connID, name string) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		r.reject(connID, ErrInvalidName)
		return
	case r.session != nil:
		r.reject(connID, ErrGameAlreadyStarted)
		return
	case r.handleByConn(connID) != nil:
		r.reject(connID, ErrAlreadyJoined)
		return
	case len(r.handles) >= r.settings.PlayerCount:
		r.reject(connID, ErrRoomFull)
		return
	case r.handleByName(name) != nil:
		r.reject(connID, ErrNameTaken)
		return
	}

	r.handles = append(r.handles, &models.PlayerHandle{ConnID: connID, Name: name})
	if r.hostID == "" {
		r.hostID = connID
	}
	r.registry.bind(connID, r)

	r.logger.Info("player joined", zap.String("conn", connID), zap.String("name", name))
	r.notifier.Send(connID, models.EventJoined, models.Joined{Code: r.Code, ID: connID, Name: name})
	r.broadcast(models.EventRoomInfoUpdated, r.info())
	r.broadcastExcept(connID, models.EventUserJoined, models.UserPresence{ID: connID, Name: name})
}

func (r *Room) handleAddBot(connID, name string) {
	name = strings.TrimSpace(name)
	switch {
	case connID != r.hostID:
		r.reject(connID, ErrNotHost)
		return
	case r.session != nil:
		r.reject(connID, ErrGameAlreadyStarted)
		return
	case len(r.handles) >= r.settings.PlayerCount:
		r.reject(connID, ErrRoomFull)
		return
	case name != "" && r.handleByName(name) != nil:
		r.reject(connID, ErrNameTaken)
		return
	}

	for name == "" || r.handleByName(name) != nil {
		r.botSeq++
		name = fmt.Sprintf("Bot %d", r.botSeq)
	}
	r.handles = append(r.handles, &models.PlayerHandle{Name: name, IsBot: true})

	r.logger.Info("bot added", zap.String("name", name))
	r.broadcast(models.EventRoomInfoUpdated, r.info())
}

func (r *Room) handleStart(connID string) {
	switch {
	case connID != r.hostID:
		r.reject(connID, ErrNotHost)
		return
	case r.session != nil:
		r.reject(connID, ErrGameAlreadyStarted)
		return
	case len(r.handles) < r.opts.MinPlayers:
		r.reject(connID, ErrNotEnoughPlayers)
		return
	}

	players := make([]*models.Player, 0, len(r.handles))
	names := make([]string, 0, len(r.handles))
	for _, h := range r.handles {
		players = append(players, &models.Player{Name: h.Name, IsAlive: true, IsBot: h.IsBot})
		names = append(names, h.Name)
	}
	roles := AssignRoles(names, r.settings.Roles, r.rng)
	r.session = NewSession(players, roles)

	for _, h := range r.handles {
		if h.IsBot {
			continue
		}
		info, _ := roles.Info(h.Name)
		r.notifier.Send(h.ConnID, models.EventRoleAssigned, info)
	}
	r.logger.Info("game starting", zap.Int("players", len(players)))
}

func (r *Room) handleSkip(connID string) {
	s := r.session
	if s == nil || s.Phase != models.PhaseSpeaking || r.turn == nil {
		r.logger.Debug("skip ignored outside a speaking turn", zap.String("conn", connID))
		return
	}
	h := r.handleByConn(connID)
	if h == nil || h.Name != r.turn.name {
		r.logger.Debug("skip ignored from non-current speaker", zap.String("conn", connID))
		return
	}
	r.turn.skipped = true
}

func (r *Room) handleLeave(connID string) {
	idx := -1
	for i, h := range r.handles {
		if !h.IsBot && h.ConnID == connID {
			idx = i
			break
		}
	}
	if idx < 0 {
		// the creator may leave before ever joining
		if connID == r.hostID {
			r.promoteHost()
			r.broadcast(models.EventRoomInfoUpdated, r.info())
		}
		return
	}

	h := r.handles[idx]
	r.handles = append(r.handles[:idx], r.handles[idx+1:]...)
	r.registry.unbind(connID, r)
	if connID == r.hostID {
		r.promoteHost()
	}
	r.logger.Info("player left", zap.String("conn", connID), zap.String("name", h.Name))

	if r.humanCount() == 0 {
		r.closed = true
		return
	}
	r.broadcast(models.EventRoomInfoUpdated, r.info())
	r.broadcast(models.EventUserLeft, models.UserPresence{ID: connID, Name: h.Name})

	s := r.session
	if s == nil || s.Phase == models.PhaseGameOver {
		return
	}
	e, ok := s.Eliminate(h.Name, models.CauseDisconnect)
	if !ok {
		return
	}
	r.announceElimination(e)
	r.narrate(fmt.Sprintf("%s has abandoned the town.", h.Name), models.CategoryAlert)
	if winner, over := s.CheckWinner(); over {
		r.finish(winner)
	}
}

func (r *Room) promoteHost() {
	r.hostID = ""
	for _, h := range r.handles {
		if !h.IsBot {
			r.hostID = h.ConnID
			return
		}
	}
}

func (r *Room) handleByConn(connID string) *models.PlayerHandle {
	if connID == "" {
		return nil
	}
	for _, h := range r.handles {
		if h.ConnID == connID {
			return h
		}
	}
	return nil
}

func (r *Room) handleByName(name string) *models.PlayerHandle {
	for _, h := range r.handles {
		if h.Name == name {
			return h
		}
	}
	return nil
}

func (r *Room) humanCount() int {
	n := 0
	for _, h := range r.handles {
		if !h.IsBot {
			n++
		}
	}
	return n
}

func (r *Room) info() models.RoomInfo {
	phase := models.PhaseSetup
	if r.session != nil {
		phase = r.session.Phase
	}
	players := make([]models.PlayerHandle, 0, len(r.handles))
	for _, h := range r.handles {
		players = append(players, *h)
	}
	return models.RoomInfo{
		Code:     r.Code,
		HostID:   r.hostID,
		Phase:    phase,
		Players:  players,
		Settings: r.settings.Clone(),
	}
}

func (r *Room) reject(connID string, err error) {
	r.logger.Info("request rejected", zap.String("conn", connID), zap.Error(err))
	r.notifier.Send(connID, models.EventError, models.ErrorPayload{Error: err.Error()})
}

func (r *Room) broadcast(eventType string, payload interface{}) {
	r.broadcastExcept("", eventType, payload)
}

func (r *Room) broadcastExcept(skip, eventType string, payload interface{}) {
	for _, h := range r.handles {
		if h.IsBot || h.ConnID == skip {
			continue
		}
		r.notifier.Send(h.ConnID, eventType, payload)
	}
}

// sendTo delivers a private event to a roster name; bots have no connection.
func (r *Room) sendTo(name, eventType string, payload interface{}) {
	h := r.handleByName(name)
	if h == nil || h.IsBot {
		return
	}
	r.notifier.Send(h.ConnID, eventType, payload)
}

func (r *Room) narrate(message, category string) {
	r.broadcast(models.EventNarrativeLog, models.NarrativeLog{Message: message, Category: category})
}
