package game

import (
	"context"
	"encoding/hex"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mafia-game/backend/internal/models"
)

// Options holds the timings and limits shared by every room.
type Options struct {
	// TimeUnit is the length of one game "second" (speaking time is counted in it).
	TimeUnit           time.Duration
	RoleRevealDelay    time.Duration
	NightIntroDelay    time.Duration
	NightStepDelay     time.Duration
	DayDiscussionDelay time.Duration
	VoteResultDelay    time.Duration
	NightActionTimeout time.Duration // 0 waits forever
	VoteTimeout        time.Duration // 0 waits forever
	RoomIdleTTL        time.Duration
	MinPlayers         int
	MaxPlayers         int
	Defaults           models.Settings
}

// DefaultOptions returns the production timings.
func DefaultOptions() Options {
	return Options{
		TimeUnit:           time.Second,
		RoleRevealDelay:    5 * time.Second,
		NightIntroDelay:    4 * time.Second,
		NightStepDelay:     time.Second,
		DayDiscussionDelay: 4 * time.Second,
		VoteResultDelay:    5 * time.Second,
		NightActionTimeout: 60 * time.Second,
		VoteTimeout:        2 * time.Minute,
		RoomIdleTTL:        10 * time.Minute,
		MinPlayers:         3,
		MaxPlayers:         16,
		Defaults: models.Settings{
			PlayerCount:  8,
			SpeakingTime: 60,
			Roles: map[models.Role]int{
				models.RoleMafia:     2,
				models.RoleDetective: 1,
				models.RoleDoctor:    1,
			},
		},
	}
}

// RoomRegistry manages all game rooms
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	conns map[string]*Room

	opts     Options
	notifier Notifier
	policy   BotPolicy
	logger   *zap.Logger
	newRand  func() *rand.Rand

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*RoomRegistry)

func WithBotPolicy(p BotPolicy) Option {
	return func(rr *RoomRegistry) { rr.policy = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(rr *RoomRegistry) { rr.logger = l }
}

// WithRandSource sets the per-room random source factory.
func WithRandSource(f func() *rand.Rand) Option {
	return func(rr *RoomRegistry) { rr.newRand = f }
}

// NewRoomRegistry creates a new room registry
func NewRoomRegistry(opts Options, notifier Notifier, options ...Option) *RoomRegistry {
	ctx, cancel := context.WithCancel(context.Background())
	rr := &RoomRegistry{
		rooms:    make(map[string]*Room),
		conns:    make(map[string]*Room),
		opts:     opts,
		notifier: notifier,
		logger:   zap.NewNop(),
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
		ctx:    ctx,
		cancel: cancel,
	}
	for _, o := range options {
		o(rr)
	}
	if rr.policy == nil {
		rr.policy = NewRandomPolicy(time.Now().UnixNano())
	}
	return rr
}

// CreateRoom creates a room and starts its goroutine. hostConnID may be empty,
// in which case the first player to join becomes host.
func (rr *RoomRegistry) CreateRoom(hostConnID string, settings *models.Settings) (*Room, error) {
	rr.mu.Lock()
	resolved, err := rr.resolveSettings(settings)
	if err != nil {
		rr.mu.Unlock()
		return nil, err
	}

	code := rr.uniqueCodeLocked()
	room := newRoom(code, hostConnID, resolved, rr)
	rr.rooms[code] = room
	var prev *Room
	if hostConnID != "" {
		prev = rr.bindLocked(hostConnID, room)
	}
	rr.mu.Unlock()

	if prev != nil {
		go prev.post(leaveEvent{connID: hostConnID})
	}

	rr.wg.Add(1)
	go func() {
		defer rr.wg.Done()
		room.run(rr.ctx)
	}()

	rr.logger.Info("room created", zap.String("room", code), zap.Int("playerCount", resolved.PlayerCount))
	return room, nil
}

// GetRoom retrieves a room by code
func (rr *RoomRegistry) GetRoom(code string) (*Room, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	room, exists := rr.rooms[normalizeCode(code)]
	return room, exists
}

// Len returns the number of active rooms.
func (rr *RoomRegistry) Len() int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return len(rr.rooms)
}

func (rr *RoomRegistry) dispatch(code string, ev interface{}) error {
	room, exists := rr.GetRoom(code)
	if !exists || !room.post(ev) {
		return ErrRoomNotFound
	}
	return nil
}

// Join adds a player to a room. Rejections other than an unknown code are
// delivered to the connection by the room itself.
func (rr *RoomRegistry) Join(code, connID, name string) error {
	return rr.dispatch(code, joinEvent{connID: connID, name: name})
}

func (rr *RoomRegistry) AddBot(code, connID, name string) error {
	return rr.dispatch(code, addBotEvent{connID: connID, name: name})
}

func (rr *RoomRegistry) StartGame(code, connID string) error {
	return rr.dispatch(code, startEvent{connID: connID})
}

func (rr *RoomRegistry) SubmitNightAction(code, connID string, choice *string) error {
	return rr.dispatch(code, nightActionEvent{connID: connID, choice: choice})
}

func (rr *RoomRegistry) SubmitVote(code, connID, target string) error {
	return rr.dispatch(code, voteEvent{connID: connID, target: target})
}

func (rr *RoomRegistry) SkipSpeakerTurn(code, connID string) error {
	return rr.dispatch(code, skipEvent{connID: connID})
}

// Leave handles a closed connection.
func (rr *RoomRegistry) Leave(connID string) {
	rr.mu.Lock()
	room := rr.conns[connID]
	delete(rr.conns, connID)
	rr.mu.Unlock()

	if room != nil {
		room.post(leaveEvent{connID: connID})
	}
}

// RoomInfo returns the lobby view of a room.
func (rr *RoomRegistry) RoomInfo(ctx context.Context, code string) (models.RoomInfo, error) {
	room, exists := rr.GetRoom(code)
	if !exists {
		return models.RoomInfo{}, ErrRoomNotFound
	}
	reply := make(chan models.RoomInfo, 1)
	if !room.post(infoEvent{reply: reply}) {
		return models.RoomInfo{}, ErrRoomNotFound
	}
	select {
	case info := <-reply:
		return info, nil
	case <-room.done:
		return models.RoomInfo{}, ErrRoomNotFound
	case <-ctx.Done():
		return models.RoomInfo{}, ctx.Err()
	}
}

// SetDefaults swaps the settings used for rooms created without any.
func (rr *RoomRegistry) SetDefaults(settings models.Settings) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.opts.Defaults = settings.Clone()
}

// Close stops every room and waits for their goroutines.
func (rr *RoomRegistry) Close() {
	rr.cancel()
	rr.wg.Wait()
}

func (rr *RoomRegistry) bind(connID string, room *Room) {
	rr.mu.Lock()
	prev := rr.bindLocked(connID, room)
	rr.mu.Unlock()

	if prev != nil {
		// posted asynchronously, the caller is a room goroutine
		go prev.post(leaveEvent{connID: connID})
	}
}

func (rr *RoomRegistry) bindLocked(connID string, room *Room) *Room {
	prev := rr.conns[connID]
	rr.conns[connID] = room
	if prev == room {
		return nil
	}
	return prev
}

func (rr *RoomRegistry) unbind(connID string, room *Room) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if rr.conns[connID] == room {
		delete(rr.conns, connID)
	}
}

func (rr *RoomRegistry) remove(room *Room) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if rr.rooms[room.Code] == room {
		delete(rr.rooms, room.Code)
	}
	for connID, r := range rr.conns {
		if r == room {
			delete(rr.conns, connID)
		}
	}
}

// resolveSettings fills gaps from the defaults and validates the result.
func (rr *RoomRegistry) resolveSettings(in *models.Settings) (models.Settings, error) {
	defaults := rr.opts.Defaults
	if in == nil {
		return defaults.Clone(), nil
	}

	out := models.Settings{
		PlayerCount:  in.PlayerCount,
		SpeakingTime: in.SpeakingTime,
	}
	if out.PlayerCount == 0 {
		out.PlayerCount = defaults.PlayerCount
	}
	if out.SpeakingTime == 0 {
		out.SpeakingTime = defaults.SpeakingTime
	}
	if out.PlayerCount < rr.opts.MinPlayers || out.PlayerCount > rr.opts.MaxPlayers || out.SpeakingTime < 0 {
		return models.Settings{}, ErrInvalidSettings
	}

	if in.Roles == nil {
		out.Roles = defaults.Clone().Roles
		return out, nil
	}
	out.Roles = make(map[models.Role]int, len(in.Roles))
	for title, count := range in.Roles {
		role, ok := models.ParseRole(string(title))
		if !ok || count < 0 {
			return models.Settings{}, ErrInvalidSettings
		}
		out.Roles[role] += count
	}
	return out, nil
}

func (rr *RoomRegistry) uniqueCodeLocked() string {
	for {
		code := generateRoomCode()
		if _, taken := rr.rooms[code]; !taken {
			return code
		}
	}
}

// generateRoomCode derives a 6-character hex code from 3 random bytes
func generateRoomCode() string {
	id := uuid.New()
	return strings.ToUpper(hex.EncodeToString(id[:3]))
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Custom errors
var (
	ErrRoomNotFound       = &GameError{"room not found"}
	ErrRoomFull           = &GameError{"room is full"}
	ErrGameAlreadyStarted = &GameError{"game already started"}
	ErrNotEnoughPlayers   = &GameError{"not enough players to start"}
	ErrNameTaken          = &GameError{"name already taken in this room"}
	ErrInvalidName        = &GameError{"display name is required"}
	ErrAlreadyJoined      = &GameError{"already joined this room"}
	ErrNotHost            = &GameError{"only the host can do that"}
	ErrInvalidSettings    = &GameError{"invalid game settings"}
)

type GameError struct {
	message string
}

func (e *GameError) Error() string {
	return e.message
}
