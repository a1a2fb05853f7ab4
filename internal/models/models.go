package models

import (
	"encoding/json"
	"strings"
)

// GamePhase represents the current phase of a session
type GamePhase string

const (
	PhaseSetup    GamePhase = "SETUP"
	PhaseNight    GamePhase = "NIGHT"
	PhaseDay      GamePhase = "DAY"
	PhaseSpeaking GamePhase = "SPEAKING"
	PhaseVoting   GamePhase = "VOTING"
	PhaseGameOver GamePhase = "GAME_OVER"
)

// Role represents player roles in the game
type Role string

const (
	RoleMafia     Role = "Mafia"
	RoleDetective Role = "Detective"
	RoleDoctor    Role = "Doctor"
	RoleCitizen   Role = "Citizen"
)

// Roles lists every role in the fixed order used when building role lists.
var Roles = []Role{RoleMafia, RoleDetective, RoleDoctor, RoleCitizen}

// ParseRole matches a role title case-insensitively.
func ParseRole(s string) (Role, bool) {
	s = strings.TrimSpace(s)
	for _, r := range Roles {
		if strings.EqualFold(string(r), s) {
			return r, true
		}
	}
	return "", false
}

// Faction is the side that wins a game
type Faction string

const (
	FactionMafia    Faction = "Mafia"
	FactionCitizens Faction = "Citizens"
)

// RoleInfo is what a player learns about their own role
type RoleInfo struct {
	Title       Role   `json:"title"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

// Settings is the per-room game configuration chosen at creation
type Settings struct {
	PlayerCount  int          `json:"playerCount" binding:"omitempty,min=0"`
	Roles        map[Role]int `json:"roles" binding:"omitempty,dive,min=0"`
	SpeakingTime int          `json:"speakingTime" binding:"omitempty,min=0"` // seconds
}

// Clone returns a deep copy of the settings.
func (s Settings) Clone() Settings {
	out := s
	out.Roles = make(map[Role]int, len(s.Roles))
	for r, n := range s.Roles {
		out.Roles[r] = n
	}
	return out
}

// PlayerHandle is a connected member of a room (or a bot seat)
type PlayerHandle struct {
	ConnID string `json:"id"`
	Name   string `json:"name"`
	IsBot  bool   `json:"isBot"`
}

// Player is a roster entry of a running session. Dead players stay in the roster.
type Player struct {
	Name    string `json:"name"`
	IsAlive bool   `json:"isAlive"`
	IsBot   bool   `json:"isBot"`
}

// Elimination causes
const (
	CauseNight      = "night"
	CauseVote       = "vote"
	CauseDisconnect = "disconnect"
)

// Elimination is one entry of the elimination history
type Elimination struct {
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	Day   int    `json:"day"`
	Cause string `json:"cause"`
}

// Narrative log categories
const (
	CategoryNarrative = "narrative"
	CategoryAlert     = "alert"
	CategorySystem    = "system"
)

// WSMessage represents an outbound WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// InboundMessage is a WebSocket frame sent by a client
type InboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Inbound event types
const (
	EventCreateRoom        = "create-room"
	EventJoinRoom          = "join-room"
	EventAddBot            = "add-bot"
	EventStartGame         = "start-game"
	EventSubmitNightAction = "submit-night-action"
	EventSubmitVote        = "submit-vote"
	EventSkipSpeakerTurn   = "skip-speaker-turn"
	EventOffer             = "offer"
	EventAnswer            = "answer"
	EventICECandidate      = "ice-candidate"
)

// Outbound event types
const (
	EventRoomCreated          = "room-created"
	EventJoined               = "joined"
	EventRoomInfoUpdated      = "room-info-updated"
	EventRoleAssigned         = "role-assigned"
	EventGameStarted          = "game-started"
	EventPhaseEntered         = "phase-entered"
	EventNightActionRequested = "perform-night-action"
	EventSpeakerTurnStarted   = "speaker-turn-started"
	EventPlayerEliminated     = "player-eliminated"
	EventGameOver             = "game-over"
	EventNarrativeLog         = "narrative-log"
	EventUserJoined           = "user-joined"
	EventUserLeft             = "user-left"
	EventError                = "error"
)

// Inbound payloads

type CreateRoomPayload struct {
	Settings *Settings `json:"settings"`
}

type JoinRoomPayload struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
}

type AddBotPayload struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name,omitempty"`
}

type RoomPayload struct {
	RoomCode string `json:"roomCode"`
}

type NightActionPayload struct {
	RoomCode string  `json:"roomCode"`
	Choice   *string `json:"choice"`
}

type VotePayload struct {
	RoomCode string `json:"roomCode"`
	Target   string `json:"target"`
}

type SignalPayload struct {
	Target string          `json:"target"`
	Data   json.RawMessage `json:"data"`
}

// Outbound payloads

type SignalRelay struct {
	From string          `json:"from"`
	Data json.RawMessage `json:"data"`
}

type RoomCreated struct {
	Code string `json:"code"`
}

type Joined struct {
	Code string `json:"code"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoomInfo is the lobby view of a room
type RoomInfo struct {
	Code     string         `json:"code"`
	HostID   string         `json:"hostId"`
	Phase    GamePhase      `json:"phase"`
	Players  []PlayerHandle `json:"players"`
	Settings Settings       `json:"settings"`
}

type PhaseEntered struct {
	Phase      GamePhase `json:"phase"`
	Day        int       `json:"day"`
	Alive      []string  `json:"alive"`
	Candidates []string  `json:"candidates,omitempty"`
}

type NightActionPrompt struct {
	Role          Role     `json:"role"`
	Prompt        string   `json:"prompt"`
	CanChooseSelf bool     `json:"canChooseSelf"`
	Candidates    []string `json:"candidates"`
}

type SpeakerTurn struct {
	Name            string `json:"name"`
	DurationSeconds int    `json:"durationSeconds"`
}

type PlayerEliminated struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}

type GameOver struct {
	Winner  Faction             `json:"winner"`
	Roles   map[string]RoleInfo `json:"roles"`
	History []Elimination       `json:"history"`
}

type NarrativeLog struct {
	Message  string `json:"message"`
	Category string `json:"category"`
}

type UserPresence struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
