package ws

import (
	"encoding/json"

	"github.com/kaiwen7/typebattle-backend/internal/room"
)

// Event names, client to server.
const (
	EventQuickMatch      = "quick-match"
	EventJoinRoom        = "join-room"
	EventLeaveRoom       = "leave-room"
	EventPlayerReady     = "player-ready"
	EventTypingProgress  = "typing-progress"
	EventGameComplete    = "game-complete"
	EventGetWaitingCount = "get-waiting-count"
)

// Event names, server to client.
const (
	EventRoomJoined         = "room-joined"
	EventPlayerJoined       = "player-joined"
	EventPlayerLeft         = "player-left"
	EventPlayerReadyUpdated = "player-ready-updated"
	EventGameStarted        = "game-started"
	EventOpponentProgress   = "opponent-progress"
	EventOpponentCompleted  = "opponent-completed"
	EventGameEnded          = "game-ended"
	EventWaitingCount       = "waiting-count"
	EventError              = "error"
)

// Envelope is the wire frame for both directions: an event name plus
// its payload.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type QuickMatchPayload struct {
	PlayerName string `json:"playerName"`
	Difficulty string `json:"difficulty"`
}

type JoinRoomPayload struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"roomId"`
}

type PlayerReadyPayload struct {
	RoomID string `json:"roomId"`
}

type TypingProgressPayload struct {
	RoomID   string        `json:"roomId"`
	Progress room.Progress `json:"progress"`
}

type GameCompletePayload struct {
	RoomID string      `json:"roomId"`
	Result room.Result `json:"result"`
}

type WaitingCountRequest struct {
	Difficulty string `json:"difficulty"`
}

type RoomJoinedPayload struct {
	RoomID string    `json:"roomId"`
	Room   *RoomView `json:"room"`
}

type PlayerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type PlayerJoinedPayload struct {
	Player PlayerRef `json:"player"`
	Room   *RoomView `json:"room"`
}

type PlayerLeftPayload struct {
	PlayerID string    `json:"playerId"`
	Room     *RoomView `json:"room"`
}

type PlayerReadyUpdatedPayload struct {
	Room *RoomView `json:"room"`
}

type GameStartedPayload struct {
	Article   *ArticleView `json:"article"`
	StartTime int64        `json:"startTime"`
	Room      *RoomView    `json:"room"`
}

type OpponentProgressPayload struct {
	Progress *room.Progress `json:"progress"`
}

type OpponentCompletedPayload struct {
	PlayerID string       `json:"playerId"`
	Result   *room.Result `json:"result"`
}

type GameEndedPayload struct {
	Room   *RoomView `json:"room"`
	Winner string    `json:"winner"`
}

type WaitingCountPayload struct {
	Difficulty string `json:"difficulty"`
	Count      int    `json:"count"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
