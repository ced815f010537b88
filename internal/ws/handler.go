package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kaiwen7/typebattle-backend/internal/article"
	"github.com/kaiwen7/typebattle-backend/internal/auth"
	"github.com/kaiwen7/typebattle-backend/internal/history"
	"github.com/kaiwen7/typebattle-backend/internal/room"
	wsPkg "github.com/kaiwen7/typebattle-backend/pkg/websocket"
)

// startCountdown is the client-facing courtesy window between both
// players readying up and the article being revealed.
const startCountdown = 2 * time.Second

// Coordinator binds websocket events to the room store and routes the
// results to the right audience: the sender, the whole room, or the
// single opponent.
type Coordinator struct {
	hub      *wsPkg.Hub
	store    *room.Store
	selector *article.Selector
	auth     *auth.Service
	history  *history.Service

	countdown time.Duration

	tmu    sync.Mutex
	timers map[string]*time.Timer
}

func NewCoordinator(hub *wsPkg.Hub, store *room.Store, selector *article.Selector, authService *auth.Service, historyService *history.Service) *Coordinator {
	return &Coordinator{
		hub:       hub,
		store:     store,
		selector:  selector,
		auth:      authService,
		history:   historyService,
		countdown: startCountdown,
		timers:    make(map[string]*time.Timer),
	}
}

// ServeWS authenticates the guest token, upgrades the connection and
// starts the read/write pumps.
func (c *Coordinator) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}
	playerID, name, err := c.auth.ParseToken(token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := wsPkg.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Upgrade failed: %v", err)
		return
	}

	client := wsPkg.NewClient(playerID, name, conn)
	c.hub.Add(client)

	go c.read(client)
	go c.write(client)
}

func (c *Coordinator) read(client *wsPkg.Client) {
	defer func() {
		c.disconnect(client)
		client.Conn.Close()
	}()

	for {
		_, data, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Read error for client %s: %v", client.ID, err)
			}
			return
		}
		c.Dispatch(client, data)
	}
}

func (c *Coordinator) write(client *wsPkg.Client) {
	defer client.Conn.Close()

	for msg := range client.Send {
		if err := client.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("Write error for client %s: %v", client.ID, err)
			return
		}
	}
}

// Dispatch decodes one inbound frame and runs its handler to
// completion. A handler failure is reported to the sender only.
func (c *Coordinator) Dispatch(client *wsPkg.Client, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.emitError(client.ID, "Invalid message")
		return
	}

	switch env.Type {
	case EventQuickMatch:
		var p QuickMatchPayload
		if !c.decode(client.ID, env.Payload, &p) {
			return
		}
		c.handleQuickMatch(client, p)
	case EventJoinRoom:
		var p JoinRoomPayload
		if !c.decode(client.ID, env.Payload, &p) {
			return
		}
		c.handleJoinRoom(client, p)
	case EventLeaveRoom:
		c.leave(client.ID)
	case EventPlayerReady:
		var p PlayerReadyPayload
		if !c.decode(client.ID, env.Payload, &p) {
			return
		}
		c.handlePlayerReady(client, p)
	case EventTypingProgress:
		var p TypingProgressPayload
		if !c.decode(client.ID, env.Payload, &p) {
			return
		}
		c.handleTypingProgress(client, p)
	case EventGameComplete:
		var p GameCompletePayload
		if !c.decode(client.ID, env.Payload, &p) {
			return
		}
		c.handleGameComplete(client, p)
	case EventGetWaitingCount:
		var p WaitingCountRequest
		if !c.decode(client.ID, env.Payload, &p) {
			return
		}
		count := c.store.GetWaitingCount(article.ParseDifficulty(p.Difficulty))
		c.emit(client.ID, EventWaitingCount, WaitingCountPayload{
			Difficulty: p.Difficulty,
			Count:      count,
		})
	default:
		c.emitError(client.ID, "Unknown event")
	}
}

func (c *Coordinator) handleQuickMatch(client *wsPkg.Client, p QuickMatchPayload) {
	name := p.PlayerName
	if name == "" {
		name = client.Name
	}
	rm := c.store.QuickMatch(client.ID, name, article.ParseDifficulty(p.Difficulty))
	c.announceJoin(client.ID, name, rm)
}

func (c *Coordinator) handleJoinRoom(client *wsPkg.Client, p JoinRoomPayload) {
	name := p.PlayerName
	if name == "" {
		name = client.Name
	}
	rm, err := c.store.JoinRoom(p.RoomID, client.ID, name)
	if err != nil {
		c.emitError(client.ID, err.Error())
		return
	}
	c.announceJoin(client.ID, name, rm)
}

// announceJoin tells the joiner about the room and the rest of the
// room about the joiner.
func (c *Coordinator) announceJoin(playerID, playerName string, rm *room.Room) {
	c.emit(playerID, EventRoomJoined, RoomJoinedPayload{
		RoomID: rm.ID,
		Room:   ProjectRoom(rm, playerID),
	})
	c.emitEach(rm, playerID, func(viewerID string) (string, any) {
		return EventPlayerJoined, PlayerJoinedPayload{
			Player: PlayerRef{ID: playerID, Name: playerName},
			Room:   ProjectRoom(rm, viewerID),
		}
	})
}

func (c *Coordinator) handlePlayerReady(client *wsPkg.Client, p PlayerReadyPayload) {
	rm, err := c.store.SetPlayerReady(p.RoomID, client.ID)
	if err != nil {
		c.emitError(client.ID, err.Error())
		return
	}

	c.emitEach(rm, "", func(viewerID string) (string, any) {
		return EventPlayerReadyUpdated, PlayerReadyUpdatedPayload{
			Room: ProjectRoom(rm, viewerID),
		}
	})

	if rm.State == room.StateStarting && len(rm.Players) == 2 {
		c.scheduleStart(rm.ID)
	}
}

func (c *Coordinator) handleTypingProgress(client *wsPkg.Client, p TypingProgressPayload) {
	rm := c.store.GetRoom(p.RoomID)
	if rm == nil || rm.State != room.StatePlaying {
		return
	}
	player := rm.FindPlayer(client.ID)
	if player == nil {
		return
	}

	if !room.ValidateProgress(rm.Article, &p.Progress, player.Progress) {
		c.emitError(client.ID, "Invalid progress detected")
		return
	}

	updated := c.store.UpdatePlayerProgress(p.RoomID, client.ID, &p.Progress)
	if updated == nil {
		return
	}

	sender := updated.FindPlayer(client.ID)
	opponent := updated.Opponent(client.ID)
	if sender == nil || opponent == nil {
		return
	}
	c.emit(opponent.ID, EventOpponentProgress, OpponentProgressPayload{
		Progress: sender.Progress.Sanitized(),
	})
}

func (c *Coordinator) handleGameComplete(client *wsPkg.Client, p GameCompletePayload) {
	rm := c.store.GetRoom(p.RoomID)
	if rm == nil || rm.FindPlayer(client.ID) == nil {
		return
	}

	updated := c.store.PlayerComplete(p.RoomID, client.ID, &p.Result)
	if updated == nil {
		return
	}

	c.emitEach(updated, client.ID, func(viewerID string) (string, any) {
		return EventOpponentCompleted, OpponentCompletedPayload{
			PlayerID: client.ID,
			Result:   &p.Result,
		}
	})

	if updated.State == room.StateFinished {
		c.finishRoom(updated)
	}
}

// finishRoom announces the outcome and records the match.
func (c *Coordinator) finishRoom(rm *room.Room) {
	c.cancelStartTimer(rm.ID)
	c.emitEach(rm, "", func(viewerID string) (string, any) {
		return EventGameEnded, GameEndedPayload{
			Room:   ProjectRoom(rm, viewerID),
			Winner: rm.Winner,
		}
	})
	c.recordMatch(rm)
}

func (c *Coordinator) recordMatch(rm *room.Room) {
	if c.history == nil {
		return
	}
	go func(snapshot *room.Room) {
		if err := c.history.RecordMatch(snapshot); err != nil {
			log.Printf("Failed to record match %s: %v", snapshot.ID, err)
		}
	}(rm)
}

// leave handles both explicit leave-room and transport disconnect.
func (c *Coordinator) leave(playerID string) {
	prev := c.store.GetPlayerRoom(playerID)
	if prev == nil {
		return
	}

	updated := c.store.LeaveRoom(playerID)
	c.cancelStartTimer(prev.ID)
	if updated == nil {
		// Room was destroyed with its last player.
		return
	}

	// The remaining player learns about a forfeit from the room state
	// carried here; there is no separate game-ended on this path.
	c.emitEach(updated, "", func(viewerID string) (string, any) {
		return EventPlayerLeft, PlayerLeftPayload{
			PlayerID: playerID,
			Room:     ProjectRoom(updated, viewerID),
		}
	})

	if updated.State == room.StateFinished {
		c.recordMatch(updated)
	}
}

func (c *Coordinator) disconnect(client *wsPkg.Client) {
	c.leave(client.ID)
	c.hub.Remove(client.ID)
	log.Printf("Player %s disconnected", client.ID)
}

// scheduleStart arms the countdown for a room that just went to
// starting. The timer re-validates the room when it fires; a leave in
// the window cancels the start.
func (c *Coordinator) scheduleStart(roomID string) {
	c.tmu.Lock()
	defer c.tmu.Unlock()

	if _, armed := c.timers[roomID]; armed {
		return
	}
	c.timers[roomID] = time.AfterFunc(c.countdown, func() {
		c.tmu.Lock()
		delete(c.timers, roomID)
		c.tmu.Unlock()
		c.startGame(roomID)
	})
}

func (c *Coordinator) cancelStartTimer(roomID string) {
	c.tmu.Lock()
	defer c.tmu.Unlock()

	if t, armed := c.timers[roomID]; armed {
		t.Stop()
		delete(c.timers, roomID)
	}
}

func (c *Coordinator) startGame(roomID string) {
	rm := c.store.GetRoom(roomID)
	if rm == nil || rm.State != room.StateStarting || len(rm.Players) != 2 {
		return
	}

	art := c.selector.SelectArticle(rm.Difficulty)
	updated, err := c.store.SetGameArticle(roomID, art)
	if err != nil {
		log.Printf("Failed to start game in room %s: %v", roomID, err)
		return
	}

	c.emitEach(updated, "", func(viewerID string) (string, any) {
		return EventGameStarted, GameStartedPayload{
			Article:   projectArticle(updated.Article),
			StartTime: updated.StartedAt,
			Room:      ProjectRoom(updated, viewerID),
		}
	})
}

func (c *Coordinator) decode(playerID string, raw json.RawMessage, out any) bool {
	if err := json.Unmarshal(raw, out); err != nil {
		c.emitError(playerID, "Invalid payload")
		return false
	}
	return true
}

func (c *Coordinator) emit(playerID, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal %s payload: %v", event, err)
		return
	}
	msg, err := json.Marshal(Envelope{Type: event, Payload: raw})
	if err != nil {
		log.Printf("Failed to marshal %s envelope: %v", event, err)
		return
	}
	c.hub.SendToClient(playerID, msg)
}

// emitEach sends a per-recipient payload to every room member except
// exclude. Payloads are built per viewer so the privacy projection is
// always computed from the recipient's perspective.
func (c *Coordinator) emitEach(rm *room.Room, exclude string, build func(viewerID string) (string, any)) {
	for _, p := range rm.Players {
		if p.ID == exclude {
			continue
		}
		event, payload := build(p.ID)
		c.emit(p.ID, event, payload)
	}
}

func (c *Coordinator) emitError(playerID, message string) {
	c.emit(playerID, EventError, ErrorPayload{Message: message})
}
