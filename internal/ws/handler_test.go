package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/kaiwen7/typebattle-backend/internal/article"
	"github.com/kaiwen7/typebattle-backend/internal/room"
	wsPkg "github.com/kaiwen7/typebattle-backend/pkg/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator() *Coordinator {
	c := NewCoordinator(wsPkg.NewHub(), room.NewStore(), article.NewSelector(), nil, nil)
	c.countdown = 20 * time.Millisecond
	return c
}

func connect(c *Coordinator, id, name string) *wsPkg.Client {
	client := &wsPkg.Client{ID: id, Name: name, Send: make(chan []byte, 32)}
	c.hub.Add(client)
	return client
}

func send(t *testing.T, c *Coordinator, client *wsPkg.Client, event string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	msg, err := json.Marshal(Envelope{Type: event, Payload: raw})
	require.NoError(t, err)
	c.Dispatch(client, msg)
}

// recv waits for the next event of the given type, skipping others.
func recv(t *testing.T, client *wsPkg.Client, event string) json.RawMessage {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case msg := <-client.Send:
			var env Envelope
			require.NoError(t, json.Unmarshal(msg, &env))
			if env.Type == event {
				return env.Payload
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", event)
		}
	}
}

func drain(client *wsPkg.Client) {
	for {
		select {
		case <-client.Send:
		default:
			return
		}
	}
}

func assertQuiet(t *testing.T, client *wsPkg.Client) {
	t.Helper()
	select {
	case msg := <-client.Send:
		t.Fatalf("unexpected event: %s", msg)
	default:
	}
}

// pairUp quick-matches both clients into one room and returns its id.
func pairUp(t *testing.T, c *Coordinator, p1, p2 *wsPkg.Client) string {
	t.Helper()
	send(t, c, p1, EventQuickMatch, QuickMatchPayload{PlayerName: p1.Name, Difficulty: "medium"})

	var joined RoomJoinedPayload
	require.NoError(t, json.Unmarshal(recv(t, p1, EventRoomJoined), &joined))

	send(t, c, p2, EventQuickMatch, QuickMatchPayload{PlayerName: p2.Name, Difficulty: "medium"})

	var second RoomJoinedPayload
	require.NoError(t, json.Unmarshal(recv(t, p2, EventRoomJoined), &second))
	require.Equal(t, joined.RoomID, second.RoomID)
	return joined.RoomID
}

// startPlaying takes a paired room through ready-up and the countdown.
func startPlaying(t *testing.T, c *Coordinator, roomID string, p1, p2 *wsPkg.Client) {
	t.Helper()
	send(t, c, p1, EventPlayerReady, PlayerReadyPayload{RoomID: roomID})
	send(t, c, p2, EventPlayerReady, PlayerReadyPayload{RoomID: roomID})
	recv(t, p1, EventGameStarted)
	recv(t, p2, EventGameStarted)
	drain(p1)
	drain(p2)
}

func TestQuickMatchPairsPlayers(t *testing.T) {
	c := newTestCoordinator()
	p1 := connect(c, "p1", "Alice")
	p2 := connect(c, "p2", "Bob")

	send(t, c, p1, EventQuickMatch, QuickMatchPayload{PlayerName: "Alice", Difficulty: "hard"})
	var joined RoomJoinedPayload
	require.NoError(t, json.Unmarshal(recv(t, p1, EventRoomJoined), &joined))
	require.NotNil(t, joined.Room)
	assert.Equal(t, room.StateWaiting, joined.Room.State)
	assert.Len(t, joined.Room.Players, 1)

	send(t, c, p2, EventQuickMatch, QuickMatchPayload{PlayerName: "Bob", Difficulty: "hard"})
	var second RoomJoinedPayload
	require.NoError(t, json.Unmarshal(recv(t, p2, EventRoomJoined), &second))
	assert.Equal(t, joined.RoomID, second.RoomID)
	assert.Len(t, second.Room.Players, 2)

	// The first player hears about the newcomer.
	var notice PlayerJoinedPayload
	require.NoError(t, json.Unmarshal(recv(t, p1, EventPlayerJoined), &notice))
	assert.Equal(t, "p2", notice.Player.ID)
	assert.Equal(t, "Bob", notice.Player.Name)
}

func TestJoinRoomUnknownID(t *testing.T) {
	c := newTestCoordinator()
	p1 := connect(c, "p1", "Alice")

	send(t, c, p1, EventJoinRoom, JoinRoomPayload{RoomID: "nope", PlayerName: "Alice"})

	var errPayload ErrorPayload
	require.NoError(t, json.Unmarshal(recv(t, p1, EventError), &errPayload))
	assert.Equal(t, "Room not found", errPayload.Message)
}

func TestReadyCountdownStartsGame(t *testing.T) {
	c := newTestCoordinator()
	p1 := connect(c, "p1", "Alice")
	p2 := connect(c, "p2", "Bob")
	roomID := pairUp(t, c, p1, p2)

	send(t, c, p1, EventPlayerReady, PlayerReadyPayload{RoomID: roomID})
	send(t, c, p2, EventPlayerReady, PlayerReadyPayload{RoomID: roomID})

	var started GameStartedPayload
	require.NoError(t, json.Unmarshal(recv(t, p1, EventGameStarted), &started))
	require.NotNil(t, started.Article)
	assert.NotEmpty(t, started.Article.Content)
	assert.NotZero(t, started.StartTime)
	assert.Equal(t, room.StatePlaying, started.Room.State)

	recv(t, p2, EventGameStarted)

	snapshot := c.store.GetRoom(roomID)
	require.NotNil(t, snapshot)
	assert.Equal(t, room.StatePlaying, snapshot.State)
}

func TestLeaveDuringCountdownSkipsStart(t *testing.T) {
	c := newTestCoordinator()
	p1 := connect(c, "p1", "Alice")
	p2 := connect(c, "p2", "Bob")
	roomID := pairUp(t, c, p1, p2)

	send(t, c, p1, EventPlayerReady, PlayerReadyPayload{RoomID: roomID})
	send(t, c, p2, EventPlayerReady, PlayerReadyPayload{RoomID: roomID})
	send(t, c, p2, EventLeaveRoom, LeaveRoomPayload{RoomID: roomID})

	recv(t, p1, EventPlayerLeft)
	drain(p1)

	time.Sleep(3 * c.countdown)
	assertQuiet(t, p1)

	snapshot := c.store.GetRoom(roomID)
	require.NotNil(t, snapshot)
	assert.NotEqual(t, room.StatePlaying, snapshot.State)
	assert.Nil(t, snapshot.Article)
}

func TestProgressRelayIsSanitized(t *testing.T) {
	c := newTestCoordinator()
	p1 := connect(c, "p1", "Alice")
	p2 := connect(c, "p2", "Bob")
	roomID := pairUp(t, c, p1, p2)
	startPlaying(t, c, roomID, p1, p2)

	send(t, c, p1, EventTypingProgress, TypingProgressPayload{
		RoomID: roomID,
		Progress: room.Progress{
			CurrentIndex:    10,
			WPM:             72,
			CPM:             360,
			Accuracy:        0.95,
			Errors:          []room.ErrorDetail{{Index: 4, Expected: "e", Actual: "r"}},
			TotalKeystrokes: 12,
			Backspaces:      1,
		},
	})

	var relayed OpponentProgressPayload
	require.NoError(t, json.Unmarshal(recv(t, p2, EventOpponentProgress), &relayed))
	require.NotNil(t, relayed.Progress)
	assert.Equal(t, 10, relayed.Progress.CurrentIndex)
	assert.Equal(t, 72, relayed.Progress.WPM)
	assert.Nil(t, relayed.Progress.Errors)
	assert.Zero(t, relayed.Progress.TotalKeystrokes)
	assert.Zero(t, relayed.Progress.Backspaces)
	assertQuiet(t, p1)
}

func TestInvalidProgressRejected(t *testing.T) {
	c := newTestCoordinator()
	p1 := connect(c, "p1", "Alice")
	p2 := connect(c, "p2", "Bob")
	roomID := pairUp(t, c, p1, p2)
	startPlaying(t, c, roomID, p1, p2)

	send(t, c, p1, EventTypingProgress, TypingProgressPayload{
		RoomID:   roomID,
		Progress: room.Progress{CurrentIndex: 30, Timestamp: 100},
	})
	recv(t, p2, EventOpponentProgress)

	// Rewinding more than the tolerated correction window.
	send(t, c, p1, EventTypingProgress, TypingProgressPayload{
		RoomID:   roomID,
		Progress: room.Progress{CurrentIndex: 15, Timestamp: time.Now().UnixMilli() + 1000},
	})

	var errPayload ErrorPayload
	require.NoError(t, json.Unmarshal(recv(t, p1, EventError), &errPayload))
	assert.Equal(t, "Invalid progress detected", errPayload.Message)
	assertQuiet(t, p2)

	// The rejected sample must not have been applied.
	snapshot := c.store.GetRoom(roomID)
	assert.Equal(t, 30, snapshot.FindPlayer("p1").Progress.CurrentIndex)
}

func TestGameCompleteEndsGame(t *testing.T) {
	c := newTestCoordinator()
	p1 := connect(c, "p1", "Alice")
	p2 := connect(c, "p2", "Bob")
	roomID := pairUp(t, c, p1, p2)
	startPlaying(t, c, roomID, p1, p2)

	send(t, c, p1, EventGameComplete, GameCompletePayload{
		RoomID: roomID,
		Result: room.Result{WPM: 80, Accuracy: 0.95, DurationMs: 30000},
	})

	var completed OpponentCompletedPayload
	require.NoError(t, json.Unmarshal(recv(t, p2, EventOpponentCompleted), &completed))
	assert.Equal(t, "p1", completed.PlayerID)
	require.NotNil(t, completed.Result)
	assert.Equal(t, 80, completed.Result.WPM)

	send(t, c, p2, EventGameComplete, GameCompletePayload{
		RoomID: roomID,
		Result: room.Result{WPM: 80, Accuracy: 0.97, DurationMs: 31000},
	})

	var ended GameEndedPayload
	require.NoError(t, json.Unmarshal(recv(t, p1, EventGameEnded), &ended))
	assert.Equal(t, "p2", ended.Winner)
	assert.Equal(t, room.StateFinished, ended.Room.State)
	recv(t, p2, EventGameEnded)
}

func TestLeaveWhilePlayingForfeits(t *testing.T) {
	c := newTestCoordinator()
	p1 := connect(c, "p1", "Alice")
	p2 := connect(c, "p2", "Bob")
	roomID := pairUp(t, c, p1, p2)
	startPlaying(t, c, roomID, p1, p2)

	send(t, c, p2, EventLeaveRoom, LeaveRoomPayload{RoomID: roomID})

	var left PlayerLeftPayload
	require.NoError(t, json.Unmarshal(recv(t, p1, EventPlayerLeft), &left))
	assert.Equal(t, "p2", left.PlayerID)
	require.NotNil(t, left.Room)
	assert.Equal(t, room.StateFinished, left.Room.State)
	assert.Equal(t, "p1", left.Room.Winner)
}

func TestDisconnectActsAsLeave(t *testing.T) {
	c := newTestCoordinator()
	p1 := connect(c, "p1", "Alice")
	p2 := connect(c, "p2", "Bob")
	roomID := pairUp(t, c, p1, p2)
	startPlaying(t, c, roomID, p1, p2)

	c.leave("p2")

	var left PlayerLeftPayload
	require.NoError(t, json.Unmarshal(recv(t, p1, EventPlayerLeft), &left))
	assert.Equal(t, room.StateFinished, left.Room.State)
	assert.Equal(t, "p1", left.Room.Winner)

	snapshot := c.store.GetRoom(roomID)
	require.NotNil(t, snapshot)
	assert.Equal(t, "p1", snapshot.Winner)
}

func TestWaitingCount(t *testing.T) {
	c := newTestCoordinator()
	p1 := connect(c, "p1", "Alice")
	p2 := connect(c, "p2", "Bob")

	send(t, c, p1, EventQuickMatch, QuickMatchPayload{PlayerName: "Alice", Difficulty: "easy"})
	drain(p1)

	send(t, c, p2, EventGetWaitingCount, WaitingCountRequest{Difficulty: "easy"})

	var count WaitingCountPayload
	require.NoError(t, json.Unmarshal(recv(t, p2, EventWaitingCount), &count))
	assert.Equal(t, "easy", count.Difficulty)
	assert.Equal(t, 1, count.Count)
}

func TestUnknownEvent(t *testing.T) {
	c := newTestCoordinator()
	p1 := connect(c, "p1", "Alice")

	c.Dispatch(p1, []byte(`{"type":"no-such-event"}`))

	var errPayload ErrorPayload
	require.NoError(t, json.Unmarshal(recv(t, p1, EventError), &errPayload))
	assert.Equal(t, "Unknown event", errPayload.Message)
}
