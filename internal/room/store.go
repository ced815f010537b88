package room

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kaiwen7/typebattle-backend/internal/article"
)

var (
	ErrRoomNotFound    = errors.New("Room not found")
	ErrRoomFull        = errors.New("Room is full")
	ErrRoomUnavailable = errors.New("Room is not available")
	ErrPlayerNotFound  = errors.New("Player not found")
)

const (
	roomTTL       = 30 * time.Minute
	sweepInterval = 5 * time.Minute
)

// Store is the single owner of all rooms. It keeps the room registry,
// a per-difficulty FIFO of rooms still waiting for a second player, and
// a reverse index from player id to room id. All mutation goes through
// its methods under one mutex.
type Store struct {
	mu         sync.Mutex
	rooms      map[string]*Room
	waiting    map[article.Difficulty][]string
	playerRoom map[string]string
}

func NewStore() *Store {
	return &Store{
		rooms:      make(map[string]*Room),
		waiting:    make(map[article.Difficulty][]string),
		playerRoom: make(map[string]string),
	}
}

// CreateRoom always succeeds and leaves the new room in the waiting
// queue for its difficulty.
func (s *Store) CreateRoom(playerID, playerName string, difficulty article.Difficulty) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(playerID, playerName, difficulty).Clone()
}

func (s *Store) createLocked(playerID, playerName string, difficulty article.Difficulty) *Room {
	r := &Room{
		ID: "room_" + uuid.NewString(),
		Players: []*Player{{
			ID:   playerID,
			Name: playerName,
		}},
		Difficulty: difficulty,
		State:      StateWaiting,
		CreatedAt:  time.Now().UnixMilli(),
	}

	s.rooms[r.ID] = r
	s.playerRoom[playerID] = r.ID
	s.waiting[difficulty] = append(s.waiting[difficulty], r.ID)

	return r
}

// JoinRoom adds a player to an existing waiting room. Joining a room
// the player is already in returns the room unchanged.
func (s *Store) JoinRoom(roomID, playerID, playerName string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.joinLocked(roomID, playerID, playerName)
	if err != nil {
		return nil, err
	}
	return r.Clone(), nil
}

func (s *Store) joinLocked(roomID, playerID, playerName string) (*Room, error) {
	r, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if len(r.Players) >= 2 {
		return nil, ErrRoomFull
	}
	if r.State != StateWaiting {
		return nil, ErrRoomUnavailable
	}
	if r.FindPlayer(playerID) != nil {
		return r, nil
	}

	r.Players = append(r.Players, &Player{
		ID:   playerID,
		Name: playerName,
	})
	s.playerRoom[playerID] = roomID

	// The room is no longer available for quick match.
	s.removeFromWaiting(r.Difficulty, roomID)

	return r, nil
}

// QuickMatch joins the first valid waiting room for the difficulty, or
// creates a new one. Stale queue entries are skipped, not repaired;
// the scan re-checks validity instead of trusting queue contents.
func (s *Store) QuickMatch(playerID, playerName string, difficulty article.Difficulty) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, roomID := range s.waiting[difficulty] {
		r, ok := s.rooms[roomID]
		if ok && len(r.Players) == 1 && r.State == StateWaiting {
			joined, err := s.joinLocked(roomID, playerID, playerName)
			if err != nil {
				continue
			}
			return joined.Clone()
		}
	}

	return s.createLocked(playerID, playerName, difficulty).Clone()
}

// LeaveRoom removes the player from their current room, if any. An
// emptied room is destroyed and nil is returned. Leaving mid-game
// forfeits: the room finishes and the remaining player wins.
func (s *Store) LeaveRoom(playerID string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	roomID, ok := s.playerRoom[playerID]
	if !ok {
		return nil
	}
	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}

	kept := r.Players[:0]
	for _, p := range r.Players {
		if p.ID != playerID {
			kept = append(kept, p)
		}
	}
	r.Players = kept
	delete(s.playerRoom, playerID)

	if len(r.Players) == 0 {
		delete(s.rooms, roomID)
		s.removeFromWaiting(r.Difficulty, roomID)
		return nil
	}

	if r.State == StatePlaying {
		r.State = StateFinished
		r.FinishedAt = time.Now().UnixMilli()
		// Opponent auto-wins: the leaver was just filtered out, so the
		// first remaining player is the other one.
		r.Winner = r.Players[0].ID
	}

	return r.Clone()
}

// SetPlayerReady marks the player ready; once both players in a full
// room are ready the room moves to starting. Repeated calls are
// harmless.
func (s *Store) SetPlayerReady(roomID, playerID string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	p := r.FindPlayer(playerID)
	if p == nil {
		return nil, ErrPlayerNotFound
	}

	p.Ready = true

	allReady := true
	for _, pl := range r.Players {
		if !pl.Ready {
			allReady = false
			break
		}
	}
	if allReady && len(r.Players) == 2 {
		r.State = StateStarting
	}

	return r.Clone(), nil
}

// SetGameArticle pins the article and starts the game.
func (s *Store) SetGameArticle(roomID string, art *article.Article) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}

	r.Article = art
	r.State = StatePlaying
	r.StartedAt = time.Now().UnixMilli()

	return r.Clone(), nil
}

// UpdatePlayerProgress stores a progress sample, stamping the server
// time over whatever the client sent. A missing room or player is not
// an error; late samples after a leave are expected and dropped.
func (s *Store) UpdatePlayerProgress(roomID, playerID string, progress *Progress) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	p := r.FindPlayer(playerID)
	if p == nil {
		return nil
	}

	stamped := *progress
	stamped.Timestamp = time.Now().UnixMilli()
	p.Progress = &stamped

	return r.Clone()
}

// PlayerComplete stores the player's final result. Once every player
// has a result the room finishes and the winner is computed.
func (s *Store) PlayerComplete(roomID, playerID string, result *Result) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	// finished is terminal; a completion racing a forfeit is dropped
	// like any other late message.
	if r.State != StatePlaying {
		return nil
	}
	p := r.FindPlayer(playerID)
	if p == nil {
		return nil
	}

	p.Result = result

	progress := Progress{}
	if p.Progress != nil {
		progress = *p.Progress
	}
	progress.Completed = true
	progress.CurrentIndex = result.CompletedChars
	p.Progress = &progress

	allCompleted := true
	for _, pl := range r.Players {
		if pl.Result == nil {
			allCompleted = false
			break
		}
	}
	if allCompleted {
		r.State = StateFinished
		r.FinishedAt = time.Now().UnixMilli()
		r.Winner = calculateWinner(r)
	}

	return r.Clone()
}

// calculateWinner compares results: WPM first, then accuracy, then the
// shorter duration. A full tie yields WinnerTie.
func calculateWinner(r *Room) string {
	if len(r.Players) != 2 {
		return ""
	}

	p1, p2 := r.Players[0], r.Players[1]

	if p1.Result.WPM > p2.Result.WPM {
		return p1.ID
	}
	if p2.Result.WPM > p1.Result.WPM {
		return p2.ID
	}

	if p1.Result.Accuracy > p2.Result.Accuracy {
		return p1.ID
	}
	if p2.Result.Accuracy > p1.Result.Accuracy {
		return p2.ID
	}

	if p1.Result.DurationMs < p2.Result.DurationMs {
		return p1.ID
	}
	if p2.Result.DurationMs < p1.Result.DurationMs {
		return p2.ID
	}

	return WinnerTie
}

// GetRoom returns a snapshot of the room, or nil.
func (s *Store) GetRoom(roomID string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[roomID].Clone()
}

// GetPlayerRoom returns a snapshot of the player's current room, or nil.
func (s *Store) GetPlayerRoom(playerID string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	roomID, ok := s.playerRoom[playerID]
	if !ok {
		return nil
	}
	return s.rooms[roomID].Clone()
}

// GetWaitingCount reports the waiting-queue depth for a difficulty.
func (s *Store) GetWaitingCount(difficulty article.Difficulty) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiting[difficulty])
}

// RunSweeper evicts expired rooms every sweepInterval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sweep(time.Now()); n > 0 {
				log.Printf("Swept %d expired room(s)", n)
			}
		}
	}
}

// sweep removes rooms older than roomTTL that are finished or empty,
// purging them from the waiting queues and the reverse index.
func (s *Store) sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-roomTTL).UnixMilli()
	removed := 0

	for roomID, r := range s.rooms {
		if r.CreatedAt > cutoff {
			continue
		}
		if r.State != StateFinished && len(r.Players) > 0 {
			continue
		}

		delete(s.rooms, roomID)
		for difficulty := range s.waiting {
			s.removeFromWaiting(difficulty, roomID)
		}
		for _, p := range r.Players {
			delete(s.playerRoom, p.ID)
		}
		removed++
	}

	return removed
}

func (s *Store) removeFromWaiting(difficulty article.Difficulty, roomID string) {
	list := s.waiting[difficulty]
	for i, id := range list {
		if id == roomID {
			s.waiting[difficulty] = append(list[:i], list[i+1:]...)
			return
		}
	}
}
