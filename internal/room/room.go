package room

import (
	"github.com/kaiwen7/typebattle-backend/internal/article"
)

type State string

const (
	StateWaiting  State = "waiting"
	StateStarting State = "starting"
	StatePlaying  State = "playing"
	StateFinished State = "finished"
)

// WinnerTie marks a battle where both players tied on every metric.
const WinnerTie = "tie"

// ErrorDetail records one mistyped character position.
type ErrorDetail struct {
	Index    int    `json:"index"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Progress is a point-in-time snapshot of a player's typing position.
// Errors, TotalKeystrokes and Backspaces are keystroke-level detail that
// must never reach the opponent while a game is running.
type Progress struct {
	CurrentIndex    int           `json:"currentIndex"`
	WPM             int           `json:"wpm"`
	CPM             int           `json:"cpm"`
	Accuracy        float64       `json:"accuracy"`
	Timestamp       int64         `json:"timestamp"`
	Errors          []ErrorDetail `json:"errors,omitempty"`
	TotalKeystrokes int           `json:"totalKeystrokes,omitempty"`
	Backspaces      int           `json:"backspaces,omitempty"`
	Completed       bool          `json:"completed,omitempty"`
}

// Sanitized strips keystroke-level detail, leaving only what an
// opponent is allowed to see.
func (p *Progress) Sanitized() *Progress {
	if p == nil {
		return nil
	}
	return &Progress{
		CurrentIndex: p.CurrentIndex,
		WPM:          p.WPM,
		CPM:          p.CPM,
		Accuracy:     p.Accuracy,
		Timestamp:    p.Timestamp,
		Completed:    p.Completed,
	}
}

// Result is the final outcome a player submits when they finish typing.
// The server never recomputes it; it only compares results to pick a winner.
type Result struct {
	WPM             int           `json:"wpm"`
	CPM             int           `json:"cpm"`
	Accuracy        float64       `json:"accuracy"`
	DurationMs      int64         `json:"durationMs"`
	TotalChars      int           `json:"totalChars"`
	CompletedChars  int           `json:"completedChars"`
	Errors          []ErrorDetail `json:"errors"`
	TotalKeystrokes int           `json:"totalKeystrokes"`
	Backspaces      int           `json:"backspaces"`
}

type Player struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Ready    bool      `json:"ready"`
	Progress *Progress `json:"progress"`
	Result   *Result   `json:"result"`
}

// Room is a single 1-or-2-player battle session. Players is kept in join
// order; forfeit resolution depends on that ordering.
type Room struct {
	ID         string             `json:"id"`
	Players    []*Player          `json:"players"`
	Difficulty article.Difficulty `json:"difficulty"`
	State      State              `json:"state"`
	Article    *article.Article   `json:"article"`
	CreatedAt  int64              `json:"createdAt"`
	StartedAt  int64              `json:"startedAt,omitempty"`
	FinishedAt int64              `json:"finishedAt,omitempty"`
	Winner     string             `json:"winner,omitempty"`
}

// Clone deep-copies the room so callers can read and serialize it
// without holding the store lock. The article is shared; it is
// immutable once set.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.Players = make([]*Player, len(r.Players))
	for i, p := range r.Players {
		pc := *p
		if p.Progress != nil {
			pg := *p.Progress
			pg.Errors = append([]ErrorDetail(nil), p.Progress.Errors...)
			pc.Progress = &pg
		}
		if p.Result != nil {
			rs := *p.Result
			rs.Errors = append([]ErrorDetail(nil), p.Result.Errors...)
			pc.Result = &rs
		}
		c.Players[i] = &pc
	}
	return &c
}

// FindPlayer returns the player with the given id, or nil.
func (r *Room) FindPlayer(playerID string) *Player {
	for _, p := range r.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// Opponent returns the other player relative to playerID, or nil.
func (r *Room) Opponent(playerID string) *Player {
	for _, p := range r.Players {
		if p.ID != playerID {
			return p
		}
	}
	return nil
}
