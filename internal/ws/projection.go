package ws

import (
	"github.com/kaiwen7/typebattle-backend/internal/article"
	"github.com/kaiwen7/typebattle-backend/internal/room"
)

// RoomView is the client-facing shape of a room, filtered per viewer.
type RoomView struct {
	ID         string             `json:"id"`
	State      room.State         `json:"state"`
	Difficulty article.Difficulty `json:"difficulty"`
	Players    []PlayerView       `json:"players"`
	Article    *ArticleView       `json:"article"`
	StartedAt  int64              `json:"startedAt,omitempty"`
	FinishedAt int64              `json:"finishedAt,omitempty"`
	Winner     string             `json:"winner,omitempty"`
}

type PlayerView struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Ready    bool           `json:"ready"`
	Progress *room.Progress `json:"progress"`
	Result   *room.Result   `json:"result"`
}

type ArticleView struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	WordCount int    `json:"wordCount"`
}

// ProjectRoom builds the view of a room for one recipient. The viewer
// sees their own progress in full; every other player's progress is
// sanitized so live mistake positions never cross the wire mid-game.
// Finished results are passed through untouched for everyone; the
// post-game comparison screen needs them.
func ProjectRoom(r *room.Room, viewerID string) *RoomView {
	if r == nil {
		return nil
	}

	players := make([]PlayerView, len(r.Players))
	for i, p := range r.Players {
		progress := p.Progress
		if p.ID != viewerID {
			progress = p.Progress.Sanitized()
		}
		players[i] = PlayerView{
			ID:       p.ID,
			Name:     p.Name,
			Ready:    p.Ready,
			Progress: progress,
			Result:   p.Result,
		}
	}

	return &RoomView{
		ID:         r.ID,
		State:      r.State,
		Difficulty: r.Difficulty,
		Players:    players,
		Article:    projectArticle(r.Article),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Winner:     r.Winner,
	}
}

func projectArticle(a *article.Article) *ArticleView {
	if a == nil {
		return nil
	}
	return &ArticleView{
		ID:        a.ID,
		Title:     a.Title,
		Content:   a.Content,
		WordCount: a.WordCount,
	}
}
