package article

import (
	"math/rand"
)

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// ParseDifficulty maps a client-supplied string to a known tier,
// defaulting to Medium for anything unrecognized.
func ParseDifficulty(s string) Difficulty {
	switch s {
	case string(Easy):
		return Easy
	case string(Hard):
		return Hard
	default:
		return Medium
	}
}

type Article struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Category   string     `json:"category"`
	Difficulty Difficulty `json:"difficulty"`
	WordCount  int        `json:"wordCount"`
}

// Selector picks battle articles from a fixed in-memory catalog.
type Selector struct {
	catalog map[Difficulty][]Article
}

func NewSelector() *Selector {
	return &Selector{catalog: defaultCatalog()}
}

// SelectArticle returns a random article for the given tier. An empty
// tier falls back to medium, then easy.
func (s *Selector) SelectArticle(difficulty Difficulty) *Article {
	pool := s.catalog[difficulty]
	if len(pool) == 0 {
		pool = s.catalog[Medium]
	}
	if len(pool) == 0 {
		pool = s.catalog[Easy]
	}
	if len(pool) == 0 {
		return nil
	}
	a := pool[rand.Intn(len(pool))]
	return &a
}

func defaultCatalog() map[Difficulty][]Article {
	return map[Difficulty][]Article{
		Easy: {
			{
				ID:         "battle-easy-1",
				Title:      "Simple Start",
				Content:    "The quick brown fox jumps over the lazy dog. This is a simple typing test.",
				Category:   "education",
				Difficulty: Easy,
				WordCount:  15,
			},
			{
				ID:         "battle-easy-2",
				Title:      "Daily Life",
				Content:    "Every morning I wake up early. I like to read books and drink coffee.",
				Category:   "daily",
				Difficulty: Easy,
				WordCount:  16,
			},
		},
		Medium: {
			{
				ID:         "battle-medium-1",
				Title:      "The Art of Learning",
				Content:    "Learning is a journey that never ends. Every day brings new opportunities to grow and improve. The key to success is consistency and dedication. Practice makes perfect, and persistence leads to mastery.",
				Category:   "education",
				Difficulty: Medium,
				WordCount:  35,
			},
			{
				ID:         "battle-medium-2",
				Title:      "Technology Today",
				Content:    "Modern technology has transformed our daily lives. From smartphones to artificial intelligence, innovation continues to reshape the world. Understanding these changes helps us adapt and thrive in the digital age.",
				Category:   "technology",
				Difficulty: Medium,
				WordCount:  34,
			},
			{
				ID:         "battle-medium-3",
				Title:      "The Power of Persistence",
				Content:    "Success is not final, failure is not fatal: it is the courage to continue that counts. Every great achievement was once considered impossible. The difference between the impossible and the possible lies in determination.",
				Category:   "motivation",
				Difficulty: Medium,
				WordCount:  35,
			},
		},
		Hard: {
			{
				ID:         "battle-hard-1",
				Title:      "Innovation in Technology",
				Content:    "Technology continues to evolve at an unprecedented pace. Innovation drives progress and shapes our future. Understanding emerging technologies is crucial for staying relevant in today's world. The intersection of artificial intelligence, machine learning, and data science creates endless possibilities for solving complex problems and improving human life.",
				Category:   "technology",
				Difficulty: Hard,
				WordCount:  51,
			},
			{
				ID:         "battle-hard-2",
				Title:      "The Future of Work",
				Content:    "The workplace is undergoing a dramatic transformation. Remote work, automation, and digital collaboration tools are reshaping how we think about productivity and work-life balance. Organizations must adapt to these changes by fostering flexibility, embracing technology, and prioritizing employee well-being to remain competitive in the modern economy.",
				Category:   "business",
				Difficulty: Hard,
				WordCount:  52,
			},
		},
	}
}
