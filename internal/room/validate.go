package room

import (
	"log"

	"github.com/kaiwen7/typebattle-backend/internal/article"
)

const (
	// maxBacktrack tolerates small corrections but not rewinding.
	maxBacktrack = 10
	// suspiciousWPM is an observability threshold, not a hard limit.
	suspiciousWPM = 200
)

// ValidateProgress sanity-checks a progress sample against the previous
// one. It is a best-effort heuristic, not a security boundary. The
// first sample always passes.
func ValidateProgress(art *article.Article, progress, previous *Progress) bool {
	if previous == nil {
		return true
	}

	// Time must not regress. The client timestamp is only used here;
	// the store stamps its own time on write.
	if progress.Timestamp < previous.Timestamp {
		return false
	}

	if progress.CurrentIndex-previous.CurrentIndex < -maxBacktrack {
		return false
	}

	if progress.CurrentIndex > len(art.Content) {
		return false
	}

	if progress.WPM > suspiciousWPM {
		log.Printf("Suspicious WPM detected: %d", progress.WPM)
	}

	return true
}
