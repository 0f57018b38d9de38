package services

import (
	"strings"
	"sync"
)

// PhraseMatcher detects answers that flag missing information. Matching is a
// case-insensitive substring check against a configured phrase set: no
// scoring, deterministic and total. The set is hot-swappable so the phrase
// list can be tuned without touching orchestration logic.
type PhraseMatcher struct {
	mu      sync.RWMutex
	phrases []string // stored lowercased
}

// NewPhraseMatcher creates a matcher over the given phrase set.
func NewPhraseMatcher(phrases []string) *PhraseMatcher {
	m := &PhraseMatcher{}
	m.SetPhrases(phrases)
	return m
}

// SetPhrases replaces the phrase set.
func (m *PhraseMatcher) SetPhrases(phrases []string) {
	lowered := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			lowered = append(lowered, p)
		}
	}

	m.mu.Lock()
	m.phrases = lowered
	m.mu.Unlock()
}

// LooksIncomplete reports whether the answer contains any insufficiency
// phrase.
func (m *PhraseMatcher) LooksIncomplete(answer string) bool {
	lower := strings.ToLower(answer)

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, phrase := range m.phrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
