package game

import "math/rand"

// SpeakingScheduler sequences speaking turns over the alive roster.
// The cursor only moves forward and stops at len(order).
type SpeakingScheduler struct {
	order  []string
	cursor int
}

// NewSpeakingScheduler shuffles a copy of the alive names into a speaking order.
func NewSpeakingScheduler(alive []string, rng *rand.Rand) *SpeakingScheduler {
	order := append([]string(nil), alive...)
	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return &SpeakingScheduler{order: order}
}

// Current returns the speaker holding the floor.
func (s *SpeakingScheduler) Current() (string, bool) {
	if s.cursor >= len(s.order) {
		return "", false
	}
	return s.order[s.cursor], true
}

// Advance ends the current turn. It reports whether turns remain.
func (s *SpeakingScheduler) Advance() bool {
	if s.cursor < len(s.order) {
		s.cursor++
	}
	return s.cursor < len(s.order)
}

// Done reports whether every speaker has had a turn.
func (s *SpeakingScheduler) Done() bool {
	return s.cursor >= len(s.order)
}

func (s *SpeakingScheduler) Order() []string {
	return append([]string(nil), s.order...)
}

func (s *SpeakingScheduler) Cursor() int {
	return s.cursor
}
