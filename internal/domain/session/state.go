// Package session holds the narrow per-session state shared between the host
// and the round pipeline.
package session

import "sync"

// RecognitionTimeOffset is added to the round start time to build the
// recognition marker.
const RecognitionTimeOffset int64 = 20

// State is the session-scoped status: the start time of the most recent round
// (written by the host) and the marker recording that round's recognition.
type State struct {
	mu             sync.RWMutex
	lastRoundStart int64 // unix seconds, 0 until the first round starts
	marker         int64
}

// New returns an empty session state.
func New() *State {
	return &State{}
}

// LastRoundStart returns the unix time of the most recent round start.
func (s *State) LastRoundStart() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRoundStart
}

// SetLastRoundStart records that a round started at unix seconds ts.
func (s *State) SetLastRoundStart(ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRoundStart = ts
}

// Marker returns the recognition marker.
func (s *State) Marker() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marker
}

// AlreadyRecognized reports whether the current round was already recognized.
func (s *State) AlreadyRecognized() bool {
	_, recognized := s.Current()
	return recognized
}

// Current returns the start time of the current round and whether that
// round was already recognized, read together.
func (s *State) Current() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRoundStart, s.marker == s.lastRoundStart+RecognitionTimeOffset
}

// MarkRecognized records that the round started at unix seconds start has
// been recognized. A round started since then stays open.
func (s *State) MarkRecognized(start int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marker = start + RecognitionTimeOffset
}

// Reset clears the state for a new session.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRoundStart = 0
	s.marker = 0
}
