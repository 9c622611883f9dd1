// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Candidate selection policy.

package keyframe

// selector turns an ordered stream of candidates into the bounded final
// keyframe list. Selection is greedy and first-seen-wins: candidates are
// never reordered and a rejected candidate is never reconsidered.
type selector struct {
	threshold    float64
	hasThreshold bool
	minInterval  float64
	maxCount     int
	lastTS       float64
	hasLast      bool
	keyframes    []Keyframe
}

func newSelector(cfg Config, m Method) *selector {
	return &selector{
		threshold:    cfg.threshold(m),
		hasThreshold: m.Scored(),
		minInterval:  cfg.MinInterval,
		maxCount:     cfg.MaxKeyframes,
	}
}

// offer considers a single candidate. The return value signals whether the
// caller should keep producing candidates: false means the cap is reached
// and the scorer should stop decoding entirely.
//
// Candidates are assumed to arrive with strictly increasing timestamps.
func (s *selector) offer(c Candidate) bool {
	if s.full() {
		return false
	}
	if s.hasThreshold && c.Score != nil && *c.Score < s.threshold {
		return true
	}
	if s.hasLast && c.Timestamp-s.lastTS < s.minInterval {
		return true
	}

	s.keyframes = append(s.keyframes, Keyframe{
		FrameIndex: c.FrameIndex,
		Timestamp:  c.Timestamp,
		Method:     c.Method,
		Score:      c.Score,
	})
	s.lastTS = c.Timestamp
	s.hasLast = true

	return !s.full()
}

func (s *selector) full() bool {
	return s.maxCount > 0 && len(s.keyframes) >= s.maxCount
}
