// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Method orchestration: try detection methods in order, first non-empty
// selection wins.

package keyframe

import (
	"context"
	"errors"
	"fmt"

	"github.com/evolution-gaming/viseek/internal/logging"
)

// runState enumerates orchestration states of a single detection run.
type runState int

const (
	statePending runState = iota
	stateScoring
	stateResolved
	stateExhausted
)

// Attempt records the outcome of trying a single method within a run.
type Attempt struct {
	Method     Method `json:"method" csv:"method"`
	Candidates int    `json:"candidates" csv:"candidates"`
	Keyframes  int    `json:"keyframes" csv:"keyframes"`
	Error      string `json:"error,omitempty" csv:"error"`
}

// Result is the outcome of a detection run. An exhausted run has empty
// Keyframes and empty Method, it is a valid terminal outcome and not an
// error.
type Result struct {
	// Method that won the run. Methods are never mixed within one run.
	Method Method `json:"method,omitempty"`
	// Keyframes ordered by strictly increasing timestamp.
	Keyframes []Keyframe `json:"keyframes"`
	// Attempts is the per-method trail in the order methods were tried.
	Attempts []Attempt `json:"attempts,omitempty"`
}

// Detector runs the scorer-selector pipeline over a frame source for each
// configured method until one yields keyframes.
//
// A Detector holds no cross-run state: it is safe to run concurrent
// detections for independent inputs, each with its own Detector and
// FrameSource.
type Detector struct {
	src FrameSource
	cfg Config
}

// NewDetector will create a Detector for given source and configuration.
func NewDetector(src FrameSource, cfg Config) (*Detector, error) {
	if src == nil {
		return nil, errors.New("nil frame source")
	}
	if err := cfg.Verify(); err != nil {
		return nil, fmt.Errorf("detection config: %w", err)
	}
	return &Detector{src: src, cfg: cfg}, nil
}

// Detect executes one detection run.
//
// Methods are tried strictly sequentially. A method whose scorer fails with
// anything but cancellation counts as an empty result for that method and
// the run falls through to the next one. Context cancellation aborts the run
// as a whole with the context error, distinguishable from a legitimate empty
// result.
func (d *Detector) Detect(ctx context.Context) (Result, error) {
	var res Result
	state := statePending
	next := 0

	for {
		switch state {
		case statePending:
			if next >= len(d.cfg.Methods) {
				state = stateExhausted
				continue
			}
			state = stateScoring
		case stateScoring:
			m := d.cfg.Methods[next]
			next++

			keyframes, seen, err := d.runMethod(ctx, m)
			attempt := Attempt{Method: m, Candidates: seen, Keyframes: len(keyframes)}
			if err != nil {
				if ctx.Err() != nil {
					// Incomplete run, not an empty one.
					return Result{Attempts: res.Attempts}, ctx.Err()
				}
				logging.Debugf("Method %s failed, trying next: %s", m, err)
				attempt.Error = err.Error()
				keyframes = nil
			}
			res.Attempts = append(res.Attempts, attempt)

			if len(keyframes) > 0 {
				res.Method = m
				res.Keyframes = keyframes
				state = stateResolved
			} else {
				state = statePending
			}
		case stateResolved:
			logging.Debugf("Resolved with method %s: %d keyframes", res.Method, len(res.Keyframes))
			return res, nil
		case stateExhausted:
			logging.Debug("All methods exhausted, no keyframes found")
			return res, nil
		}
	}
}

// runMethod runs a single method's scorer-selector pipeline to completion.
// The decode session is scoped to this call: scorers release it on normal
// exit, on the selector's cap short-circuit and on failure.
func (d *Detector) runMethod(ctx context.Context, m Method) ([]Keyframe, int, error) {
	sc, err := scorerFor(m, d.cfg.FlowStep)
	if err != nil {
		return nil, 0, err
	}

	sel := newSelector(d.cfg, m)
	seen := 0
	err = sc.Scan(ctx, d.src, func(c Candidate) bool {
		seen++
		return sel.offer(c)
	})
	if err != nil {
		return nil, seen, err
	}
	return sel.keyframes, seen, nil
}

// scorerFor selects scorer implementation by method enum.
func scorerFor(m Method, flowStep int) (scorer, error) {
	switch m {
	case MethodIFrame:
		return iframeScorer{}, nil
	case MethodDifference:
		return diffScorer{}, nil
	case MethodHistogram:
		return histScorer{}, nil
	case MethodOpticalFlow:
		return flowScorer{step: flowStep}, nil
	default:
		return nil, fmt.Errorf("unsupported method: %q", m)
	}
}
