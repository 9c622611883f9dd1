// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Raw per-frame score traces, used for score plotting and threshold tuning.

package keyframe

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FrameScore is a single point of a method's score trace.
type FrameScore struct {
	FrameIndex int     `json:"frame_index" csv:"frame_index"`
	Timestamp  float64 `json:"timestamp_s" csv:"timestamp_s"`
	Score      float64 `json:"score" csv:"score"`
}

// TraceStats aggregates a score trace.
type TraceStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StDev  float64 `json:"st_dev"`
	Frames int     `json:"frames"`
}

// ScoreTrace produces the full score series of a single pixel-based method
// with no selection applied. Useful for picking thresholds: plot the trace
// and read off where real content boundaries sit.
func ScoreTrace(ctx context.Context, src FrameSource, m Method, flowStep int) ([]FrameScore, error) {
	if !m.Scored() {
		return nil, fmt.Errorf("method %s produces no scores", m)
	}
	sc, err := scorerFor(m, flowStep)
	if err != nil {
		return nil, err
	}

	var trace []FrameScore
	err = sc.Scan(ctx, src, func(c Candidate) bool {
		if c.Score != nil {
			trace = append(trace, FrameScore{
				FrameIndex: c.FrameIndex,
				Timestamp:  c.Timestamp,
				Score:      *c.Score,
			})
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return trace, nil
}

// Stats computes aggregates over a score trace.
func Stats(trace []FrameScore) TraceStats {
	if len(trace) == 0 {
		return TraceStats{}
	}
	values := make([]float64, len(trace))
	for i, v := range trace {
		values[i] = v.Score
	}
	mean, stdev := stat.MeanStdDev(values, nil)
	return TraceStats{
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Mean:   mean,
		StDev:  stdev,
		Frames: len(values),
	}
}
