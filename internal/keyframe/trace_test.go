// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package keyframe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreTrace(t *testing.T) {
	src := &fakeSource{frames: hardCutFrames(10, 5, 10)}

	trace, err := ScoreTrace(context.Background(), src, MethodDifference, 1)
	require.NoError(t, err)

	// One score per frame pair, no selection applied.
	require.Len(t, trace, 9)
	for i, v := range trace {
		assert.Equal(t, i+1, v.FrameIndex)
		if v.FrameIndex == 5 {
			assert.InDelta(t, 190.0, v.Score, 1e-9)
		} else {
			assert.Equal(t, 0.0, v.Score)
		}
	}
}

func TestScoreTraceUnscoredMethod(t *testing.T) {
	src := &fakeSource{indexFrames: []IndexFrame{{Index: 0, Timestamp: 0}}}
	_, err := ScoreTrace(context.Background(), src, MethodIFrame, 1)
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	t.Run("empty trace", func(t *testing.T) {
		assert.Equal(t, TraceStats{}, Stats(nil))
	})

	t.Run("aggregates", func(t *testing.T) {
		trace := []FrameScore{
			{FrameIndex: 1, Timestamp: 0.1, Score: 1},
			{FrameIndex: 2, Timestamp: 0.2, Score: 2},
			{FrameIndex: 3, Timestamp: 0.3, Score: 3},
		}
		got := Stats(trace)
		assert.Equal(t, 1.0, got.Min)
		assert.Equal(t, 3.0, got.Max)
		assert.InDelta(t, 2.0, got.Mean, 1e-9)
		assert.InDelta(t, 1.0, got.StDev, 1e-9)
		assert.Equal(t, 3, got.Frames)
	})
}
