// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Tests for plotting related functionality.

package analysis

import (
	"math"
	"os"
	"path"
	"testing"

	"github.com/evolution-gaming/viseek/internal/keyframe"

	"github.com/google/go-cmp/cmp"
)

// getScoreTrace fixture provides a synthetic score trace with a pronounced
// spike in the middle.
func getScoreTrace() []keyframe.FrameScore {
	trace := make([]keyframe.FrameScore, 100)
	for i := range trace {
		score := 2 + math.Sin(float64(i)/10)
		if i == 50 {
			score = 25
		}
		trace[i] = keyframe.FrameScore{
			FrameIndex: i,
			Timestamp:  float64(i) / 25,
			Score:      score,
		}
	}
	return trace
}

func traceValues(trace []keyframe.FrameScore) []float64 {
	values := make([]float64, len(trace))
	for i, v := range trace {
		values[i] = v.Score
	}
	return values
}

func Test_CreateScorePlot(t *testing.T) {
	trace := getScoreTrace()
	name := "score"

	t.Run("Creating score plot should succeed", func(t *testing.T) {
		got, err := CreateScorePlot(trace, 12, name)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if diff := cmp.Diff(name, got.Y.Label.Text); diff != "" {
			t.Errorf("Plot label mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Empty trace should still produce a plot", func(t *testing.T) {
		_, err := CreateScorePlot(nil, 12, name)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	})
}

func Test_CreateHistogramPlot(t *testing.T) {
	values := traceValues(getScoreTrace())
	name := "score"

	t.Run("Creating histogram plot should succeed", func(t *testing.T) {
		got, err := CreateHistogramPlot(values, name)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if diff := cmp.Diff(name, got.X.Label.Text); diff != "" {
			t.Errorf("Plot label mismatch (-want +got):\n%s", diff)
		}
	})
}

func Test_CreateCDFPlot(t *testing.T) {
	values := traceValues(getScoreTrace())
	name := "score"

	t.Run("Creating CDF plot should succeed", func(t *testing.T) {
		got, err := CreateCDFPlot(values, name)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if diff := cmp.Diff(name, got.X.Label.Text); diff != "" {
			t.Errorf("Plot label mismatch (-want +got):\n%s", diff)
		}
	})
}

func Test_MultiPlotScores(t *testing.T) {
	trace := getScoreTrace()
	outDir := t.TempDir()

	t.Run("Creating score multi-plot should succeed", func(t *testing.T) {
		outFile := path.Join(outDir, "score.png")
		err := MultiPlotScores(trace, 12, "Test plot title", outFile)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		fi, err := os.Stat(outFile)
		if err != nil {
			t.Fatalf("Unexpected error from os.Stat: %v", err)
		}

		// We can't realistically check generated image, instead will do some
		// reasonable check on file properties.
		if fi.Size() <= 10 {
			t.Errorf("Resulting plot file size too small: %+v", fi)
		}
	})
}
