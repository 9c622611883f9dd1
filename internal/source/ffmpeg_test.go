// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package source

import (
	"os"
	"strings"
	"testing"

	"github.com/evolution-gaming/viseek/internal/keyframe"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestParseIndexFrames(t *testing.T) {
	tests := map[string]struct {
		given string
		want  []keyframe.IndexFrame
	}{
		"typical listing": {
			given: "0.000000,I\n0.040000,P\n0.080000,P\n2.000000,I\n2.040000,B\n",
			want: []keyframe.IndexFrame{
				{Index: 0, Timestamp: 0},
				{Index: 3, Timestamp: 2.0},
			},
		},
		"no index frames": {
			given: "0.000000,P\n0.040000,P\n",
			want:  nil,
		},
		"missing timestamp still advances frame counter": {
			given: "N/A,I\n0.040000,P\n0.080000,I\n",
			want: []keyframe.IndexFrame{
				{Index: 2, Timestamp: 0.08},
			},
		},
		"blank lines are skipped": {
			given: "\n0.000000,I\n\n1.000000,I\n",
			want: []keyframe.IndexFrame{
				{Index: 0, Timestamp: 0},
				{Index: 1, Timestamp: 1.0},
			},
		},
		"malformed lines are skipped": {
			given: "garbage\n0.000000,I\n",
			want: []keyframe.IndexFrame{
				{Index: 1, Timestamp: 0},
			},
		},
		"empty input": {
			given: "",
			want:  nil,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := parseIndexFrames(strings.NewReader(tc.given))
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("parseIndexFrames() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewValidation(t *testing.T) {
	t.Run("missing input file", func(t *testing.T) {
		_, err := New("no/such/file.mp4", 25, Config{FfmpegPath: "/bin/true", FfprobePath: "/bin/true"})
		assert.Error(t, err)
	})

	t.Run("missing tool paths", func(t *testing.T) {
		f := t.TempDir() + "/in.mp4"
		writeFile(t, f)
		_, err := New(f, 25, Config{})
		assert.Error(t, err)
	})

	t.Run("defaults applied", func(t *testing.T) {
		f := t.TempDir() + "/in.mp4"
		writeFile(t, f)
		s, err := New(f, 0, Config{FfmpegPath: "/bin/true", FfprobePath: "/bin/true"})
		assert.NoError(t, err)
		assert.Equal(t, fallbackFPS, s.FPS())
		assert.Equal(t, DefaultAnalysisWidth, s.cfg.Width)
		assert.Equal(t, DefaultAnalysisHeight, s.cfg.Height)
	})
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("stub"), 0o644); err != nil {
		t.Fatalf("creating stub file: %v", err)
	}
}
