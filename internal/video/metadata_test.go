// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrameRate(t *testing.T) {
	tests := map[string]struct {
		given string
		want  float64
	}{
		"integer fraction": {given: "25/1", want: 25},
		"ntsc fraction":    {given: "30000/1001", want: 29.97002997002997},
		"plain decimal":    {given: "23.976", want: 23.976},
		"plain integer":    {given: "60", want: 60},
		"padded":           {given: " 50/1 ", want: 50},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseFrameRate(tc.given)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestParseFrameRateNegative(t *testing.T) {
	for _, given := range []string{"", "a/b", "25/", "/25", "25/0", "NaN/1x"} {
		t.Run("invalid "+given, func(t *testing.T) {
			_, err := ParseFrameRate(given)
			assert.Error(t, err)
		})
	}
}

func TestMetadataFPS(t *testing.T) {
	m := Metadata{FrameRate: "30000/1001"}
	fps, err := m.FPS()
	require.NoError(t, err)
	assert.InDelta(t, 29.97, fps, 0.01)
}
