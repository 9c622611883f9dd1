// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path"
	"testing"

	"github.com/evolution-gaming/viseek/internal/keyframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	err := &AppError{msg: "boom", exitCode: 2}
	assert.Equal(t, "boom", err.Error())
	assert.Equal(t, 2, err.ExitCode())
}

func TestReportWriteJSON(t *testing.T) {
	score := 42.0
	r := report{
		Input: "video.mp4",
		Result: keyframe.Result{
			Method: keyframe.MethodDifference,
			Keyframes: []keyframe.Keyframe{
				{FrameIndex: 20, Timestamp: 2.0, Method: keyframe.MethodDifference, Score: &score},
			},
			Attempts: []keyframe.Attempt{
				{Method: keyframe.MethodDifference, Candidates: 39, Keyframes: 1},
			},
		},
	}

	var buf bytes.Buffer
	r.WriteJSON(&buf)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "video.mp4", decoded["Input"])
	assert.Equal(t, "difference", decoded["method"])
}

func TestIsNonEmptyDir(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, isNonEmptyDir(dir), "fresh temp dir should be empty")
	assert.False(t, isNonEmptyDir(path.Join(dir, "no-such-dir")))

	require.NoError(t, os.WriteFile(path.Join(dir, "f"), []byte("x"), 0o600))
	assert.True(t, isNonEmptyDir(dir))
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	f := path.Join(dir, "f")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o600))

	assert.True(t, fileExists(f))
	assert.False(t, fileExists(dir), "directory is not a regular file")
	assert.False(t, fileExists(path.Join(dir, "missing")))
}
