// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package artifact

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/evolution-gaming/viseek/internal/keyframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeImageFormat(t *testing.T) {
	tests := map[string]struct {
		given string
		want  string
	}{
		"jpg":          {given: "jpg", want: "jpg"},
		"jpeg alias":   {given: "jpeg", want: "jpg"},
		"png":          {given: "png", want: "png"},
		"uppercase":    {given: "PNG", want: "png"},
		"dot prefixed": {given: ".jpg", want: "jpg"},
		"empty means jpg": {given: "", want: "jpg"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := NormalizeImageFormat(tc.given)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("unsupported format", func(t *testing.T) {
		_, err := NormalizeImageFormat("gif")
		assert.Error(t, err)
	})
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentType("jpg"))
	assert.Equal(t, "image/png", ContentType("png"))
}

func TestFrameFileName(t *testing.T) {
	tests := map[string]struct {
		seq    int
		ts     float64
		format string
		want   string
	}{
		"five seconds":     {seq: 1, ts: 5.0, format: "jpg", want: "keyframe_0001_0000005000.jpg"},
		"zero timestamp":   {seq: 2, ts: 0, format: "jpg", want: "keyframe_0002_0000000000.jpg"},
		"rounded to ms":    {seq: 3, ts: 1.23456, format: "png", want: "keyframe_0003_0000001235.png"},
		"large sequence":   {seq: 1234, ts: 3599.5, format: "jpg", want: "keyframe_1234_0003599500.jpg"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, FrameFileName(tc.seq, tc.ts, tc.format))
		})
	}
}

func TestNewWriterValidation(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		w, err := NewWriter(Config{
			FfmpegPath:  "/bin/true",
			OutputDir:   t.TempDir(),
			ImageFormat: "jpeg",
		})
		require.NoError(t, err)
		assert.Equal(t, "jpg", w.cfg.ImageFormat)
		assert.Equal(t, DefaultFfmpegExtractTemplate, w.cfg.ExtractTemplate)
	})

	t.Run("missing ffmpeg path", func(t *testing.T) {
		_, err := NewWriter(Config{OutputDir: t.TempDir()})
		assert.Error(t, err)
	})

	t.Run("missing output dir", func(t *testing.T) {
		_, err := NewWriter(Config{FfmpegPath: "/bin/true"})
		assert.Error(t, err)
	})

	t.Run("bad image format", func(t *testing.T) {
		_, err := NewWriter(Config{FfmpegPath: "/bin/true", OutputDir: t.TempDir(), ImageFormat: "bmp"})
		assert.Error(t, err)
	})
}

func TestWriteManifest(t *testing.T) {
	score := 23.5
	keyframes := []keyframe.Keyframe{
		{FrameIndex: 0, Timestamp: 0, Method: keyframe.MethodIFrame, LocalPath: "out/keyframe_0001_0000000000.jpg"},
		{FrameIndex: 50, Timestamp: 2.0, Method: keyframe.MethodIFrame, Score: &score},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteManifest(&buf, keyframes))

	// Manifest is a JSON array in selection order, score null when the
	// method carries no score.
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)

	assert.Equal(t, float64(0), decoded[0]["frame_index"])
	assert.Equal(t, "I_frame", decoded[0]["method"])
	assert.Nil(t, decoded[0]["score"])
	assert.Equal(t, "out/keyframe_0001_0000000000.jpg", decoded[0]["local_path"])

	assert.Equal(t, float64(50), decoded[1]["frame_index"])
	assert.Equal(t, 23.5, decoded[1]["score"])
	// Empty optional fields are omitted.
	_, hasPath := decoded[1]["local_path"]
	assert.False(t, hasPath)
	_, hasS3 := decoded[1]["s3_url"]
	assert.False(t, hasS3)
}

func TestWriteManifestEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteManifest(&buf, nil))

	var decoded []any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Empty(t, decoded)
}
