// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Video metadata related constructs.

package video

import (
	"fmt"
	"strconv"
	"strings"
)

// Metadata type contains useful media stream metadata.
type Metadata struct {
	FormatName     string  `json:"format_name,omitempty"`
	CodecName      string  `json:"codec_name,omitempty"`
	FrameRate      string  `json:"r_frame_rate,omitempty"`
	Duration       float64 `json:"duration_s,omitempty"`
	Width          int     `json:"width,omitempty"`
	Height         int     `json:"height,omitempty"`
	BitRate        int     `json:"bit_rate,omitempty"`
	HasVideo       bool    `json:"has_video"`
	HasAudio       bool    `json:"has_audio"`
	AudioCodecName string  `json:"audio_codec_name,omitempty"`
}

// FPS converts ffprobe's fractional frame rate notation, e.g. "30000/1001",
// to frames per second.
func (m *Metadata) FPS() (float64, error) {
	return ParseFrameRate(m.FrameRate)
}

// ParseFrameRate parses a frame rate given as a fraction or a plain decimal.
func ParseFrameRate(s string) (float64, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return 0, fmt.Errorf("empty frame rate")
	}
	if num, den, found := strings.Cut(v, "/"); found {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("frame rate numerator %q: %w", num, err)
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil {
			return 0, fmt.Errorf("frame rate denominator %q: %w", den, err)
		}
		if d == 0 {
			return 0, fmt.Errorf("frame rate denominator is zero: %q", s)
		}
		return n / d, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("frame rate %q: %w", s, err)
	}
	return f, nil
}

// MetadataExtractor is the interface that wraps ExtractMetadata method.
type MetadataExtractor interface {
	ExtractMetadata(videoFile string) (Metadata, error)
}
