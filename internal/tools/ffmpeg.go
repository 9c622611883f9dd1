// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Ffmpeg family related tools.
package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"

	"github.com/evolution-gaming/viseek/internal/logging"
	"github.com/evolution-gaming/viseek/internal/video"
)

var (
	ffprobeCmd = "ffprobe"
	ffmpegCmd  = "ffmpeg"
)

// FfmpegPath will return path to ffmpeg binary and error if path is not found.
func FfmpegPath() (string, error) {
	// Look for executable in $PATH.
	p, err := exec.LookPath(ffmpegCmd)
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found: %w", err)
	}
	return p, nil
}

// FfprobePath will return path to ffprobe binary and error if path is not found.
func FfprobePath() (string, error) {
	p, err := exec.LookPath(ffprobeCmd)
	if err != nil {
		return "", fmt.Errorf("ffprobe not found: %w", err)
	}
	return p, nil
}

// FfprobeExtractMetadata will query video file metadata via ffprobe.
func FfprobeExtractMetadata(videoFile string) (video.Metadata, error) {
	var vmeta video.Metadata

	if _, err := os.Stat(videoFile); os.IsNotExist(err) {
		return vmeta, fmt.Errorf("FfprobeExtractMetadata() os.Stat: %w", err)
	}

	ffprobeArgs := []string{
		"-v", "quiet",
		"-threads", "0",
		"-of", "json",
		"-show_format",
		"-show_streams",
		videoFile,
	}
	ffprobePath, err := FfprobePath()
	if err != nil {
		return vmeta, err
	}
	cmd := exec.Command(ffprobePath, ffprobeArgs...)
	logging.Debugf("Running: %s\n", cmd)
	out, err := cmd.Output()
	if err != nil {
		return vmeta, fmt.Errorf("FfprobeExtractMetadata() exec error: %w", err)
	}

	// Temporary structures to unmarshal JSON from ffprobe output.
	type streamMeta struct {
		CodecType string  `json:"codec_type,omitempty"`
		CodecName string  `json:"codec_name,omitempty"`
		FrameRate string  `json:"r_frame_rate,omitempty"`
		Duration  float64 `json:"duration,omitempty,string"`
		Width     int     `json:"width,omitempty"`
		Height    int     `json:"height,omitempty"`
		BitRate   int     `json:"bit_rate,omitempty,string"`
	}
	type formatMeta struct {
		FormatName string  `json:"format_name,omitempty"`
		Duration   float64 `json:"duration,omitempty,string"`
		BitRate    int     `json:"bit_rate,omitempty,string"`
	}
	// Unmarshal metadata from both "streams" and "format" JSON objects.
	meta := &struct {
		Streams []streamMeta
		Format  formatMeta
	}{}
	if err := json.Unmarshal(out, &meta); err != nil {
		return vmeta, fmt.Errorf("FfprobeExtractMetadata() json.Unmarshal: %w", err)
	}

	vmeta.FormatName = meta.Format.FormatName
	vmeta.BitRate = meta.Format.BitRate
	// First video and first audio stream win, rest are ignored.
	for i := range meta.Streams {
		s := &meta.Streams[i]
		switch s.CodecType {
		case "video":
			if vmeta.HasVideo {
				continue
			}
			vmeta.HasVideo = true
			vmeta.CodecName = s.CodecName
			vmeta.FrameRate = s.FrameRate
			vmeta.Duration = s.Duration
			vmeta.Width = s.Width
			vmeta.Height = s.Height
			if vmeta.BitRate == 0 {
				vmeta.BitRate = s.BitRate
			}
		case "audio":
			if vmeta.HasAudio {
				continue
			}
			vmeta.HasAudio = true
			vmeta.AudioCodecName = s.CodecName
		}
	}
	if !vmeta.HasVideo {
		return vmeta, fmt.Errorf("no video stream in %s", videoFile)
	}
	// For mkv container video stream may not carry duration, in that case
	// Format duration is authoritative.
	vmeta.Duration = math.Max(vmeta.Duration, meta.Format.Duration)
	logging.Debugf("%s %+v", videoFile, vmeta)

	return vmeta, nil
}
