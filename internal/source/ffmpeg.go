// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package source contains ffmpeg/ffprobe backed implementation of the
// keyframe.FrameSource contract.
//
// Index frame positions come from ffprobe's per-frame listing. Pixel decode
// is a single ffmpeg process streaming 8-bit luma planes over a pipe, with
// frames downscaled to a fixed analysis raster so the pipe framing is exactly
// width*height bytes per frame.
package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/evolution-gaming/viseek/internal/keyframe"
	"github.com/evolution-gaming/viseek/internal/logging"
	"github.com/evolution-gaming/viseek/internal/lw"
)

// Analysis raster defaults. Scores in use are per-pixel means, so they are
// insensitive to the exact raster size, while a fixed raster keeps decode
// cost bounded for high resolution sources.
const (
	DefaultAnalysisWidth  = 320
	DefaultAnalysisHeight = 180
)

// Cap on decoder stderr we are willing to buffer.
const stderrLimit = 1 * 1024 * 1024

// Fallback frame rate when the container reports none, matches ffmpeg's own
// assumption for raw streams.
const fallbackFPS = 30.0

// Config holds ffmpeg frame source parameters.
type Config struct {
	FfmpegPath  string
	FfprobePath string
	// Width and Height of the analysis raster for pixel decode.
	Width  int
	Height int
}

// FfmpegSource implements keyframe.FrameSource for a local video file.
type FfmpegSource struct {
	inputFile string
	cfg       Config
	fps       float64
}

// New creates an FfmpegSource for given local file. The frame rate is used
// to derive frame timestamps and normally comes from container metadata.
func New(inputFile string, fps float64, cfg Config) (*FfmpegSource, error) {
	if _, err := os.Stat(inputFile); err != nil {
		return nil, fmt.Errorf("input file: %w", err)
	}
	if cfg.FfmpegPath == "" || cfg.FfprobePath == "" {
		return nil, errors.New("ffmpeg and ffprobe paths are mandatory")
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultAnalysisWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultAnalysisHeight
	}
	if fps <= 0 {
		logging.Debugf("No frame rate reported for %s, assuming %v fps", inputFile, fallbackFPS)
		fps = fallbackFPS
	}
	return &FfmpegSource{inputFile: inputFile, cfg: cfg, fps: fps}, nil
}

// FPS returns the frame rate used for timestamp derivation.
func (s *FfmpegSource) FPS() float64 {
	return s.fps
}

// ProbeIndexFrames implements keyframe.FrameSource.
func (s *FfmpegSource) ProbeIndexFrames(ctx context.Context) ([]keyframe.IndexFrame, error) {
	ffprobeArgs := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "frame=best_effort_timestamp_time,pict_type",
		"-of", "csv=p=0",
		s.inputFile,
	}
	cmd := exec.CommandContext(ctx, s.cfg.FfprobePath, ffprobeArgs...)
	logging.Debugf("Running: %s\n", cmd)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe frame listing: %v: %w", err, keyframe.ErrSource)
	}

	return parseIndexFrames(bytes.NewReader(out)), nil
}

// parseIndexFrames extracts I-frame positions from ffprobe's CSV frame
// listing. Each line describes one video frame as
// "<best_effort_timestamp_time>,<pict_type>". Lines with missing timestamps
// still advance the frame counter.
func parseIndexFrames(r io.Reader) []keyframe.IndexFrame {
	var frames []keyframe.IndexFrame
	frameNo := -1

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		frameNo++

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			continue
		}
		tsRaw := strings.TrimSpace(parts[0])
		pict := strings.TrimSpace(parts[1])
		if pict != "I" || tsRaw == "" || tsRaw == "N/A" {
			continue
		}
		ts, err := strconv.ParseFloat(tsRaw, 64)
		if err != nil {
			continue
		}
		frames = append(frames, keyframe.IndexFrame{Index: frameNo, Timestamp: ts})
	}

	return frames
}

// Decode implements keyframe.FrameSource.
func (s *FfmpegSource) Decode(ctx context.Context, step int) (keyframe.FrameReader, error) {
	if step < 1 {
		step = 1
	}

	// Luma-only rawvideo pipe, subsampled to every step-th frame and scaled
	// to the analysis raster. The escaped comma keeps mod()'s arguments from
	// being treated as a filter chain separator.
	vf := fmt.Sprintf("select=not(mod(n\\,%d)),scale=%d:%d", step, s.cfg.Width, s.cfg.Height)
	ffmpegArgs := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-i", s.inputFile,
		"-map", "0:v:0",
		"-vf", vf,
		"-vsync", "vfr",
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"-",
	}

	cmd := exec.CommandContext(ctx, s.cfg.FfmpegPath, ffmpegArgs...) //#nosec G204
	logging.Debugf("Running: %s\n", cmd)

	r := &frameReader{
		cmd:    cmd,
		width:  s.cfg.Width,
		height: s.cfg.Height,
		step:   step,
		fps:    s.fps,
	}
	// Explicitly limit stderr buffer to certain size to protect ourselves
	// from some runaway process flooding output.
	cmd.Stderr = lw.LimitWriter(&r.stderr, stderrLimit)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("decode stdout pipe: %w", err)
	}
	r.stdout = stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting decoder: %v: %w", err, keyframe.ErrSource)
	}

	return r, nil
}

// frameReader is a forward-only reader over the decoder's rawvideo pipe.
type frameReader struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer

	width  int
	height int
	step   int
	fps    float64

	n       int
	done    bool
	waited  bool
	waitErr error
}

// Next implements keyframe.FrameReader. It returns io.EOF once the decoder
// exits cleanly after the last frame.
func (r *frameReader) Next() (*keyframe.Frame, error) {
	if r.done {
		return nil, io.EOF
	}

	pix := make([]byte, r.width*r.height)
	_, err := io.ReadFull(r.stdout, pix)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		r.done = true
		if werr := r.wait(); werr != nil {
			return nil, werr
		}
		return nil, io.EOF
	default:
		// A partial frame means the decode stream desynchronized.
		r.done = true
		_ = r.wait()
		return nil, fmt.Errorf("decode stream desynchronized: %v: %w", err, keyframe.ErrSource)
	}

	idx := r.n * r.step
	r.n++
	return &keyframe.Frame{
		Index:     idx,
		Timestamp: float64(idx) / r.fps,
		Width:     r.width,
		Height:    r.height,
		Pix:       pix,
	}, nil
}

// wait reaps the decoder process exactly once.
func (r *frameReader) wait() error {
	if r.waited {
		return r.waitErr
	}
	r.waited = true
	if err := r.cmd.Wait(); err != nil {
		r.waitErr = fmt.Errorf("ffmpeg decode: %v: %s: %w",
			err, strings.TrimSpace(r.stderr.String()), keyframe.ErrSource)
	}
	return r.waitErr
}

// Close implements keyframe.FrameReader. Closing mid-stream, e.g. on the
// selection cap short-circuit or on cancellation, kills the decoder.
func (r *frameReader) Close() error {
	if r.done && r.waited {
		return nil
	}
	r.done = true
	if !r.waited {
		_ = r.cmd.Process.Kill()
		r.waited = true
		_ = r.cmd.Wait()
	}
	return nil
}
