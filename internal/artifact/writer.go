// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package artifact materializes selected keyframes: image files extracted
// with ffmpeg, a JSON manifest and optional upload to object storage.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/evolution-gaming/viseek/internal/inputs"
	"github.com/evolution-gaming/viseek/internal/keyframe"
	"github.com/evolution-gaming/viseek/internal/logging"
	"github.com/google/shlex"
)

// DefaultFfmpegExtractTemplate is the command used to extract a single frame
// at given timestamp. Seek before input for fast keyframe-aligned seek.
var DefaultFfmpegExtractTemplate = "-hide_banner -loglevel error " +
	"-ss {{.Timestamp}} -i {{.InputFile}} -frames:v 1 -q:v 2 -y {{.OutputFile}}"

// Config exposes parameters for Writer creation.
type Config struct {
	FfmpegPath      string
	ExtractTemplate string
	OutputDir       string
	// ImageFormat is either "jpg" or "png".
	ImageFormat string
}

// Writer writes keyframe images into a flat output directory.
type Writer struct {
	cfg Config
}

// NewWriter validates configuration and creates a Writer. The output
// directory is created if missing.
func NewWriter(cfg Config) (*Writer, error) {
	format, err := NormalizeImageFormat(cfg.ImageFormat)
	if err != nil {
		return nil, err
	}
	cfg.ImageFormat = format

	if cfg.FfmpegPath == "" {
		return nil, fmt.Errorf("ffmpeg path is mandatory")
	}
	if cfg.ExtractTemplate == "" {
		cfg.ExtractTemplate = DefaultFfmpegExtractTemplate
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("output directory is mandatory")
	}
	if err := os.MkdirAll(cfg.OutputDir, os.FileMode(0o755)); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	return &Writer{cfg: cfg}, nil
}

// NormalizeImageFormat validates and canonicalizes an image format name.
func NormalizeImageFormat(format string) (string, error) {
	f := strings.ToLower(strings.TrimPrefix(format, "."))
	switch f {
	case "", "jpg", "jpeg":
		return "jpg", nil
	case "png":
		return "png", nil
	default:
		return "", fmt.Errorf("unsupported image format: %q", format)
	}
}

// ContentType returns the MIME type for a normalized image format.
func ContentType(format string) string {
	if format == "png" {
		return "image/png"
	}
	return "image/jpeg"
}

// FrameFileName builds the output image name for the seq-th selected
// keyframe, e.g. keyframe_0001_0000005000.jpg for a frame at 5s.
func FrameFileName(seq int, timestamp float64, format string) string {
	tsMillis := int64(math.Round(timestamp * 1000))
	return fmt.Sprintf("keyframe_%04d_%010d.%s", seq, tsMillis, format)
}

// WriteImages extracts one image per keyframe from videoFile and returns
// keyframes annotated with their local paths. Keyframe order is preserved.
func (w *Writer) WriteImages(ctx context.Context, videoFile string, keyframes []keyframe.Keyframe) ([]keyframe.Keyframe, error) {
	out := make([]keyframe.Keyframe, len(keyframes))
	copy(out, keyframes)

	for i := range out {
		name := FrameFileName(i+1, out[i].Timestamp, w.cfg.ImageFormat)
		outPath := filepath.Join(w.cfg.OutputDir, name)
		if err := w.extractOne(ctx, videoFile, out[i].Timestamp, outPath); err != nil {
			return nil, fmt.Errorf("extracting frame at %fs: %w", out[i].Timestamp, err)
		}
		out[i].LocalPath = outPath
	}

	return out, nil
}

// extractOne runs the frame extraction command for a single timestamp.
func (w *Writer) extractOne(ctx context.Context, videoFile string, timestamp float64, outPath string) error {
	// Template requires a struct with exported fields.
	tplContext := struct {
		InputFile  string
		OutputFile string
		Timestamp  string
	}{
		InputFile:  videoFile,
		OutputFile: outPath,
		Timestamp:  fmt.Sprintf("%.6f", timestamp),
	}

	var cmdline strings.Builder
	tpl, err := template.New("ffmpeg-extract").Parse(w.cfg.ExtractTemplate)
	if err != nil {
		return fmt.Errorf("parsing extract template: %w", err)
	}
	if err := tpl.Execute(&cmdline, tplContext); err != nil {
		return fmt.Errorf("executing extract template: %w", err)
	}
	ffmpegArgs, err := shlex.Split(cmdline.String())
	if err != nil {
		return fmt.Errorf("preparing extract command: %w", err)
	}

	cmd := exec.CommandContext(ctx, w.cfg.FfmpegPath, ffmpegArgs...) //#nosec G204
	logging.Debugf("Running: %s\n", cmd)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg frame extraction: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// UploadImages uploads keyframe images to an s3://bucket/prefix/ and returns
// keyframes annotated with their S3 URLs.
func (w *Writer) UploadImages(ctx context.Context, keyframes []keyframe.Keyframe, s3Prefix string) ([]keyframe.Keyframe, error) {
	out := make([]keyframe.Keyframe, len(keyframes))
	copy(out, keyframes)

	contentType := ContentType(w.cfg.ImageFormat)
	for i := range out {
		if out[i].LocalPath == "" {
			continue
		}
		destURL := inputs.JoinS3URL(s3Prefix, filepath.Base(out[i].LocalPath))
		if err := inputs.UploadS3(ctx, out[i].LocalPath, destURL, contentType); err != nil {
			return nil, err
		}
		out[i].S3URL = destURL
		logging.Infof("Uploaded %s", destURL)
	}

	return out, nil
}

// WriteManifest writes the keyframe list as indented JSON. An empty
// selection is a JSON array, not null.
func WriteManifest(w io.Writer, keyframes []keyframe.Keyframe) error {
	if keyframes == nil {
		keyframes = []keyframe.Keyframe{}
	}
	doc, err := json.MarshalIndent(keyframes, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if _, err := w.Write(doc); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// SaveManifest writes the manifest to a local path or, for an s3:// URL,
// uploads it via a temporary file.
func SaveManifest(ctx context.Context, dest string, keyframes []keyframe.Keyframe) error {
	if !inputs.IsS3URL(dest) {
		f, err := os.Create(dest)
		if err != nil {
			return fmt.Errorf("creating manifest file: %w", err)
		}
		defer f.Close()
		return WriteManifest(f, keyframes)
	}

	tmpDir, err := os.MkdirTemp("", "viseek-manifest-")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	tmpFile := filepath.Join(tmpDir, "keyframes_manifest.json")
	f, err := os.Create(tmpFile)
	if err != nil {
		return fmt.Errorf("creating manifest file: %w", err)
	}
	if err := WriteManifest(f, keyframes); err != nil {
		f.Close()
		return err
	}
	f.Close()

	return inputs.UploadS3(ctx, tmpFile, dest, "application/json")
}
