// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// viseek tool's extract subcommand implementation.

package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strconv"
	"syscall"

	"github.com/evolution-gaming/viseek/internal/artifact"
	"github.com/evolution-gaming/viseek/internal/inputs"
	"github.com/evolution-gaming/viseek/internal/keyframe"
	"github.com/evolution-gaming/viseek/internal/logging"
	"github.com/evolution-gaming/viseek/internal/source"
	"github.com/evolution-gaming/viseek/internal/tools"
	"github.com/jszwec/csvutil"
)

// CreateExtractCommand will create instance of ExtractApp.
func CreateExtractCommand() *ExtractApp {
	longHelp := `Subcommand "extract" will detect keyframes in given video and extract
them as images into the output directory, along with a JSON manifest and
per-method attempts report. Detection methods are tried in given order,
first method that yields keyframes wins.

Input can be a local file, http(s) URL or s3://bucket/key URL.

Examples:

  viseek extract -i video.mp4 -out-dir path/to/output/dir
  viseek extract -i s3://bucket/video.mp4 -out-dir out -method difference,histogram
  viseek extract -i video.mp4 -out-dir out -s3-output-prefix s3://bucket/keyframes`

	app := &ExtractApp{
		fs: flag.NewFlagSet("extract", flag.ContinueOnError),
		gf: globalFlags{},
	}
	app.gf.Register(app.fs)
	app.fs.StringVar(&app.flInput, "i", "", "Input video: local file, http(s) or s3:// URL (mandatory)")
	app.fs.StringVar(&app.flOutDir, "out-dir", "", "Output directory to store results (mandatory)")
	app.fs.StringVar(&app.flMethods, "method", "I_frame,difference", "Comma-separated detection methods to try in order")
	app.fs.StringVar(&app.flThreshold, "threshold", "", "Score threshold override (default is per-method)")
	app.fs.IntVar(&app.flMaxKeyframes, "max-keyframes", keyframe.DefaultMaxKeyframes, "Max number of keyframes to select, 0 disables the cap")
	app.fs.Float64Var(&app.flMinInterval, "min-interval", keyframe.DefaultMinInterval, "Min seconds between selected keyframes")
	app.fs.IntVar(&app.flFlowStep, "flow-step", keyframe.DefaultFlowStep, "Frame sampling step for optical_flow method")
	app.fs.StringVar(&app.flFormat, "format", "", "Keyframe image format: jpg or png (default from configuration)")
	app.fs.StringVar(&app.flS3Prefix, "s3-output-prefix", "", "Optional s3://bucket/prefix to upload images and manifest to")
	app.fs.Usage = func() {
		printSubCommandUsage(longHelp, app.fs)
	}

	return app
}

// ExtractApp is subcommand application context that implements Commander interface.
type ExtractApp struct {
	// Configuration object
	cfg *Config
	// FlagSet instance
	fs *flag.FlagSet
	// Input video spec
	flInput string
	// Output directory for extraction results
	flOutDir string
	// Detection methods in fallback order
	flMethods string
	// Score threshold override
	flThreshold string
	// Selection cap
	flMaxKeyframes int
	// Min seconds between keyframes
	flMinInterval float64
	// Optical flow sampling step
	flFlowStep int
	// Keyframe image format
	flFormat string
	// Optional S3 upload prefix
	flS3Prefix string
	// Global flags
	gf globalFlags
	// Detection configuration assembled from flags
	dCfg keyframe.Config
}

// Make sure ExtractApp implements Commander interface.
var _ Commander = (*ExtractApp)(nil)

// init will do ExtractApp state initialization.
func (a *ExtractApp) init(args []string) error {
	if err := a.fs.Parse(args); err != nil {
		return &AppError{
			exitCode: 2,
			msg:      fmt.Sprintf("%s usage error", a.fs.Name()),
		}
	}

	if a.gf.Debug {
		logging.EnableDebugLogger()
	}

	// Input spec is mandatory.
	if a.flInput == "" {
		a.fs.Usage()
		return &AppError{
			exitCode: 2,
			msg:      "mandatory option -i is missing",
		}
	}

	// Output dir is mandatory.
	if a.flOutDir == "" {
		a.fs.Usage()
		return &AppError{
			exitCode: 2,
			msg:      "mandatory option -out-dir is missing",
		}
	}

	// Do not write over existing output directory.
	if isNonEmptyDir(a.flOutDir) {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("non-empty out dir: %s", a.flOutDir)}
	}

	methods, err := keyframe.ParseMethodList(a.flMethods)
	if err != nil {
		a.fs.Usage()
		return &AppError{exitCode: 2, msg: err.Error()}
	}
	a.dCfg = keyframe.Config{
		Methods:      methods,
		MaxKeyframes: a.flMaxKeyframes,
		MinInterval:  a.flMinInterval,
		FlowStep:     a.flFlowStep,
	}
	if a.flThreshold != "" {
		thr, err := strconv.ParseFloat(a.flThreshold, 64)
		if err != nil {
			return &AppError{exitCode: 2, msg: fmt.Sprintf("invalid -threshold value: %s", a.flThreshold)}
		}
		a.dCfg.Threshold = &thr
	}
	if err := a.dCfg.Verify(); err != nil {
		return &AppError{exitCode: 2, msg: err.Error()}
	}

	if a.flS3Prefix != "" && !inputs.IsS3URL(a.flS3Prefix) {
		return &AppError{exitCode: 2, msg: fmt.Sprintf("invalid -s3-output-prefix, expect s3:// URL: %s", a.flS3Prefix)}
	}

	// Load application configuration.
	c, err := LoadConfig(a.gf.ConfFile)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}
	a.cfg = &c

	// Image format flag overrides configuration.
	if a.flFormat != "" {
		a.cfg.ImageFormat = NewConfigVal(a.flFormat)
	}

	return nil
}

// detect will run keyframe detection stage over resolved local video file.
func (a *ExtractApp) detect(ctx context.Context, videoFile string) (keyframe.Result, error) {
	var res keyframe.Result

	meta, err := tools.FfprobeExtractMetadata(videoFile)
	if err != nil {
		return res, fmt.Errorf("extracting metadata: %w", err)
	}
	fps, err := meta.FPS()
	if err != nil {
		logging.Infof("Cannot determine frame rate (%s), using fallback", err)
		fps = 0
	}

	src, err := source.New(videoFile, fps, source.Config{
		FfmpegPath:  a.cfg.FfmpegPath.Value(),
		FfprobePath: a.cfg.FfprobePath.Value(),
		Width:       a.cfg.AnalysisWidth.Value(),
		Height:      a.cfg.AnalysisHeight.Value(),
	})
	if err != nil {
		return res, fmt.Errorf("creating frame source: %w", err)
	}

	detector, err := keyframe.NewDetector(src, a.dCfg)
	if err != nil {
		return res, fmt.Errorf("creating detector: %w", err)
	}

	return detector.Detect(ctx)
}

// materialize will write keyframe images and manifest, optionally uploading
// both to S3.
func (a *ExtractApp) materialize(ctx context.Context, videoFile string, res *keyframe.Result) error {
	writer, err := artifact.NewWriter(artifact.Config{
		FfmpegPath:      a.cfg.FfmpegPath.Value(),
		ExtractTemplate: a.cfg.FfmpegExtractTemplate.Value(),
		OutputDir:       a.flOutDir,
		ImageFormat:     a.cfg.ImageFormat.Value(),
	})
	if err != nil {
		return fmt.Errorf("creating artifact writer: %w", err)
	}

	if len(res.Keyframes) != 0 {
		res.Keyframes, err = writer.WriteImages(ctx, videoFile, res.Keyframes)
		if err != nil {
			return fmt.Errorf("writing keyframe images: %w", err)
		}
		if a.flS3Prefix != "" {
			res.Keyframes, err = writer.UploadImages(ctx, res.Keyframes, a.flS3Prefix)
			if err != nil {
				return fmt.Errorf("uploading keyframe images: %w", err)
			}
		}
	}

	manifestPath := path.Join(a.flOutDir, a.cfg.ManifestFileName.Value())
	if err := artifact.SaveManifest(ctx, manifestPath, res.Keyframes); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	logging.Infof("Manifest done: %s", manifestPath)

	if a.flS3Prefix != "" {
		manifestURL := inputs.JoinS3URL(a.flS3Prefix, a.cfg.ManifestFileName.Value())
		if err := artifact.SaveManifest(ctx, manifestURL, res.Keyframes); err != nil {
			return fmt.Errorf("uploading manifest: %w", err)
		}
		logging.Infof("Manifest uploaded: %s", manifestURL)
	}

	return nil
}

// saveReport writes per-method attempts to CSV report file.
func (a *ExtractApp) saveReport(res *keyframe.Result) error {
	reportPath := path.Join(a.flOutDir, a.cfg.ReportFileName.Value())
	reportOut, err := os.Create(reportPath)
	if err != nil {
		return fmt.Errorf("creating CSV report file: %w", err)
	}
	defer reportOut.Close()

	w := csv.NewWriter(reportOut)
	if err := csvutil.NewEncoder(w).Encode(res.Attempts); err != nil {
		return fmt.Errorf("writing CSV report: %w", err)
	}
	w.Flush()

	return w.Error()
}

// Run is main entry point into ExtractApp execution.
func (a *ExtractApp) Run(args []string) error {
	logging.Infof("viseek version: %s", vInfo)
	if err := a.init(args); err != nil {
		return err
	}

	logging.Debugf("Application configuration: %#v", a.cfg)
	// Check if configuration is valid.
	if err := a.cfg.Verify(); err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("configuration validation: %s", err)}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Resolve input spec to a local video file.
	videoFile, cleanup, err := inputs.Resolve(ctx, a.flInput)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}
	defer cleanup()

	if err := os.MkdirAll(a.flOutDir, os.FileMode(0o755)); err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("creating out dir: %s", err)}
	}

	// Run detection stage.
	res, err := a.detect(ctx, videoFile)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	if len(res.Keyframes) == 0 {
		logging.Info("No keyframes found")
	} else {
		logging.Infof("Found %d keyframes with method %s", len(res.Keyframes), res.Method)
	}

	// Materialize images and manifest, empty manifest is still written.
	if err := a.materialize(ctx, videoFile, &res); err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	// Save attempts report.
	if err := a.saveReport(&res); err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	r := report{Input: a.flInput, Result: res}
	r.WriteJSON(os.Stdout)
	fmt.Println()

	logging.Info("Done")
	return nil
}
