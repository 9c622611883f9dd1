// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// viseek tool's scoreplot subcommand implementation.

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
	"strings"
	"syscall"

	"github.com/evolution-gaming/viseek/internal/analysis"
	"github.com/evolution-gaming/viseek/internal/inputs"
	"github.com/evolution-gaming/viseek/internal/keyframe"
	"github.com/evolution-gaming/viseek/internal/logging"
	"github.com/evolution-gaming/viseek/internal/source"
	"github.com/evolution-gaming/viseek/internal/tools"
	"github.com/jszwec/csvutil"
)

// Make sure ScorePlotApp implements Commander interface.
var _ Commander = (*ScorePlotApp)(nil)

// ScorePlotApp is scoreplot subcommand context that implements Commander interface.
type ScorePlotApp struct {
	// Configuration object
	cfg *Config
	// FlagSet instance
	fs *flag.FlagSet
	// Input video spec
	flInput string
	// Detection method to trace
	flMethod string
	// Score threshold to draw on plot
	flThreshold string
	// Optical flow sampling step
	flFlowStep int
	// Plot output file
	flOutFile string
	// Optional CSV trace output file
	flCSVFile string
	// Global flags
	gf globalFlags
}

// CreateScorePlotCommand will create Commander instance from ScorePlotApp.
func CreateScorePlotCommand() Commander {
	longHelp := `Subcommand "scoreplot" will compute per-frame change score trace for given
video with given detection method and render it as a plot along with score
histogram and CDF. Useful for picking a detection threshold.

Examples:

  viseek scoreplot -i video.mp4
  viseek scoreplot -i video.mp4 -method histogram -o histogram_score.png`

	app := &ScorePlotApp{
		fs: flag.NewFlagSet("scoreplot", flag.ContinueOnError),
		gf: globalFlags{},
	}
	app.gf.Register(app.fs)
	app.fs.StringVar(&app.flInput, "i", "", "Input video: local file, http(s) or s3:// URL (mandatory)")
	app.fs.StringVar(&app.flMethod, "method", string(keyframe.MethodDifference), "Detection method to trace (difference, histogram or optical_flow)")
	app.fs.StringVar(&app.flThreshold, "threshold", "", "Threshold to draw on plot (default is per-method)")
	app.fs.IntVar(&app.flFlowStep, "flow-step", keyframe.DefaultFlowStep, "Frame sampling step for optical_flow method")
	app.fs.StringVar(&app.flOutFile, "o", "", "File to save plot to")
	app.fs.StringVar(&app.flCSVFile, "csv", "", "File to save raw score trace CSV to")

	app.fs.Usage = func() {
		printSubCommandUsage(longHelp, app.fs)
	}
	return app
}

// Run is main entry point into ScorePlotApp execution.
func (a *ScorePlotApp) Run(args []string) error {
	if err := a.fs.Parse(args); err != nil {
		return &AppError{
			exitCode: 2,
			msg:      "usage error",
		}
	}

	if a.gf.Debug {
		logging.EnableDebugLogger()
	}

	// Load application configuration.
	c, err := LoadConfig(a.gf.ConfFile)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}
	a.cfg = &c

	// Check if configuration is valid.
	if err := a.cfg.Verify(); err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("configuration validation: %s", err)}
	}

	if a.flInput == "" {
		a.fs.Usage()
		return &AppError{
			exitCode: 2,
			msg:      "mandatory option -i is missing",
		}
	}

	method, err := keyframe.ParseMethod(a.flMethod)
	if err != nil {
		return &AppError{exitCode: 2, msg: err.Error()}
	}
	if !method.Scored() {
		return &AppError{exitCode: 2, msg: fmt.Sprintf("method %s produces no scores", method)}
	}

	threshold := method.DefaultThreshold()
	if a.flThreshold != "" {
		threshold, err = strconv.ParseFloat(a.flThreshold, 64)
		if err != nil {
			return &AppError{exitCode: 2, msg: fmt.Sprintf("invalid -threshold value: %s", a.flThreshold)}
		}
	}

	if a.flOutFile == "" {
		base := path.Base(a.flInput)
		base = strings.TrimSuffix(base, path.Ext(base))
		a.flOutFile = base + "_score.png"
	}

	logging.Infof("Output will be written to:\n\t%s\n", a.flOutFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.tracePlot(ctx, method, threshold); err != nil {
		return &AppError{
			exitCode: 1,
			msg:      err.Error(),
		}
	}

	return nil
}

// tracePlot computes the score trace and renders plot and CSV outputs.
func (a *ScorePlotApp) tracePlot(ctx context.Context, method keyframe.Method, threshold float64) error {
	videoFile, cleanup, err := inputs.Resolve(ctx, a.flInput)
	if err != nil {
		return err
	}
	defer cleanup()

	meta, err := tools.FfprobeExtractMetadata(videoFile)
	if err != nil {
		return fmt.Errorf("extracting metadata: %w", err)
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
		return fmt.Errorf("creating frame source: %w", err)
	}

	trace, err := keyframe.ScoreTrace(ctx, src, method, a.flFlowStep)
	if err != nil {
		return fmt.Errorf("computing score trace: %w", err)
	}
	if len(trace) == 0 {
		return fmt.Errorf("empty score trace for %s", a.flInput)
	}

	stats := keyframe.Stats(trace)
	logging.Infof("Score trace %s: frames=%d min=%.3f max=%.3f mean=%.3f stdev=%.3f",
		method, stats.Frames, stats.Min, stats.Max, stats.Mean, stats.StDev)

	if a.flCSVFile != "" {
		if err := saveTraceCSV(a.flCSVFile, trace); err != nil {
			return err
		}
		logging.Infof("Score trace CSV done: %s", a.flCSVFile)
	}

	title := fmt.Sprintf("%s (%s)", path.Base(a.flInput), method)
	if err := analysis.MultiPlotScores(trace, threshold, title, a.flOutFile); err != nil {
		return fmt.Errorf("creating score plot: %w", err)
	}
	logging.Infof("Score plot done: %s", a.flOutFile)

	return nil
}

// saveTraceCSV writes raw score trace to CSV file.
func saveTraceCSV(fPath string, trace []keyframe.FrameScore) error {
	out, err := os.Create(fPath)
	if err != nil {
		return fmt.Errorf("creating CSV trace file: %w", err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := csvutil.NewEncoder(w).Encode(trace); err != nil {
		return fmt.Errorf("writing CSV trace: %w", err)
	}
	w.Flush()

	return w.Error()
}
