// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// viseek tool's probe subcommand implementation.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/evolution-gaming/viseek/internal/inputs"
	"github.com/evolution-gaming/viseek/internal/logging"
	"github.com/evolution-gaming/viseek/internal/tools"
)

// Make sure ProbeApp implements Commander interface.
var _ Commander = (*ProbeApp)(nil)

// ProbeApp is probe subcommand context that implements Commander interface.
type ProbeApp struct {
	// FlagSet instance
	fs *flag.FlagSet
	// Input video spec
	flInput string
	// Global flags
	gf globalFlags
	// Output stream for metadata JSON
	out io.Writer
}

// CreateProbeCommand will create Commander instance from ProbeApp.
func CreateProbeCommand() Commander {
	longHelp := `Subcommand "probe" will print simplified metadata of given video as JSON.

Input can be a local file, http(s) URL or s3://bucket/key URL.

Examples:

  viseek probe -i video.mp4`

	app := &ProbeApp{
		fs:  flag.NewFlagSet("probe", flag.ContinueOnError),
		gf:  globalFlags{},
		out: os.Stdout,
	}
	app.gf.Register(app.fs)
	app.fs.StringVar(&app.flInput, "i", "", "Input video: local file, http(s) or s3:// URL (mandatory)")

	app.fs.Usage = func() {
		printSubCommandUsage(longHelp, app.fs)
	}
	return app
}

// Run is main entry point into ProbeApp execution.
func (a *ProbeApp) Run(args []string) error {
	if err := a.fs.Parse(args); err != nil {
		return &AppError{
			exitCode: 2,
			msg:      "usage error",
		}
	}

	if a.gf.Debug {
		logging.EnableDebugLogger()
	}

	if a.flInput == "" {
		a.fs.Usage()
		return &AppError{
			exitCode: 2,
			msg:      "mandatory option -i is missing",
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	videoFile, cleanup, err := inputs.Resolve(ctx, a.flInput)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}
	defer cleanup()

	meta, err := tools.FfprobeExtractMetadata(videoFile)
	if err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("extracting metadata: %s", err)}
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	return nil
}
