// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Reusable parts of viseek application and subcommand infrastructure.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/evolution-gaming/viseek/internal/keyframe"
	"github.com/evolution-gaming/viseek/internal/logging"
)

// Commander interface should be implemented by commands and sub-commands.
type Commander interface {
	Run([]string) error
}

// AppError a custom error returned from CLI application.
//
// AppError is handy error type envisioned to be used in CLI's main.
// ExitCode() should be used as argument for os.Exit().
type AppError struct {
	msg      string
	exitCode int
}

// Error implements error interface for AppError.
func (e *AppError) Error() string {
	return e.msg
}

// ExitCode returns CLI application's exit code.
func (e *AppError) ExitCode() int {
	return e.exitCode
}

// printSubCommandUsage helper to format ad print subcommand's usage.
func printSubCommandUsage(longHelp string, fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage of sub-command %s:\n\n", fs.Name())
	fmt.Fprintf(fs.Output(), "%s\n\n", longHelp)
	fs.PrintDefaults()
}

// report contains extraction run result for a single input.
type report struct {
	Input string
	keyframe.Result
}

// WriteJSON writes extraction run result as JSON.
func (r *report) WriteJSON(w io.Writer) {
	res, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		logging.Infof("Unable to marshal extraction result to JSON: %s", err)
	}
	_, err = w.Write(res)
	if err != nil {
		logging.Infof("Error writing extraction result %s", err)
	}
}

// fileExists will check if given path exists and is a regular file.
func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// isNonEmptyDir will check if given directory is non-empty.
func isNonEmptyDir(path string) bool {
	fs, err := os.Open(path)
	if err != nil {
		return false
	}
	defer fs.Close()

	n, _ := fs.Readdirnames(1)
	return len(n) == 1
}
