// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package keyframe implements the keyframe detection engine: per-frame
// dissimilarity scoring, threshold and interval based selection and ordered
// fallback across detection methods.
package keyframe

import (
	"errors"
	"fmt"
	"strings"
)

// Detection method defaults.
const (
	DefaultMaxKeyframes = 20
	DefaultMinInterval  = 0.5
	DefaultFlowStep     = 2
)

var (
	// ErrSource signals a frame source failure: the container cannot be
	// probed or the decode stream failed mid-way.
	ErrSource = errors.New("frame source failure")
	// ErrMethodUnavailable signals that a method's prerequisite signal is
	// missing, e.g. the container carries no index frame metadata.
	ErrMethodUnavailable = errors.New("detection method unavailable")
)

// Method is a keyframe detection method.
type Method string

const (
	MethodIFrame      Method = "I_frame"
	MethodDifference  Method = "difference"
	MethodHistogram   Method = "histogram"
	MethodOpticalFlow Method = "optical_flow"
)

// Methods lists all supported detection methods.
var Methods = []Method{MethodIFrame, MethodDifference, MethodHistogram, MethodOpticalFlow}

// ParseMethod will convert a method name to Method.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.TrimSpace(s))
	for _, known := range Methods {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unsupported method: %q", s)
}

// ParseMethodList will convert a comma-separated list of method names into a
// Method slice preserving order.
func ParseMethodList(s string) ([]Method, error) {
	var methods []Method
	for _, tok := range strings.Split(s, ",") {
		if strings.TrimSpace(tok) == "" {
			continue
		}
		m, err := ParseMethod(tok)
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	if len(methods) == 0 {
		return nil, errors.New("method list is empty")
	}
	return methods, nil
}

// DefaultThreshold returns the method's default score threshold.
//
// Thresholds are calibrated against the concrete score reductions in use by
// scorers: mean absolute luma delta on 0-255 scale for difference,
// Bhattacharyya distance on 0-1 scale for histogram and mean block
// displacement in pixels for optical flow. I_frame has no score hence no
// threshold.
func (m Method) DefaultThreshold() float64 {
	switch m {
	case MethodDifference:
		return 12.0
	case MethodHistogram:
		return 0.35
	case MethodOpticalFlow:
		return 1.5
	default:
		return 0
	}
}

// Scored reports if the method produces a numeric score per candidate.
func (m Method) Scored() bool {
	return m != MethodIFrame
}

// Candidate is a frame proposed by a scorer as a possible keyframe. Score is
// nil for methods with no intrinsic score (I_frame).
type Candidate struct {
	FrameIndex int
	Timestamp  float64
	Method     Method
	Score      *float64
}

// Keyframe is a single selected keyframe, the unit written to the manifest.
type Keyframe struct {
	FrameIndex int      `json:"frame_index"`
	Timestamp  float64  `json:"timestamp_s"`
	Method     Method   `json:"method"`
	Score      *float64 `json:"score"`
	LocalPath  string   `json:"local_path,omitempty"`
	S3URL      string   `json:"s3_url,omitempty"`
}

// Config holds detection parameters for a single run.
type Config struct {
	// Methods to try in order, first one yielding a non-empty selection wins.
	Methods []Method
	// Threshold overrides per-method default score threshold when non-nil.
	Threshold *float64
	// MaxKeyframes caps the number of selected keyframes, 0 disables the cap.
	MaxKeyframes int
	// MinInterval is minimum seconds between selected keyframes.
	MinInterval float64
	// FlowStep makes optical flow sample every FlowStep-th frame.
	FlowStep int
}

// DefaultConfig returns detection configuration with default values. Default
// method is I_frame since it avoids full pixel decode and is cheapest.
func DefaultConfig() Config {
	return Config{
		Methods:      []Method{MethodIFrame},
		MaxKeyframes: DefaultMaxKeyframes,
		MinInterval:  DefaultMinInterval,
		FlowStep:     DefaultFlowStep,
	}
}

// Verify will check that configuration values are sensible.
func (c *Config) Verify() error {
	if len(c.Methods) == 0 {
		return errors.New("no detection methods given")
	}
	for _, m := range c.Methods {
		if _, err := ParseMethod(string(m)); err != nil {
			return err
		}
	}
	if c.MaxKeyframes < 0 {
		return fmt.Errorf("negative max keyframes: %d", c.MaxKeyframes)
	}
	if c.MinInterval < 0 {
		return fmt.Errorf("negative min interval: %f", c.MinInterval)
	}
	if c.FlowStep < 1 {
		return fmt.Errorf("flow step should be positive: %d", c.FlowStep)
	}
	return nil
}

// threshold returns the effective score threshold for given method.
func (c *Config) threshold(m Method) float64 {
	if c.Threshold != nil {
		return *c.Threshold
	}
	return m.DefaultThreshold()
}
