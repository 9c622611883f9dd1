// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Frame source contract consumed by the detection engine.

package keyframe

import "context"

// Frame is a single decoded video frame reduced to an 8-bit luma plane.
//
// Frames are owned by the scorer processing them and are not retained beyond
// what a scorer needs for its own delta computation.
type Frame struct {
	// Index is 0-based frame index in the source video stream.
	Index int
	// Timestamp is frame presentation time in seconds.
	Timestamp float64
	Width     int
	Height    int
	// Pix is the luma plane in row-major order, len = Width*Height.
	Pix []byte
}

// IndexFrame is a container-declared keyframe position, available without
// full pixel decode.
type IndexFrame struct {
	Index     int
	Timestamp float64
}

// FrameReader is a lazy, finite, forward-only sequence of decoded frames.
//
// Next returns io.EOF after the last frame. A reader is not restartable,
// restart requires a new Decode session. Close releases the underlying
// decode handle and is safe to call at any point, including mid-stream.
type FrameReader interface {
	Next() (*Frame, error)
	Close() error
}

// FrameSource produces decoded frames and index frame metadata for a single
// input. Implementations must support multiple independent Decode sessions,
// one per detection method attempt.
type FrameSource interface {
	// ProbeIndexFrames returns container keyframe positions in stream order
	// without decoding pixel data.
	ProbeIndexFrames(ctx context.Context) ([]IndexFrame, error)
	// Decode opens a forward-only decode session emitting every step-th
	// frame, step 1 meaning every frame.
	Decode(ctx context.Context, step int) (FrameReader, error)
}
