// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Per-method frame scorers.

package keyframe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Luma histogram bin count used by the histogram scorer.
const histogramBins = 64

// Block matching parameters for the optical flow scorer. Flow is estimated on
// a coarse grid: for each blockSize sized block of the previous sampled frame
// a best match is searched in the current frame within searchRadius pixels.
const (
	blockSize    = 16
	searchRadius = 7
)

// scorer produces a time-ordered stream of Candidates for a single detection
// method. Candidates are fed to yield one by one, emission stops early when
// yield returns false. A scorer owns its decode session and releases it
// before returning.
type scorer interface {
	Method() Method
	Scan(ctx context.Context, src FrameSource, yield func(Candidate) bool) error
}

// iframeScorer proposes container-declared keyframes as candidates with no
// numeric score.
type iframeScorer struct{}

func (iframeScorer) Method() Method { return MethodIFrame }

func (iframeScorer) Scan(ctx context.Context, src FrameSource, yield func(Candidate) bool) error {
	frames, err := src.ProbeIndexFrames(ctx)
	if err != nil {
		return fmt.Errorf("probing index frames: %w", err)
	}
	if len(frames) == 0 {
		return fmt.Errorf("container has no index frame metadata: %w", ErrMethodUnavailable)
	}
	for _, f := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !yield(Candidate{FrameIndex: f.Index, Timestamp: f.Timestamp, Method: MethodIFrame}) {
			break
		}
	}
	return nil
}

// diffScorer scores frames by mean absolute luma delta against the
// immediately preceding frame. The very first frame has no predecessor and
// is never a candidate.
type diffScorer struct{}

func (diffScorer) Method() Method { return MethodDifference }

func (diffScorer) Scan(ctx context.Context, src FrameSource, yield func(Candidate) bool) error {
	return scanPairs(ctx, src, 1, MethodDifference, meanAbsDiff, yield)
}

// histScorer scores frames by Bhattacharyya distance between normalized
// luma histograms of consecutive frames. Distance is in [0, 1], larger
// meaning more different.
type histScorer struct{}

func (histScorer) Method() Method { return MethodHistogram }

func (histScorer) Scan(ctx context.Context, src FrameSource, yield func(Candidate) bool) error {
	return scanPairs(ctx, src, 1, MethodHistogram, histogramDistance, yield)
}

// flowScorer scores sampled frames by aggregate motion magnitude since the
// previous sampled frame. Motion is estimated with coarse block matching and
// reduced to the mean of per-block displacement norms.
type flowScorer struct {
	step int
}

func (flowScorer) Method() Method { return MethodOpticalFlow }

func (s flowScorer) Scan(ctx context.Context, src FrameSource, yield func(Candidate) bool) error {
	step := s.step
	if step < 1 {
		step = 1
	}
	return scanPairs(ctx, src, step, MethodOpticalFlow, blockFlowMagnitude, yield)
}

// pairScore computes a dissimilarity scalar for a pair of consecutive
// (sampled) frames.
type pairScore func(prev, cur *Frame) (float64, error)

// scanPairs implements the shared decode loop of all pixel-based scorers:
// decode with given stride, score each frame against its predecessor and
// emit a candidate per scored frame.
func scanPairs(ctx context.Context, src FrameSource, step int, method Method, score pairScore, yield func(Candidate) bool) error {
	r, err := src.Decode(ctx, step)
	if err != nil {
		return fmt.Errorf("opening decode session: %w", err)
	}
	defer r.Close()

	var prev *Frame
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("decoding frame: %w", err)
		}
		if prev != nil {
			v, err := score(prev, f)
			if err != nil {
				return err
			}
			if !yield(Candidate{FrameIndex: f.Index, Timestamp: f.Timestamp, Method: method, Score: &v}) {
				return nil
			}
		}
		prev = f
	}
}

// meanAbsDiff is mean absolute per-pixel luma difference on 0-255 scale.
func meanAbsDiff(prev, cur *Frame) (float64, error) {
	if len(prev.Pix) != len(cur.Pix) || len(cur.Pix) == 0 {
		return 0, fmt.Errorf("frame geometry mismatch (%d vs %d pixels): %w",
			len(prev.Pix), len(cur.Pix), ErrSource)
	}
	var acc uint64
	for i := range cur.Pix {
		d := int(cur.Pix[i]) - int(prev.Pix[i])
		if d < 0 {
			d = -d
		}
		acc += uint64(d)
	}
	return float64(acc) / float64(len(cur.Pix)), nil
}

// histogramDistance is the Bhattacharyya distance between normalized luma
// histograms of two frames.
func histogramDistance(prev, cur *Frame) (float64, error) {
	hPrev, err := lumaHistogram(prev)
	if err != nil {
		return 0, err
	}
	hCur, err := lumaHistogram(cur)
	if err != nil {
		return 0, err
	}

	// Bhattacharyya coefficient over normalized histograms.
	var bc float64
	for i := range hPrev {
		bc += math.Sqrt(hPrev[i] * hCur[i])
	}
	// Guard against FP noise pushing the coefficient above 1.
	if bc > 1 {
		bc = 1
	}
	return math.Sqrt(1 - bc), nil
}

// lumaHistogram builds a histogramBins-bin luma histogram normalized to unit
// sum.
func lumaHistogram(f *Frame) ([]float64, error) {
	if len(f.Pix) == 0 {
		return nil, fmt.Errorf("empty frame pixel buffer: %w", ErrSource)
	}
	hist := make([]float64, histogramBins)
	for _, px := range f.Pix {
		hist[int(px)*histogramBins/256]++
	}
	floats.Scale(1/floats.Sum(hist), hist)
	return hist, nil
}

// blockFlowMagnitude estimates aggregate motion between two frames as the
// mean displacement norm over a coarse block grid.
func blockFlowMagnitude(prev, cur *Frame) (float64, error) {
	if len(prev.Pix) != len(cur.Pix) || prev.Width != cur.Width || prev.Height != cur.Height {
		return 0, fmt.Errorf("frame geometry mismatch: %w", ErrSource)
	}
	if cur.Width < blockSize || cur.Height < blockSize {
		return 0, fmt.Errorf("frame too small for block matching (%dx%d): %w",
			cur.Width, cur.Height, ErrMethodUnavailable)
	}

	var norms []float64
	for by := 0; by+blockSize <= cur.Height; by += blockSize {
		for bx := 0; bx+blockSize <= cur.Width; bx += blockSize {
			dx, dy := bestBlockMatch(prev, cur, bx, by)
			norms = append(norms, math.Hypot(float64(dx), float64(dy)))
		}
	}
	return stat.Mean(norms, nil), nil
}

// bestBlockMatch finds displacement of the block at (bx, by) of prev that
// minimizes sum of absolute differences within cur, searched exhaustively in
// a searchRadius window. Zero displacement wins all ties by search order.
func bestBlockMatch(prev, cur *Frame, bx, by int) (dx, dy int) {
	best := math.MaxInt64
	for oy := -searchRadius; oy <= searchRadius; oy++ {
		ny := by + oy
		if ny < 0 || ny+blockSize > cur.Height {
			continue
		}
		for ox := -searchRadius; ox <= searchRadius; ox++ {
			nx := bx + ox
			if nx < 0 || nx+blockSize > cur.Width {
				continue
			}
			sad := blockSAD(prev, cur, bx, by, nx, ny)
			// Prefer the smallest displacement on equal cost, keeps static
			// content at zero motion.
			if sad < best || (sad == best && ox*ox+oy*oy < dx*dx+dy*dy) {
				best = sad
				dx, dy = ox, oy
			}
		}
	}
	return dx, dy
}

// blockSAD is sum of absolute differences between prev block at (px, py) and
// cur block at (cx, cy).
func blockSAD(prev, cur *Frame, px, py, cx, cy int) int {
	var sad int
	for y := 0; y < blockSize; y++ {
		prow := (py+y)*prev.Width + px
		crow := (cy+y)*cur.Width + cx
		for x := 0; x < blockSize; x++ {
			d := int(prev.Pix[prow+x]) - int(cur.Pix[crow+x])
			if d < 0 {
				d = -d
			}
			sad += d
		}
	}
	return sad
}
