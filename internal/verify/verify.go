// File: internal/verify/verify.go

// Package verify decides whether an action visibly changed the screen by
// comparing the screenshots captured around it. The comparison is a mean
// normalized per-pixel difference over the relevant region, mapped through a
// two-threshold policy: big enough to confirm, small enough to call a no-op,
// or ambiguous in between. Ambiguity is resolved by the orchestrator with one
// extra capture rather than treated as failure, which keeps rendering jitter
// (cursor blink, animation tails) from producing false negatives.
package verify

import (
	"image"

	"go.uber.org/zap"
)

// Verdict classifies one before/after comparison.
type Verdict int

const (
	// Failed: no visible effect; the difference is below the fail threshold.
	Failed Verdict = iota
	// Ambiguous: between the thresholds; needs a second confirming capture.
	Ambiguous
	// Confirmed: the difference clears the confirm threshold.
	Confirmed
)

func (v Verdict) String() string {
	switch v {
	case Confirmed:
		return "confirmed"
	case Ambiguous:
		return "ambiguous"
	default:
		return "failed"
	}
}

// Result is the outcome of comparing one screenshot pair. The images
// themselves are owned transiently by the caller and are not retained here.
type Result struct {
	Verdict Verdict
	// Diff is the measured mean normalized difference in [0,1].
	Diff float64
	// Region is the rectangle the comparison was restricted to.
	Region image.Rectangle
}

// Engine applies the two-threshold policy. Thresholds are configuration: the
// right values depend on display scale and desktop theme and need empirical
// tuning.
type Engine struct {
	confirmThreshold float64
	failThreshold    float64
	logger           *zap.Logger
}

// NewEngine creates a verification engine. confirmThreshold must exceed
// failThreshold; both are mean normalized differences in [0,1].
func NewEngine(confirmThreshold, failThreshold float64, logger *zap.Logger) *Engine {
	return &Engine{
		confirmThreshold: confirmThreshold,
		failThreshold:    failThreshold,
		logger:           logger.Named("verify"),
	}
}

// Verify compares the pre and post screenshots restricted to region. An empty
// region means full frame. Images whose bounds do not cover the region are
// compared over the common intersection.
func (e *Engine) Verify(pre, post image.Image, region image.Rectangle) Result {
	cmp := region
	if cmp.Empty() {
		cmp = pre.Bounds()
	}
	cmp = cmp.Intersect(pre.Bounds()).Intersect(post.Bounds())

	diff := meanDiff(pre, post, cmp)

	verdict := Ambiguous
	switch {
	case diff >= e.confirmThreshold:
		verdict = Confirmed
	case diff < e.failThreshold:
		verdict = Failed
	}

	e.logger.Debug("screenshot comparison",
		zap.Float64("diff", diff),
		zap.String("verdict", verdict.String()),
		zap.Any("region", cmp),
	)
	return Result{Verdict: verdict, Diff: diff, Region: cmp}
}

// meanDiff computes the mean normalized absolute channel difference over the
// region. The fast path reads RGBA pixel storage directly because full-screen
// comparisons touch millions of pixels per verification.
func meanDiff(pre, post image.Image, region image.Rectangle) float64 {
	if region.Empty() {
		return 0
	}

	preRGBA, preOK := pre.(*image.RGBA)
	postRGBA, postOK := post.(*image.RGBA)
	if preOK && postOK {
		return meanDiffRGBA(preRGBA, postRGBA, region)
	}

	var total uint64
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			r0, g0, b0, _ := pre.At(x, y).RGBA()
			r1, g1, b1, _ := post.At(x, y).RGBA()
			total += uint64(absDiff32(r0>>8, r1>>8) + absDiff32(g0>>8, g1>>8) + absDiff32(b0>>8, b1>>8))
		}
	}
	pixels := uint64(region.Dx()) * uint64(region.Dy())
	return float64(total) / float64(pixels*3*255)
}

func meanDiffRGBA(pre, post *image.RGBA, region image.Rectangle) float64 {
	var total uint64
	for y := region.Min.Y; y < region.Max.Y; y++ {
		preRow := pre.Pix[pre.PixOffset(region.Min.X, y):pre.PixOffset(region.Max.X, y)]
		postRow := post.Pix[post.PixOffset(region.Min.X, y):post.PixOffset(region.Max.X, y)]
		for i := 0; i+3 < len(preRow) && i+3 < len(postRow); i += 4 {
			// Alpha is skipped: capture backends disagree on whether it is
			// meaningful for screen content.
			total += uint64(absDiff8(preRow[i], postRow[i]) +
				absDiff8(preRow[i+1], postRow[i+1]) +
				absDiff8(preRow[i+2], postRow[i+2]))
		}
	}
	pixels := uint64(region.Dx()) * uint64(region.Dy())
	return float64(total) / float64(pixels*3*255)
}

func absDiff8(a, b uint8) uint32 {
	if a > b {
		return uint32(a - b)
	}
	return uint32(b - a)
}

func absDiff32(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
