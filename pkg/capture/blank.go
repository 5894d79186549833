package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

const (
	sampleStep     = 10  // every 10th pixel in x and y
	nearWhiteLevel = 240 // per channel, 8-bit
)

// Classify validates raw screenshot bytes: undecodable output is a render
// failure, a mostly-white frame is blank.
func Classify(data []byte, threshold float64) Result {
	if len(data) == 0 {
		return Degraded(ReasonRenderFailure, fmt.Errorf("empty screenshot"))
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return Degraded(ReasonRenderFailure, fmt.Errorf("decode screenshot: %w", err))
	}
	if frac := NearWhiteFraction(img); frac > threshold {
		return Degraded(ReasonBlank, fmt.Errorf("%w: %.1f%% near-white", ErrBlank, frac*100))
	}
	return Success(data)
}

// NearWhiteFraction samples a uniform grid and returns the share of samples
// whose R, G and B all exceed nearWhiteLevel. An empty image counts as white.
func NearWhiteFraction(img image.Image) float64 {
	b := img.Bounds()
	total, white := 0, 0
	for y := b.Min.Y; y < b.Max.Y; y += sampleStep {
		for x := b.Min.X; x < b.Max.X; x += sampleStep {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r>>8 > nearWhiteLevel && g>>8 > nearWhiteLevel && bl>>8 > nearWhiteLevel {
				white++
			}
			total++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(white) / float64(total)
}
