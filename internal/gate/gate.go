package gate

import (
	"image"

	"github.com/disintegration/imaging"
)

// #region gate
// Brightness reports a blocked camera once enough consecutive frames are dark.
// A single bright frame resets the run, so flicker never accumulates.
type Brightness struct {
	config     BrightnessConfig
	darkFrames int
}

// NewBrightness creates a gate with the given configuration.
func NewBrightness(config BrightnessConfig) *Brightness {
	return &Brightness{config: config}
}

// Observe feeds one frame's mean luminance through the gate.
func (g *Brightness) Observe(luminance float64) Decision {
	dark := luminance < g.config.MinBrightness
	if dark {
		g.darkFrames++
	} else {
		g.darkFrames = 0
	}
	return Decision{
		Blocked:    g.darkFrames >= g.config.RequiredDarkFrames,
		Dark:       dark,
		DarkFrames: g.darkFrames,
	}
}

// SetConfig swaps thresholds without touching the running counter.
func (g *Brightness) SetConfig(config BrightnessConfig) {
	g.config = config
}

// Reset clears the dark-frame run.
func (g *Brightness) Reset() {
	g.darkFrames = 0
}

// #endregion gate

// #region luminance
// MeanLuminance returns the average gray level of img on a 0-255 scale.
// An empty image reports 0.
func MeanLuminance(img image.Image) float64 {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}

	var sum uint64
	for y := 0; y < b.Dy(); y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			sum += uint64(row[x]) // R == G == B after grayscale
		}
	}
	return float64(sum) / float64(n)
}

// #endregion luminance
