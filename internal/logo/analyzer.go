// Package logo extracts visual characteristics from brand logos and folds
// them into image-generation prompts.
package logo

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"sort"
	"strings"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"server/internal/domain"
)

const (
	// maxThumbnailSide bounds the working image so analysis stays cheap
	// regardless of the uploaded logo size.
	maxThumbnailSide = 200
	// nearWhiteSum discards background pixels: any pixel whose channel
	// sum reaches this value counts as white noise.
	nearWhiteSum = 700
	// minColorDistance is the Euclidean RGB distance two accepted
	// dominant colors must keep between each other.
	minColorDistance = 50.0
	// maxDominantColors caps the extracted palette.
	maxDominantColors = 5
)

// ColorShare is one ranked palette entry.
type ColorShare struct {
	Hex   string  `json:"hex"`
	Share float64 `json:"share"`
}

// Analysis is the derived, ephemeral description of a logo. It is never
// persisted; the orchestrator rebuilds it per run.
type Analysis struct {
	DominantColors   []ColorShare `json:"dominant_colors"`
	Brightness       float64      `json:"brightness"`
	StyleDescription string       `json:"style_description"`
	Palette          []string     `json:"color_palette"`
}

// Analyze decodes logo bytes, flattens transparency onto white, and
// derives dominant colors, brightness, and a style phrase.
func Analyze(data []byte) (*Analysis, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode logo: %v", domain.ErrValidation, err)
	}

	img := flattenToThumbnail(src)

	dominant := extractDominantColors(img)
	brightness := calculateBrightness(img)
	palette := make([]string, len(dominant))
	for i, c := range dominant {
		palette[i] = c.Hex
	}

	return &Analysis{
		DominantColors:   dominant,
		Brightness:       brightness,
		StyleDescription: styleDescription(dominant, brightness),
		Palette:          palette,
	}, nil
}

// flattenToThumbnail composites the source onto a white background and
// scales it down to at most maxThumbnailSide per axis.
func flattenToThumbnail(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxThumbnailSide || h > maxThumbnailSide {
		scale := float64(maxThumbnailSide) / float64(w)
		if h > w {
			scale = float64(maxThumbnailSide) / float64(h)
		}
		w = int(math.Max(1, float64(w)*scale))
		h = int(math.Max(1, float64(h)*scale))
	}

	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), src, bounds, xdraw.Src, nil)

	flat := image.NewRGBA(scaled.Bounds())
	for i := 0; i < len(scaled.Pix); i += 4 {
		r, g, b, a := scaled.Pix[i], scaled.Pix[i+1], scaled.Pix[i+2], scaled.Pix[i+3]
		alpha := float64(a) / 255.0
		flat.Pix[i] = uint8(float64(r)*alpha + 255*(1-alpha))
		flat.Pix[i+1] = uint8(float64(g)*alpha + 255*(1-alpha))
		flat.Pix[i+2] = uint8(float64(b)*alpha + 255*(1-alpha))
		flat.Pix[i+3] = 255
	}
	return flat
}

type rgb struct{ r, g, b uint8 }

func extractDominantColors(img *image.RGBA) []ColorShare {
	counts := make(map[rgb]int)
	filtered := 0
	for i := 0; i < len(img.Pix); i += 4 {
		c := rgb{img.Pix[i], img.Pix[i+1], img.Pix[i+2]}
		if int(c.r)+int(c.g)+int(c.b) >= nearWhiteSum {
			continue
		}
		counts[c]++
		filtered++
	}
	if filtered == 0 {
		return []ColorShare{{Hex: "#000000", Share: 1.0}}
	}

	type freq struct {
		color rgb
		count int
	}
	ranked := make([]freq, 0, len(counts))
	for c, n := range counts {
		ranked = append(ranked, freq{c, n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		// Deterministic ordering between equal counts.
		a, b := ranked[i].color, ranked[j].color
		if a.r != b.r {
			return a.r < b.r
		}
		if a.g != b.g {
			return a.g < b.g
		}
		return a.b < b.b
	})
	if len(ranked) > maxDominantColors*2 {
		ranked = ranked[:maxDominantColors*2]
	}

	var accepted []freq
	for _, candidate := range ranked {
		distinct := true
		for _, existing := range accepted {
			if colorDistance(candidate.color, existing.color) < minColorDistance {
				distinct = false
				break
			}
		}
		if distinct {
			accepted = append(accepted, candidate)
		}
		if len(accepted) >= maxDominantColors {
			break
		}
	}

	total := 0
	for _, f := range accepted {
		total += f.count
	}
	shares := make([]ColorShare, len(accepted))
	for i, f := range accepted {
		shares[i] = ColorShare{
			Hex:   rgbToHex(f.color),
			Share: float64(f.count) / float64(total),
		}
	}
	return shares
}

func calculateBrightness(img *image.RGBA) float64 {
	var sum float64
	pixels := 0
	for i := 0; i < len(img.Pix); i += 4 {
		sum += (float64(img.Pix[i]) + float64(img.Pix[i+1]) + float64(img.Pix[i+2])) / 3
		pixels++
	}
	if pixels == 0 {
		return 0
	}
	return sum / float64(pixels) / 255.0
}

func styleDescription(dominant []ColorShare, brightness float64) string {
	var parts []string

	switch {
	case brightness > 0.7:
		parts = append(parts, "bright and vibrant")
	case brightness > 0.4:
		parts = append(parts, "balanced")
	default:
		parts = append(parts, "bold and dark")
	}

	if len(dominant) >= 2 {
		name := colorName(dominant[0].Hex)
		if len(dominant) >= 3 {
			parts = append(parts, fmt.Sprintf("multi-colored with %s prominence", name))
		} else {
			parts = append(parts, fmt.Sprintf("%s-toned", name))
		}
	} else {
		parts = append(parts, "monochromatic")
	}

	primary := hexToRGB(dominant[0].Hex)
	_, s, _ := rgbToHSV(primary)
	switch {
	case s > 0.6:
		parts = append(parts, "highly saturated")
	case s > 0.3:
		parts = append(parts, "moderately saturated")
	default:
		parts = append(parts, "muted tones")
	}

	return strings.Join(parts, ", ")
}

// colorName buckets a hex color into a coarse human name via HSV.
func colorName(hex string) string {
	c := hexToRGB(hex)
	h, s, v := rgbToHSV(c)

	if s < 0.2 {
		switch {
		case v > 0.8:
			return "white"
		case v < 0.3:
			return "black"
		default:
			return "gray"
		}
	}

	deg := h * 360
	switch {
	case deg < 15 || deg >= 345:
		return "red"
	case deg < 45:
		return "orange"
	case deg < 75:
		return "yellow"
	case deg < 155:
		return "green"
	case deg < 255:
		return "blue"
	case deg < 285:
		return "purple"
	default:
		return "pink"
	}
}

// EnhancePrompt appends logo-derived styling to a base generation prompt.
// The enhancement ordering (reference instruction, style, palette, closing
// branding instruction) is part of the prompt contract and must not change.
func EnhancePrompt(basePrompt string, analysis *Analysis, hasReferenceImage bool) string {
	var enhancements []string

	if hasReferenceImage {
		enhancements = append(enhancements,
			"using the provided brand logo image as a visual reference for style, colors, and branding")
	}

	enhancements = append(enhancements, fmt.Sprintf("with %s brand aesthetic", analysis.StyleDescription))

	if len(analysis.Palette) >= 2 {
		top := analysis.Palette
		if len(top) > 3 {
			top = top[:3]
		}
		enhancements = append(enhancements, fmt.Sprintf("incorporating brand colors (%s)", strings.Join(top, ", ")))
	}

	enhancements = append(enhancements,
		"featuring the brand logo or brand elements integrated naturally into the product design, "+
			"styled as a premium branded product photograph")

	return basePrompt + ", " + strings.Join(enhancements, ", ")
}

func colorDistance(a, b rgb) float64 {
	dr := float64(a.r) - float64(b.r)
	dg := float64(a.g) - float64(b.g)
	db := float64(a.b) - float64(b.b)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

func rgbToHex(c rgb) string {
	return fmt.Sprintf("#%02x%02x%02x", c.r, c.g, c.b)
}

func hexToRGB(hex string) rgb {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return rgb{}
	}
	var r, g, b uint8
	fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b)
	return rgb{r, g, b}
}

// rgbToHSV converts to HSV with h, s, v all in [0,1].
func rgbToHSV(c rgb) (h, s, v float64) {
	r := float64(c.r) / 255
	g := float64(c.g) / 255
	b := float64(c.b) / 255

	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	v = max
	delta := max - min

	if max > 0 {
		s = delta / max
	}
	if delta == 0 {
		return h, s, v
	}

	switch max {
	case r:
		h = math.Mod((g-b)/delta, 6)
	case g:
		h = (b-r)/delta + 2
	default:
		h = (r-g)/delta + 4
	}
	h /= 6
	if h < 0 {
		h += 1
	}
	return h, s, v
}
