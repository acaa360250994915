package logo

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// twoToneLogo renders a 100x100 image: left 60 columns red, right 40 blue.
func twoToneLogo(t *testing.T) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	draw.Draw(img, image.Rect(0, 0, 60, 100), &image.Uniform{color.RGBA{200, 30, 30, 255}}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(60, 0, 100, 100), &image.Uniform{color.RGBA{30, 30, 200, 255}}, image.Point{}, draw.Src)
	return encodePNG(t, img)
}

func TestAnalyzeTwoToneLogo(t *testing.T) {
	analysis, err := Analyze(twoToneLogo(t))
	require.NoError(t, err)

	require.NotEmpty(t, analysis.DominantColors)
	require.LessOrEqual(t, len(analysis.DominantColors), maxDominantColors)

	var total float64
	for _, c := range analysis.DominantColors {
		total += c.Share
	}
	require.InDelta(t, 1.0, total, 1e-6)

	// Red covers more area than blue, so it ranks first.
	require.Greater(t, analysis.DominantColors[0].Share, analysis.DominantColors[len(analysis.DominantColors)-1].Share)
	require.Equal(t, len(analysis.DominantColors), len(analysis.Palette))
	require.GreaterOrEqual(t, analysis.Brightness, 0.0)
	require.LessOrEqual(t, analysis.Brightness, 1.0)
	require.Contains(t, analysis.StyleDescription, "saturated")
}

func TestAnalyzeAllWhiteFallsBackToBlack(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	analysis, err := Analyze(encodePNG(t, img))
	require.NoError(t, err)
	require.Len(t, analysis.DominantColors, 1)
	require.Equal(t, "#000000", analysis.DominantColors[0].Hex)
	require.InDelta(t, 1.0, analysis.DominantColors[0].Share, 1e-9)
}

func TestAnalyzeTransparencyFlattensToWhite(t *testing.T) {
	// Fully transparent image becomes all white after flattening, which
	// is then filtered as background noise.
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	analysis, err := Analyze(encodePNG(t, img))
	require.NoError(t, err)
	require.Equal(t, "#000000", analysis.DominantColors[0].Hex)
	require.Greater(t, analysis.Brightness, 0.9)
}

func TestAnalyzeRejectsGarbage(t *testing.T) {
	_, err := Analyze([]byte("definitely not an image"))
	require.Error(t, err)
}

func TestColorNameBuckets(t *testing.T) {
	cases := map[string]string{
		"#c81e1e": "red",
		"#e07820": "orange",
		"#e0d020": "yellow",
		"#20c030": "green",
		"#2030c0": "blue",
		"#8020c0": "purple",
		"#e020a0": "pink",
		"#f5f5f5": "white",
		"#111111": "black",
		"#808080": "gray",
	}
	for hex, want := range cases {
		require.Equal(t, want, colorName(hex), "hex %s", hex)
	}
}

func TestEnhancePromptOrdering(t *testing.T) {
	analysis := &Analysis{
		StyleDescription: "bold and dark, red-toned, highly saturated",
		Palette:          []string{"#c81e1e", "#1e1ec8", "#222222", "#444444"},
	}

	got := EnhancePrompt("a sports drink on ice", analysis, true)

	require.True(t, strings.HasPrefix(got, "a sports drink on ice, "))
	refIdx := strings.Index(got, "provided brand logo image as a visual reference")
	styleIdx := strings.Index(got, "with bold and dark, red-toned, highly saturated brand aesthetic")
	paletteIdx := strings.Index(got, "incorporating brand colors (#c81e1e, #1e1ec8, #222222)")
	closingIdx := strings.Index(got, "premium branded product photograph")
	require.True(t, refIdx > 0)
	require.True(t, styleIdx > refIdx)
	require.True(t, paletteIdx > styleIdx)
	require.True(t, closingIdx > paletteIdx)
}

func TestEnhancePromptWithoutReferenceOrPalette(t *testing.T) {
	analysis := &Analysis{
		StyleDescription: "balanced, monochromatic, muted tones",
		Palette:          []string{"#333333"},
	}

	got := EnhancePrompt("a candle", analysis, false)

	require.NotContains(t, got, "visual reference")
	require.NotContains(t, got, "incorporating brand colors")
	require.Contains(t, got, "balanced, monochromatic, muted tones brand aesthetic")
	require.Contains(t, got, "premium branded product photograph")
}
