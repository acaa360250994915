// Package imaging composites brand elements onto generated artwork.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"server/internal/domain"
)

// Position names the corner a logo is anchored to.
type Position string

const (
	PositionBottomRight Position = "bottom-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionTopRight    Position = "top-right"
	PositionTopLeft     Position = "top-left"
)

// Watermark anchors.
const (
	AnchorBottomCenter = "bottom-center"
	AnchorCenter       = "center"
)

// Defaults for logo overlays.
const (
	DefaultLogoScale = 0.15
	DefaultPadding   = 20
)

// OverlayLogo alpha-composites the logo onto the product image at the
// requested corner. The logo is resized to scale x product width with its
// aspect ratio preserved; the result keeps the product image's dimensions,
// is flattened onto opaque white, and re-encoded as PNG.
func OverlayLogo(productImage, logoImage []byte, position Position, scale float64, padding int) ([]byte, error) {
	product, err := decodeRGBA(productImage)
	if err != nil {
		return nil, fmt.Errorf("%w: decode product image: %v", domain.ErrValidation, err)
	}
	logo, err := decodeRGBA(logoImage)
	if err != nil {
		return nil, fmt.Errorf("%w: decode logo image: %v", domain.ErrValidation, err)
	}

	if scale <= 0 || scale > 1 {
		scale = DefaultLogoScale
	}
	if padding < 0 {
		padding = DefaultPadding
	}

	productW := product.Bounds().Dx()
	productH := product.Bounds().Dy()

	targetW := int(float64(productW) * scale)
	if targetW < 1 {
		targetW = 1
	}
	aspect := float64(logo.Bounds().Dy()) / float64(logo.Bounds().Dx())
	targetH := int(float64(targetW) * aspect)
	if targetH < 1 {
		targetH = 1
	}

	resized := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	xdraw.CatmullRom.Scale(resized, resized.Bounds(), logo, logo.Bounds(), xdraw.Src, nil)

	x, y := logoOrigin(productW, productH, targetW, targetH, position, padding)

	composite := image.NewRGBA(product.Bounds())
	draw.Draw(composite, composite.Bounds(), product, product.Bounds().Min, draw.Src)
	draw.Draw(composite, image.Rect(x, y, x+targetW, y+targetH), resized, image.Point{}, draw.Over)

	return encodeFlattened(composite)
}

// logoOrigin maps a corner to top-left placement coordinates. Unknown
// positions fall back to bottom-right.
func logoOrigin(imgW, imgH, logoW, logoH int, position Position, padding int) (int, int) {
	switch position {
	case PositionBottomLeft:
		return padding, imgH - logoH - padding
	case PositionTopRight:
		return imgW - logoW - padding, padding
	case PositionTopLeft:
		return padding, padding
	case PositionBottomRight:
		fallthrough
	default:
		return imgW - logoW - padding, imgH - logoH - padding
	}
}

// systemFontPaths are probed in order for the watermark typeface before
// falling back to the built-in bitmap face.
var systemFontPaths = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
	"/System/Library/Fonts/Supplemental/Arial.ttf",
}

func watermarkFace(size float64) font.Face {
	for _, path := range systemFontPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		parsed, err := opentype.Parse(data)
		if err != nil {
			continue
		}
		face, err := opentype.NewFace(parsed, &opentype.FaceOptions{Size: size, DPI: 72})
		if err != nil {
			continue
		}
		return face
	}
	return basicfont.Face7x13
}

// StampWatermark draws semi-transparent white text at the named anchor
// and flattens the result onto opaque white. Unknown anchors behave like
// bottom-center.
func StampWatermark(imageBytes []byte, text string, anchor string, fontSize float64, opacity float64) ([]byte, error) {
	base, err := decodeRGBA(imageBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", domain.ErrValidation, err)
	}
	if opacity <= 0 || opacity > 1 {
		opacity = 0.7
	}
	if fontSize <= 0 {
		fontSize = 24
	}

	face := watermarkFace(fontSize)
	textW := font.MeasureString(face, text).Ceil()
	metrics := face.Metrics()
	textH := (metrics.Ascent + metrics.Descent).Ceil()

	imgW := base.Bounds().Dx()
	imgH := base.Bounds().Dy()

	var x, y int
	switch anchor {
	case AnchorCenter:
		x = (imgW - textW) / 2
		y = (imgH-textH)/2 + metrics.Ascent.Ceil()
	case AnchorBottomCenter:
		fallthrough
	default:
		x = (imgW - textW) / 2
		y = imgH - 20 - metrics.Descent.Ceil()
	}

	alpha := uint8(255 * opacity)
	drawer := &font.Drawer{
		Dst:  base,
		Src:  image.NewUniform(color.NRGBA{255, 255, 255, alpha}),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)

	return encodeFlattened(base)
}

func decodeRGBA(data []byte) (*image.RGBA, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	rgba := image.NewRGBA(src.Bounds())
	draw.Draw(rgba, rgba.Bounds(), src, src.Bounds().Min, draw.Src)
	return rgba, nil
}

// encodeFlattened drops transparency by compositing onto white, then
// encodes PNG.
func encodeFlattened(img *image.RGBA) ([]byte, error) {
	flat := image.NewRGBA(img.Bounds())
	draw.Draw(flat, flat.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, img.Bounds().Min, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, flat); err != nil {
		return nil, fmt.Errorf("imaging: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
