package render

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/headshot/pkg/types"
)

// Overlay colors
var (
	faceColor    = color.NRGBA{0, 255, 0, 255}   // detected face
	paddingColor = color.NRGBA{255, 204, 0, 255} // padded face region
	cropColor    = color.NRGBA{255, 0, 0, 255}   // final crop boundary
	centerColor  = color.NRGBA{0, 170, 255, 255} // face center
)

// drawOverlay draws the face box, padding bands and crop boundary on a copy
// of canvas. Source coordinates map to the canvas with
// scale_x = width/crop_w and scale_y = height/crop_h.
func drawOverlay(canvas *image.NRGBA, crop types.CropRect, ov Overlay) *image.NRGBA {
	out := imaging.Clone(canvas)
	w := out.Bounds().Dx()
	h := out.Bounds().Dy()

	sx := float64(w) / float64(crop.Dx())
	sy := float64(h) / float64(crop.Dy())
	toCanvas := func(r image.Rectangle) image.Rectangle {
		return image.Rect(
			int(math.Round(float64(r.Min.X-crop.Left)*sx)),
			int(math.Round(float64(r.Min.Y-crop.Top)*sy)),
			int(math.Round(float64(r.Max.X-crop.Left)*sx)),
			int(math.Round(float64(r.Max.Y-crop.Top)*sy)),
		)
	}

	stroke := int(math.Max(2, 0.004*float64(min(w, h)))) // ~0.4% of min side
	cross := int(math.Max(4, 0.01*float64(min(w, h))))   // ~1% of min side

	face := ov.Face.Rect()
	padded := image.Rect(
		face.Min.X-ov.Padding.Side,
		face.Min.Y-ov.Padding.Top,
		face.Max.X+ov.Padding.Side,
		face.Max.Y+ov.Padding.Bottom,
	)

	faceBox := toCanvas(face)
	padBox := toCanvas(padded)

	drawBox(out, padBox, paddingColor, stroke)
	drawBox(out, faceBox, faceColor, stroke)
	drawBox(out, toCanvas(crop.Rect()), cropColor, stroke)

	// Face center crosshair
	c := image.Pt((faceBox.Min.X+faceBox.Max.X)/2, (faceBox.Min.Y+faceBox.Max.Y)/2)
	drawHLine(out, c.Y, c.X-cross, c.X+cross, centerColor)
	drawVLine(out, c.X, c.Y-cross, c.Y+cross, centerColor)

	drawLabel(out, "face", faceBox.Min.X+stroke+2, faceBox.Min.Y+stroke+13, faceColor)
	drawLabel(out, "padding", padBox.Min.X+stroke+2, padBox.Max.Y-stroke-4, paddingColor)

	return out
}

func drawLabel(img *image.NRGBA, text string, x, y int, c color.NRGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func drawBox(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	x0, y0, x1, y1 := r.Min.X, r.Min.Y, r.Max.X, r.Max.Y
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	x0 = max(x0, 0)
	x1 = min(x1, img.Bounds().Dx())
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	y0 = max(y0, 0)
	y1 = min(y1, img.Bounds().Dy())
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
