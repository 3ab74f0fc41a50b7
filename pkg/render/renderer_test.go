package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/headshot/pkg/geometry"
	"github.com/menta2k/headshot/pkg/types"
)

func createTestImage(width, height int, c color.NRGBA) *types.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return &types.Image{Pixels: img, Width: width, Height: height, ID: "test", Format: "png"}
}

func createPatternImage(width, height int) *types.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 255 / width), uint8(y * 255 / height), 200, 255})
		}
	}
	return &types.Image{Pixels: img, Width: width, Height: height, ID: "pattern", Format: "png"}
}

func decodeResult(t *testing.T, res *types.RenderResult) image.Image {
	t.Helper()
	img, err := imaging.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	return img
}

func exampleRequest() Request {
	p := types.DefaultParams()
	face := types.FaceBox{X: 400, Y: 300, W: 200, H: 250}
	return Request{
		Image:   createPatternImage(1000, 1000),
		Crop:    types.CropRect{Left: 314, Top: 192, Right: 687, Bottom: 659},
		Params:  p,
		Variant: types.VariantPreview,
		Overlay: &Overlay{Face: face, Padding: geometry.PaddingFor(face, p)},
	}
}

func TestRender_ExactDimensions(t *testing.T) {
	r := New(nil)
	formats := []types.Format{types.FormatJPEG, types.FormatPNG, types.FormatWebP, types.FormatBMP, types.FormatTIFF}

	for _, f := range formats {
		t.Run(string(f), func(t *testing.T) {
			req := exampleRequest()
			req.Params.Format = f
			res, err := r.Render(context.Background(), req)
			require.NoError(t, err)

			img := decodeResult(t, res)
			assert.Equal(t, 400, img.Bounds().Dx())
			assert.Equal(t, 500, img.Bounds().Dy())
			assert.Equal(t, f, res.Format)
			assert.Equal(t, f.MIME(), res.MIME)
			assert.Equal(t, req.Crop, res.Crop)
		})
	}
}

func TestRender_WebPLossless(t *testing.T) {
	req := exampleRequest()
	req.Params.Format = types.FormatWebP
	req.Params.Lossless = true
	req.Overlay = nil

	res, err := New(nil).Render(context.Background(), req)
	require.NoError(t, err)
	img := decodeResult(t, res)
	assert.Equal(t, image.Pt(400, 500), img.Bounds().Size())
}

func TestRender_Letterbox(t *testing.T) {
	white := color.NRGBA{255, 255, 255, 255}
	req := Request{
		Image:   createTestImage(300, 300, white),
		Crop:    types.CropRect{Left: 100, Top: 100, Right: 200, Bottom: 200},
		Params:  types.DefaultParams(),
		Variant: types.VariantExport,
	}
	req.Params.Format = types.FormatPNG

	res, err := New(nil).Render(context.Background(), req)
	require.NoError(t, err)
	img := decodeResult(t, res)

	// 100x100 fits 400x500 as 400x400, centered with 50px bands top and bottom
	top := color.NRGBAModel.Convert(img.At(200, 10)).(color.NRGBA)
	mid := color.NRGBAModel.Convert(img.At(200, 250)).(color.NRGBA)
	bottom := color.NRGBAModel.Convert(img.At(200, 495)).(color.NRGBA)
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, top)
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, bottom)
	assert.GreaterOrEqual(t, mid.R, uint8(250))
}

func TestRender_Grayscale(t *testing.T) {
	req := exampleRequest()
	req.Params.Format = types.FormatPNG
	req.Params.Grayscale = true
	req.Overlay = nil

	res, err := New(nil).Render(context.Background(), req)
	require.NoError(t, err)
	img := decodeResult(t, res)

	for _, pt := range []image.Point{{10, 10}, {200, 250}, {390, 490}} {
		c := color.NRGBAModel.Convert(img.At(pt.X, pt.Y)).(color.NRGBA)
		assert.Equal(t, c.R, c.G, "pixel %v not gray", pt)
		assert.Equal(t, c.G, c.B, "pixel %v not gray", pt)
	}
}

func TestRender_ExportIgnoresOverlay(t *testing.T) {
	r := New(nil)
	ctx := context.Background()

	plain := exampleRequest()
	plain.Variant = types.VariantExport
	plain.Overlay = nil
	want, err := r.Render(ctx, plain)
	require.NoError(t, err)

	withOverlay := exampleRequest()
	withOverlay.Variant = types.VariantExport
	got, err := r.Render(ctx, withOverlay)
	require.NoError(t, err)

	assert.False(t, got.Annotated)
	assert.Equal(t, want.Data, got.Data)

	preview, err := r.Render(ctx, exampleRequest())
	require.NoError(t, err)
	assert.True(t, preview.Annotated)
	assert.NotEqual(t, want.Data, preview.Data)
}

func TestRender_Deterministic(t *testing.T) {
	r := New(nil)
	req := exampleRequest()
	req.Variant = types.VariantExport

	a, err := r.Render(context.Background(), req)
	require.NoError(t, err)
	b, err := r.Render(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data)
}

func TestRender_Errors(t *testing.T) {
	r := New(nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(req *Request)
		kind   types.Kind
	}{
		{"nil image", func(req *Request) { req.Image = nil }, types.KindDecodeError},
		{"nil pixels", func(req *Request) { req.Image = &types.Image{Width: 10, Height: 10} }, types.KindDecodeError},
		{"unknown format", func(req *Request) { req.Params.Format = "heic" }, types.KindUnsupportedFormat},
		{"crop outside", func(req *Request) { req.Crop.Right = 1200 }, types.KindInvalidParameter},
		{"empty crop", func(req *Request) { req.Crop.Right = req.Crop.Left }, types.KindInvalidParameter},
		{"bad target", func(req *Request) { req.Params.TargetWidth = 0 }, types.KindInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := exampleRequest()
			tt.mutate(&req)
			_, err := r.Render(ctx, req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, types.KindOf(err), "got %v", err)
		})
	}
}

func TestFitSize(t *testing.T) {
	tests := []struct {
		cw, ch, tw, th int
		w, h           int
	}{
		{373, 467, 400, 500, 399, 500},
		{100, 100, 400, 500, 400, 400},
		{500, 100, 400, 500, 400, 80},
		{1, 1000, 400, 500, 1, 500},
		{400, 500, 400, 500, 400, 500},
	}
	for _, tt := range tests {
		w, h := FitSize(tt.cw, tt.ch, tt.tw, tt.th)
		assert.Equal(t, tt.w, w, "%+v", tt)
		assert.Equal(t, tt.h, h, "%+v", tt)
	}
}

func TestThumbnail(t *testing.T) {
	req := exampleRequest()
	req.Params.TargetWidth, req.Params.TargetHeight = 1600, 2000
	req.Overlay = nil

	res, err := New(nil).Render(context.Background(), req)
	require.NoError(t, err)

	thumb, err := Thumbnail(res, 800)
	require.NoError(t, err)
	assert.Equal(t, 640, thumb.Width)
	assert.Equal(t, 800, thumb.Height)
	assert.Equal(t, types.FormatPNG, thumb.Format)
	img := decodeResult(t, thumb)
	assert.Equal(t, image.Pt(640, 800), img.Bounds().Size())

	same, err := Thumbnail(thumb, 800)
	require.NoError(t, err)
	assert.Same(t, thumb, same)

	_, err = Thumbnail(nil, 800)
	assert.Error(t, err)
}
