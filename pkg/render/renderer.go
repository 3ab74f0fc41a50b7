// Package render turns a crop of a source image into an encoded headshot of
// exactly the target size.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/headshot/internal/logging"
	"github.com/menta2k/headshot/internal/metrics"
	"github.com/menta2k/headshot/pkg/geometry"
	"github.com/menta2k/headshot/pkg/types"
)

// Request describes one render
type Request struct {
	Image   *types.Image
	Crop    types.CropRect
	Params  types.Params
	Variant types.Variant
	// Overlay is drawn on preview renders only; export renders ignore it.
	Overlay *Overlay
}

// Overlay holds the geometry drawn on annotated previews
type Overlay struct {
	Face    types.FaceBox
	Padding geometry.Padding
}

// Renderer crops, resizes, borders and encodes images. It is stateless and
// safe for concurrent use.
type Renderer struct {
	filter imaging.ResampleFilter
	logger *slog.Logger
}

// New creates a renderer using Lanczos resampling
func New(logger *slog.Logger) *Renderer {
	return &Renderer{filter: imaging.Lanczos, logger: logging.Or(logger)}
}

// Render produces the encoded output for req.
func (r *Renderer) Render(ctx context.Context, req Request) (*types.RenderResult, error) {
	start := time.Now()
	variant := req.Variant
	if variant == "" {
		variant = types.VariantPreview
	}

	res, err := r.render(ctx, req, variant)
	status := "ok"
	if err != nil {
		status = string(types.KindOf(err))
	}
	metrics.RendersTotal.WithLabelValues(string(variant), status).Inc()
	metrics.RenderDuration.WithLabelValues(string(variant)).Observe(time.Since(start).Seconds())
	return res, err
}

func (r *Renderer) render(ctx context.Context, req Request, variant types.Variant) (*types.RenderResult, error) {
	const op = "render"

	if req.Image == nil || req.Image.Pixels == nil {
		return nil, types.Errorf(types.KindDecodeError, op, "no decoded source image")
	}
	p := req.Params.Normalized()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !Supported(p.Format) {
		return nil, types.Errorf(types.KindUnsupportedFormat, op, "unsupported output format %q", p.Format)
	}
	if !req.Crop.Within(req.Image.Dims()) {
		return nil, types.Errorf(types.KindInvalidParameter, op,
			"crop %v outside image %dx%d", req.Crop, req.Image.Width, req.Image.Height)
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	canvas := r.compose(req.Image.Pixels, req.Crop, p)

	annotated := false
	if req.Overlay != nil && variant == types.VariantPreview {
		canvas = drawOverlay(canvas, req.Crop, *req.Overlay)
		annotated = true
	}

	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := encode(&buf, canvas, p); err != nil {
		return nil, types.Wrap(err, types.KindInternal, op, "failed to encode "+string(p.Format))
	}

	r.logger.Debug("rendered headshot",
		"variant", variant,
		"crop", req.Crop.String(),
		"format", p.Format,
		"bytes", buf.Len(),
		"annotated", annotated,
	)

	return &types.RenderResult{
		Data:      buf.Bytes(),
		Format:    p.Format,
		MIME:      p.Format.MIME(),
		Width:     p.TargetWidth,
		Height:    p.TargetHeight,
		Variant:   variant,
		Annotated: annotated,
		Crop:      req.Crop,
	}, nil
}

// compose crops src, fits the crop inside the target size and centers it on
// a border-colored canvas. Grayscale applies to the whole canvas.
func (r *Renderer) compose(src image.Image, crop types.CropRect, p types.Params) *image.NRGBA {
	tw, th := p.TargetWidth, p.TargetHeight
	// crop rectangles are zero-based, imaging.Crop works in src bounds
	b := src.Bounds()
	rect := crop.Rect().Add(b.Min)
	cropped := imaging.Crop(src, rect)

	newW, newH := FitSize(crop.Dx(), crop.Dy(), tw, th)
	resized := imaging.Resize(cropped, newW, newH, r.filter)

	canvas := imaging.New(tw, th, p.Border.NRGBA())
	canvas = imaging.Paste(canvas, resized, image.Pt((tw-newW)/2, (th-newH)/2))

	if p.Grayscale {
		canvas = imaging.Grayscale(canvas)
	}
	return canvas
}

// FitSize scales (cw, ch) by min(tw/cw, th/ch), flooring each side to at
// least one pixel.
func FitSize(cw, ch, tw, th int) (int, int) {
	var w, h int
	if tw*ch <= th*cw {
		w, h = tw, ch*tw/cw
	} else {
		w, h = cw*th/ch, th
	}
	return max(w, 1), max(h, 1)
}

// Supported reports whether f can be encoded
func Supported(f types.Format) bool {
	switch f {
	case types.FormatJPEG, types.FormatPNG, types.FormatWebP, types.FormatBMP, types.FormatTIFF:
		return true
	}
	return false
}

func encode(w io.Writer, img image.Image, p types.Params) error {
	switch p.Format {
	case types.FormatWebP:
		opts := &webp.Options{Lossless: p.Lossless, Quality: float32(p.Quality)}
		return webp.Encode(w, img, opts)
	case types.FormatPNG:
		return imaging.Encode(w, img, imaging.PNG)
	case types.FormatBMP:
		return imaging.Encode(w, img, imaging.BMP)
	case types.FormatTIFF:
		return imaging.Encode(w, img, imaging.TIFF)
	case types.FormatJPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(p.Quality))
	}
	return fmt.Errorf("no encoder for %q", p.Format)
}

// Thumbnail bounds a render for on-screen display: results whose larger side
// exceeds maxDim are downscaled and re-encoded as PNG. Smaller results are
// returned unchanged.
func Thumbnail(res *types.RenderResult, maxDim int) (*types.RenderResult, error) {
	const op = "render.thumbnail"
	if res == nil {
		return nil, types.Errorf(types.KindInvalidParameter, op, "nil render result")
	}
	if maxDim <= 0 || (res.Width <= maxDim && res.Height <= maxDim) {
		return res, nil
	}

	img, err := imaging.Decode(bytes.NewReader(res.Data))
	if err != nil {
		return nil, types.Wrap(err, types.KindDecodeError, op, "failed to decode render")
	}
	small := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, small, imaging.PNG); err != nil {
		return nil, types.Wrap(err, types.KindInternal, op, "failed to encode thumbnail")
	}

	out := *res
	out.Data = buf.Bytes()
	out.Format = types.FormatPNG
	out.MIME = types.FormatPNG.MIME()
	out.Width = small.Bounds().Dx()
	out.Height = small.Bounds().Dy()
	out.Variant = types.VariantPreview
	return &out, nil
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
