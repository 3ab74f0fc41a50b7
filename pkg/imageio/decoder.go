// Package imageio turns uploaded bytes into a decoded source image.
package imageio

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/headshot/internal/logging"
	"github.com/menta2k/headshot/pkg/types"
)

// Config bounds the accepted source images
type Config struct {
	MinDimension int // smallest accepted width or height
	MaxDimension int // largest accepted width or height
}

// DefaultConfig accepts images between 100 and 10000 pixels on each side.
func DefaultConfig() Config {
	return Config{MinDimension: 100, MaxDimension: 10000}
}

// Decoder decodes JPEG, PNG, GIF, BMP, TIFF and WebP sources, applying EXIF
// orientation. It holds no mutable state and may be shared between sessions.
type Decoder struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a decoder with the default configuration
func New(logger *slog.Logger) *Decoder {
	return NewWithConfig(DefaultConfig(), logger)
}

// NewWithConfig creates a decoder with custom bounds
func NewWithConfig(cfg Config, logger *slog.Logger) *Decoder {
	return &Decoder{cfg: cfg, logger: logging.Or(logger)}
}

// Decode validates and decodes data. Undecodable content fails with
// KindDecodeError; images outside the configured bounds fail with
// KindInvalidParameter.
func (d *Decoder) Decode(ctx context.Context, data []byte) (*types.Image, error) {
	const op = "imageio.decode"

	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, types.Errorf(types.KindDecodeError, op, "empty image data")
	}

	cfg, format, err := decodeConfig(data)
	if err != nil {
		return nil, types.Wrap(err, types.KindDecodeError, op, "unrecognized image data")
	}
	if err := d.checkBounds(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	img, err := decodePixels(data, format)
	if err != nil {
		return nil, types.Wrap(err, types.KindDecodeError, op, "failed to decode "+format+" image")
	}

	// EXIF rotation may swap the axes
	b := img.Bounds()
	if err := d.checkBounds(b.Dx(), b.Dy()); err != nil {
		return nil, err
	}

	out := &types.Image{
		Pixels: img,
		Width:  b.Dx(),
		Height: b.Dy(),
		ID:     Identity(data),
		Format: format,
	}
	d.logger.Debug("decoded image", "format", format, "width", out.Width, "height", out.Height, "id", out.ID)
	return out, nil
}

func (d *Decoder) checkBounds(w, h int) error {
	const op = "imageio.decode"
	if d.cfg.MinDimension > 0 && (w < d.cfg.MinDimension || h < d.cfg.MinDimension) {
		return types.Errorf(types.KindInvalidParameter, op,
			"image too small: %dx%d (minimum %dx%d)", w, h, d.cfg.MinDimension, d.cfg.MinDimension)
	}
	if d.cfg.MaxDimension > 0 && (w > d.cfg.MaxDimension || h > d.cfg.MaxDimension) {
		return types.Errorf(types.KindInvalidParameter, op,
			"image too large: %dx%d (maximum %dx%d)", w, h, d.cfg.MaxDimension, d.cfg.MaxDimension)
	}
	return nil
}

// Identity is the content digest used as an image's cache identity
func Identity(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

func decodeConfig(data []byte) (image.Config, string, error) {
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return cfg, format, nil
	}
	// Fallback: explicit WebP probe for variants the registered decoder rejects
	cfg, err := webp.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("image: unknown or unsupported format")
	}
	return cfg, "webp", nil
}

func decodePixels(data []byte, format string) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}
	if format != "webp" {
		return nil, err
	}
	return webp.Decode(bytes.NewReader(data))
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
