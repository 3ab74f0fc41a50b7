package detection

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"

	"github.com/menta2k/headshot/internal/logging"
	"github.com/menta2k/headshot/pkg/types"
)

// PigoConfig tunes the cascade scan
type PigoConfig struct {
	MinSize      int     // smallest face side in pixels
	MaxSize      int     // largest face side in pixels, 0 for the image's shorter side
	ShiftFactor  float64 // sliding window step relative to window size
	ScaleFactor  float64 // window growth per scale
	IoUThreshold float64 // overlap above which detections are merged
	MinQuality   float32 // detections at or below this score are dropped
}

// DefaultPigoConfig mirrors the commonly used facefinder settings
func DefaultPigoConfig() PigoConfig {
	return PigoConfig{
		MinSize:      20,
		MaxSize:      0,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.18,
		MinQuality:   5.0,
	}
}

// PigoDetector finds faces with a pigo pixel-intensity cascade.
type PigoDetector struct {
	classifier *pigo.Pigo
	cfg        PigoConfig
	logger     *slog.Logger
}

// NewPigoDetector unpacks a facefinder cascade
func NewPigoDetector(cascade []byte, cfg PigoConfig, logger *slog.Logger) (*PigoDetector, error) {
	// pigo indexes the packet header directly
	if len(cascade) < 16 {
		return nil, fmt.Errorf("error unpacking cascade file: %d bytes is too short", len(cascade))
	}
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("error unpacking cascade file: %w", err)
	}
	return &PigoDetector{classifier: classifier, cfg: cfg, logger: logging.Or(logger)}, nil
}

// LoadPigoDetector reads the cascade from path
func LoadPigoDetector(path string, cfg PigoConfig, logger *slog.Logger) (*PigoDetector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file: %w", err)
	}
	return NewPigoDetector(data, cfg, logger)
}

// DetectFaces runs the cascade over a grayscale copy of img.
func (d *PigoDetector) DetectFaces(ctx context.Context, img *types.Image) ([]types.FaceBox, error) {
	if img == nil || img.Pixels == nil {
		return nil, types.Errorf(types.KindDecodeError, "detection.pigo", "no decoded source image")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nrgba := imaging.Clone(img.Pixels)
	pixels := pigo.RgbToGrayscale(nrgba)
	cols, rows := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()

	maxSize := d.cfg.MaxSize
	if maxSize <= 0 {
		maxSize = min(cols, rows)
	}

	params := pigo.CascadeParams{
		MinSize:     d.cfg.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: d.cfg.ShiftFactor,
		ScaleFactor: d.cfg.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0)
	dets = d.classifier.ClusterDetections(dets, d.cfg.IoUThreshold)

	faces := facesFromDetections(dets, d.cfg.MinQuality, cols, rows)
	d.logger.Debug("pigo detection", "candidates", len(dets), "faces", len(faces))
	return faces, nil
}

// facesFromDetections converts center/scale detections to clipped boxes.
func facesFromDetections(dets []pigo.Detection, minQ float32, w, h int) []types.FaceBox {
	faces := make([]types.FaceBox, 0, len(dets))
	for _, det := range dets {
		if det.Q <= minQ {
			continue
		}
		r := image.Rect(
			det.Col-det.Scale/2,
			det.Row-det.Scale/2,
			det.Col+det.Scale/2,
			det.Row+det.Scale/2,
		)
		f, ok := clip(types.FaceBox{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy(), Q: float64(det.Q)}, w, h)
		if ok {
			faces = append(faces, f)
		}
	}
	return faces
}
