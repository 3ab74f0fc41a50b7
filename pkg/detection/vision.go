package detection

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/headshot/internal/logging"
	"github.com/menta2k/headshot/pkg/client"
	"github.com/menta2k/headshot/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// FacePrompt asks a vision model for face bounding boxes
const FacePrompt = `You are a face locator for portrait cropping.

Return JSON only:
{
  "faces": [
    {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0, "confidence": 0.0}
  ],
  "description": "short neutral sentence (<= 20 words)"
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels); x,y is the top-left corner.
- One entry per visible human face. The box covers forehead to chin and ear to ear, not hair or shoulders.
- If no face is visible, return {"faces": [], "description": "no face"}.
- Do not guess real identities.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// VisionConfig configures a VisionDetector
type VisionConfig struct {
	Model         string
	Prompt        string
	MaxDimension  int     // longest side of the image sent to the model
	JPEGQuality   int     // quality of the image sent to the model
	MinConfidence float64 // boxes below this are dropped; 0 keeps all
}

// DefaultVisionConfig returns sensible defaults for the given model
func DefaultVisionConfig(model string) VisionConfig {
	return VisionConfig{
		Model:         model,
		Prompt:        FacePrompt,
		MaxDimension:  1024,
		JPEGQuality:   85,
		MinConfidence: 0.2,
	}
}

// VisionDetector locates faces by asking a vision model
type VisionDetector struct {
	client client.VisionClient
	cfg    VisionConfig
	logger *slog.Logger
}

// NewVisionDetector creates a detector backed by a vision client
func NewVisionDetector(c client.VisionClient, cfg VisionConfig, logger *slog.Logger) *VisionDetector {
	if cfg.Prompt == "" {
		cfg.Prompt = FacePrompt
	}
	return &VisionDetector{client: c, cfg: cfg, logger: logging.Or(logger)}
}

// DetectFaces sends a downscaled JPEG of img to the model and converts the
// boxes it reports to source pixel coordinates.
func (d *VisionDetector) DetectFaces(ctx context.Context, img *types.Image) ([]types.FaceBox, error) {
	if img == nil || img.Pixels == nil {
		return nil, types.Errorf(types.KindDecodeError, "detection.vision", "no decoded source image")
	}

	imgB64, sent, err := PrepareImageForModel(img.Pixels, d.cfg.MaxDimension, d.cfg.JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}

	result, err := d.client.AnalyzeImage(ctx, d.cfg.Model, d.cfg.Prompt, imgB64)
	if err != nil {
		return nil, fmt.Errorf("vision model request failed: %w", err)
	}

	faces := make([]types.FaceBox, 0, len(result.Faces))
	for _, b := range result.Faces {
		if d.cfg.MinConfidence > 0 && b.Confidence > 0 && b.Confidence < d.cfg.MinConfidence {
			continue
		}
		f, ok := boxToPixels(normalizeBox(b, sent), img.Width, img.Height)
		if ok {
			faces = append(faces, f)
		}
	}

	d.logger.Debug("vision detection", "model", d.cfg.Model, "reported", len(result.Faces), "faces", len(faces))
	return faces, nil
}

// Probe checks whether the model can see images at all
func (d *VisionDetector) Probe(ctx context.Context, img *types.Image) (string, error) {
	imgB64, _, err := PrepareImageForModel(img.Pixels, d.cfg.MaxDimension, d.cfg.JPEGQuality)
	if err != nil {
		return "", err
	}
	return d.client.SimpleQuery(ctx, d.cfg.Model, SimpleTestPrompt, imgB64)
}

// PrepareImageForModel downscales img to maxDim and encodes it as base64
// JPEG. It also returns the size of the image actually sent.
func PrepareImageForModel(img image.Image, maxDim, quality int) (string, image.Point, error) {
	if maxDim > 0 {
		b := img.Bounds()
		if b.Dx() > maxDim || b.Dy() > maxDim {
			img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
		}
	}
	if quality <= 0 {
		quality = 85
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return "", image.Point{}, err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), img.Bounds().Size(), nil
}

// normalizeBox brings a reported box into [0,1]. Models occasionally answer
// in pixels of the image they were sent.
func normalizeBox(b types.Box, sent image.Point) types.Box {
	if (b.X > 1 || b.Y > 1 || b.W > 1 || b.H > 1) && sent.X > 0 && sent.Y > 0 {
		b.X /= float64(sent.X)
		b.W /= float64(sent.X)
		b.Y /= float64(sent.Y)
		b.H /= float64(sent.Y)
	}
	x0, y0 := clampf(b.X, 0, 1), clampf(b.Y, 0, 1)
	x1, y1 := clampf(b.X+b.W, 0, 1), clampf(b.Y+b.H, 0, 1)
	return types.Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0, Confidence: b.Confidence}
}

// boxToPixels maps a normalized box onto a w x h image
func boxToPixels(b types.Box, w, h int) (types.FaceBox, bool) {
	x0 := int(math.Round(b.X * float64(w)))
	y0 := int(math.Round(b.Y * float64(h)))
	x1 := int(math.Round((b.X + b.W) * float64(w)))
	y1 := int(math.Round((b.Y + b.H) * float64(h)))
	return clip(types.FaceBox{X: x0, Y: y0, W: x1 - x0, H: y1 - y0, Q: b.Confidence}, w, h)
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
