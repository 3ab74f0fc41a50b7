// Package headshot turns a portrait and a detected face into a fixed-size,
// aspect-correct, bordered headshot, re-rendering instantly as padding,
// zoom, shift, size or border parameters change.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//		"os"
//
//		"github.com/menta2k/headshot"
//		"github.com/menta2k/headshot/pkg/types"
//	)
//
//	func main() {
//		gen := headshot.New()
//		session := gen.NewSession()
//
//		data, err := os.ReadFile("portrait.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//		if err := session.Load(context.Background(), data); err != nil {
//			log.Fatal(err)
//		}
//
//		params := types.DefaultParams()
//		params.ZoomOut = 1.3
//		if _, err := session.Apply(context.Background(), params); err != nil {
//			log.Fatal(err)
//		}
//
//		out, err := session.Export(context.Background())
//		if err != nil {
//			log.Fatal(err)
//		}
//		_ = os.WriteFile("headshot.jpg", out.Data, 0o644)
//	}
//
// The package consists of these components:
//
//  1. Geometry (pkg/geometry): face box and parameters to a crop rectangle
//  2. Render (pkg/render): crop, resize, border, overlay and encode
//  3. Cache (pkg/cache): per-session render memo
//  4. History (pkg/history): five-deep undo stack
//  5. Pipeline (pkg/pipeline): the per-session state machine tying them together
//
// Face detection (pkg/detection) runs locally with pigo or through a vision
// model served by Ollama or llama.cpp.
package headshot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/menta2k/headshot/internal/logging"
	"github.com/menta2k/headshot/pkg/cache"
	"github.com/menta2k/headshot/pkg/detection"
	"github.com/menta2k/headshot/pkg/history"
	"github.com/menta2k/headshot/pkg/imageio"
	"github.com/menta2k/headshot/pkg/pipeline"
	"github.com/menta2k/headshot/pkg/render"
	"github.com/menta2k/headshot/pkg/types"
)

// Version of the headshot library
const Version = "1.0.0"

// Config configures a Generator
type Config struct {
	Decoder  imageio.Config
	Detector detection.FaceDetector // nil detects nothing and always falls back
	// CacheMaxEntries bounds each session's render cache; zero is unbounded
	CacheMaxEntries int
	HistorySize     int
	Annotate        bool
	Logger          *slog.Logger
}

// DefaultConfig returns the configuration used by New
func DefaultConfig() Config {
	return Config{
		Decoder:         imageio.DefaultConfig(),
		CacheMaxEntries: 64,
		HistorySize:     history.DefaultCapacity,
	}
}

// Generator holds the collaborators shared by every session: the decoder,
// the face detector and the renderer. None of them keeps per-session state.
type Generator struct {
	cfg      Config
	decoder  *imageio.Decoder
	detector detection.FaceDetector
	renderer *render.Renderer
	logger   *slog.Logger
}

// New creates a Generator with default configuration and no face detector
func New() *Generator {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a Generator with custom configuration
func NewWithConfig(cfg Config) *Generator {
	logger := logging.Or(cfg.Logger)
	detector := cfg.Detector
	if detector == nil {
		detector = detection.Noop{}
	}
	return &Generator{
		cfg:      cfg,
		decoder:  imageio.NewWithConfig(cfg.Decoder, logger),
		detector: detector,
		renderer: render.New(logger),
		logger:   logger,
	}
}

// NewSession returns a pipeline with its own cache and history
func (g *Generator) NewSession() *pipeline.Pipeline {
	return pipeline.New(pipeline.Options{
		Decoder:  g.decoder,
		Detector: g.detector,
		Renderer: g.renderer,
		Cache:    cache.NewWithConfig(cache.Config{MaxEntries: g.cfg.CacheMaxEntries}, g.logger),
		History:  history.NewWithCapacity(g.cfg.HistorySize),
		Logger:   g.logger,
		Annotate: g.cfg.Annotate,
	})
}

// Detector returns the shared face detector
func (g *Generator) Detector() detection.FaceDetector {
	return g.detector
}

// Process is a convenience function that loads data, applies params and
// returns the export render.
func (g *Generator) Process(ctx context.Context, data []byte, params types.Params) (*types.RenderResult, error) {
	session := g.NewSession()
	if err := session.Load(ctx, data); err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	if _, err := session.Apply(ctx, params); err != nil {
		return nil, fmt.Errorf("failed to apply parameters: %w", err)
	}
	return session.Export(ctx)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
