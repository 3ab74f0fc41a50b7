// Package pipeline sequences geometry, caching, rendering and history for
// one headshot session.
//
// A Pipeline moves through Idle, Processing, Ready and Error. Load enters
// Idle with a new source image; Apply, Undo and Reset pass through Processing
// and end in Ready or Error. A failed operation never replaces the last
// Ready result.
package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/headshot/internal/logging"
	"github.com/menta2k/headshot/internal/metrics"
	"github.com/menta2k/headshot/pkg/cache"
	"github.com/menta2k/headshot/pkg/detection"
	"github.com/menta2k/headshot/pkg/geometry"
	"github.com/menta2k/headshot/pkg/history"
	"github.com/menta2k/headshot/pkg/imageio"
	"github.com/menta2k/headshot/pkg/render"
	"github.com/menta2k/headshot/pkg/types"
)

// State is the pipeline state
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateReady      State = "ready"
	StateError      State = "error"
)

// NoFaceWarning is attached to results rendered with fallback geometry
const NoFaceWarning = "no face detected; using centered crop"

// Decoder turns source bytes into an image
type Decoder interface {
	Decode(ctx context.Context, data []byte) (*types.Image, error)
}

// Renderer produces encoded output for a crop
type Renderer interface {
	Render(ctx context.Context, req render.Request) (*types.RenderResult, error)
}

// Options configures a Pipeline. Nil fields get defaults.
type Options struct {
	Decoder  Decoder
	Detector detection.FaceDetector
	Renderer Renderer
	Cache    *cache.Cache
	History  *history.Stack
	Logger   *slog.Logger
	// Annotate draws the face overlay on preview renders
	Annotate bool
}

// Encoding overrides the output encoding of the active parameters
type Encoding struct {
	Format   types.Format
	Quality  int // zero keeps the active quality
	Lossless bool
}

// Pipeline is one session's headshot state. Operations are serialized;
// accessors may be called concurrently with them.
type Pipeline struct {
	id       string
	decoder  Decoder
	detector detection.FaceDetector
	renderer Renderer
	cache    *cache.Cache
	history  *history.Stack
	logger   *slog.Logger

	op sync.Mutex // serializes operations

	mu        sync.RWMutex
	state     State
	img       *types.Image
	face      *types.FaceBox
	active    types.Params
	hasActive bool
	result    *types.RenderResult
	err       error
	annotate  bool
}

// New creates a pipeline in the Idle state with no image
func New(opts Options) *Pipeline {
	logger := logging.Or(opts.Logger)
	id := uuid.NewString()

	p := &Pipeline{
		id:       id,
		decoder:  opts.Decoder,
		detector: opts.Detector,
		renderer: opts.Renderer,
		cache:    opts.Cache,
		history:  opts.History,
		logger:   logger.With("session", id),
		state:    StateIdle,
		annotate: opts.Annotate,
	}
	if p.decoder == nil {
		p.decoder = imageio.New(logger)
	}
	if p.detector == nil {
		p.detector = detection.Noop{}
	}
	if p.renderer == nil {
		p.renderer = render.New(logger)
	}
	if p.cache == nil {
		p.cache = cache.New(logger)
	}
	if p.history == nil {
		p.history = history.New()
	}
	return p
}

// Load decodes data, detects faces and makes the largest face current.
func (p *Pipeline) Load(ctx context.Context, data []byte) error {
	p.op.Lock()
	defer p.op.Unlock()

	p.setState(StateProcessing)
	img, err := p.decoder.Decode(ctx, data)
	if err != nil {
		p.fail(err)
		return err
	}
	return p.loadImage(ctx, img)
}

// LoadImage makes an already decoded image current. An image without an ID
// is given a fresh one.
func (p *Pipeline) LoadImage(ctx context.Context, img *types.Image) error {
	p.op.Lock()
	defer p.op.Unlock()

	p.setState(StateProcessing)
	if img == nil || img.Pixels == nil {
		err := types.Errorf(types.KindDecodeError, "pipeline.load", "no decoded image")
		p.fail(err)
		return err
	}
	if img.ID == "" {
		// each anonymous image gets its own cache namespace
		anon := *img
		anon.ID = "mem-" + uuid.NewString()
		img = &anon
	}
	return p.loadImage(ctx, img)
}

func (p *Pipeline) loadImage(ctx context.Context, img *types.Image) error {
	faces, err := p.detector.DetectFaces(ctx, img)
	if err != nil {
		if ctx.Err() != nil {
			p.fail(ctx.Err())
			return ctx.Err()
		}
		// a broken detector degrades to fallback geometry
		p.logger.Error("face detection failed", "image", img.ID, "error", err)
		faces = nil
	}
	metrics.FacesDetected.Observe(float64(len(faces)))
	face := detection.Largest(faces)

	p.mu.Lock()
	p.img = img
	p.face = face
	p.result = nil
	p.err = nil
	p.mu.Unlock()

	p.logger.Info("image loaded",
		"image", img.ID,
		"width", img.Width,
		"height", img.Height,
		"faces", len(faces),
	)
	p.setState(StateIdle)
	return nil
}

// Apply renders params as the new preview. On success the previously
// active parameters are pushed to history when they differ.
func (p *Pipeline) Apply(ctx context.Context, params types.Params) (*types.RenderResult, error) {
	p.op.Lock()
	defer p.op.Unlock()

	p.setState(StateProcessing)
	res, err := p.preview(ctx, params)
	if err != nil {
		p.fail(err)
		return nil, err
	}

	p.mu.Lock()
	if p.hasActive && p.active.Normalized() != params.Normalized() {
		p.history.Push(p.active)
	}
	p.commit(params, res)
	p.mu.Unlock()

	p.setState(StateReady)
	return res, nil
}

// Undo restores the most recent history entry. ok is false when history is
// empty; that is not an error and leaves the pipeline unchanged.
func (p *Pipeline) Undo(ctx context.Context) (res *types.RenderResult, ok bool, err error) {
	p.op.Lock()
	defer p.op.Unlock()

	prev, ok := p.history.Undo()
	if !ok {
		p.logger.Debug("undo ignored", "kind", types.KindNoHistoryAvailable)
		return nil, false, nil
	}

	p.setState(StateProcessing)
	res, err = p.preview(ctx, prev)
	if err != nil {
		// keep the entry so a later undo can retry it
		p.history.Push(prev)
		p.fail(err)
		return nil, true, err
	}

	p.mu.Lock()
	p.commit(prev, res)
	p.mu.Unlock()

	p.setState(StateReady)
	return res, true, nil
}

// Reset clears history and applies params, typically the profile defaults,
// without recording the current parameters.
func (p *Pipeline) Reset(ctx context.Context, params types.Params) (*types.RenderResult, error) {
	p.op.Lock()
	defer p.op.Unlock()

	p.history.Reset()
	p.setState(StateProcessing)
	res, err := p.preview(ctx, params)
	if err != nil {
		p.fail(err)
		return nil, err
	}

	p.mu.Lock()
	p.commit(params, res)
	p.mu.Unlock()

	p.setState(StateReady)
	return res, nil
}

// Export renders the active parameters without annotations. It does not
// change the pipeline state.
func (p *Pipeline) Export(ctx context.Context) (*types.RenderResult, error) {
	p.op.Lock()
	defer p.op.Unlock()

	params, err := p.activeParams()
	if err != nil {
		return nil, err
	}
	return p.render(ctx, params, types.VariantExport)
}

// ExportAll renders the active parameters once per encoding, concurrently.
// Results are returned in the order of encodings.
func (p *Pipeline) ExportAll(ctx context.Context, encodings []Encoding) ([]*types.RenderResult, error) {
	p.op.Lock()
	defer p.op.Unlock()

	params, err := p.activeParams()
	if err != nil {
		return nil, err
	}

	results := make([]*types.RenderResult, len(encodings))
	g, ctx := errgroup.WithContext(ctx)
	for i, enc := range encodings {
		variant := params
		variant.Format = enc.Format
		if enc.Quality > 0 {
			variant.Quality = enc.Quality
		}
		variant.Lossless = enc.Lossless

		g.Go(func() error {
			res, err := p.render(ctx, variant, types.VariantExport)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// SetAnnotations toggles the preview overlay for subsequent renders.
// Export bytes never depend on it.
func (p *Pipeline) SetAnnotations(on bool) {
	p.mu.Lock()
	p.annotate = on
	p.mu.Unlock()
}

func (p *Pipeline) preview(ctx context.Context, params types.Params) (*types.RenderResult, error) {
	return p.render(ctx, params, types.VariantPreview)
}

// render computes the crop and returns the cached or freshly rendered result.
func (p *Pipeline) render(ctx context.Context, params types.Params, variant types.Variant) (*types.RenderResult, error) {
	const op = "pipeline.render"

	p.mu.RLock()
	img, face, annotate := p.img, p.face, p.annotate
	p.mu.RUnlock()

	if img == nil {
		return nil, types.Errorf(types.KindInvalidParameter, op, "no image loaded")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	crop, err := geometry.ComputeCropBox(face, params, img.Dims())
	if err != nil {
		return nil, err
	}

	var warnings []string
	if face == nil {
		metrics.FallbackCropsTotal.Inc()
		p.logger.Warn("using fallback geometry", "kind", types.KindNoFaceDetected, "crop", crop.String())
		warnings = append(warnings, NoFaceWarning)
	}

	annotated := variant == types.VariantPreview && annotate && face != nil
	key := cache.NewKey(img.ID, params, variant, annotated)

	res, hit, err := p.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*types.RenderResult, error) {
		req := render.Request{Image: img, Crop: crop, Params: params, Variant: variant}
		if annotated {
			req.Overlay = &render.Overlay{Face: *face, Padding: geometry.PaddingFor(*face, params)}
		}
		out, err := p.renderer.Render(ctx, req)
		if err != nil {
			return nil, err
		}
		if face != nil {
			f := *face
			out.Face = &f
		}
		out.Warnings = warnings
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Debug("render complete", "variant", variant, "cache_hit", hit, "crop", crop.String())
	return res, nil
}

func (p *Pipeline) activeParams() (types.Params, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.hasActive {
		return types.Params{}, types.Errorf(types.KindInvalidParameter, "pipeline.export", "no parameters applied")
	}
	return p.active, nil
}

// commit must be called with mu held
func (p *Pipeline) commit(params types.Params, res *types.RenderResult) {
	p.active = params
	p.hasActive = true
	p.result = res
	p.err = nil
}

func (p *Pipeline) fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()

	p.logger.Error("pipeline operation failed", "kind", types.KindOf(err), "error", err)
	p.setState(StateError)
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	from := p.state
	p.state = s
	p.mu.Unlock()

	metrics.StateTransitionsTotal.WithLabelValues(string(s)).Inc()
	p.logger.Debug("state transition", "from", from, "to", s)
}

// ID returns the session identifier
func (p *Pipeline) ID() string { return p.id }

// State returns the current state
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Result returns the last Ready preview, nil before the first success
func (p *Pipeline) Result() *types.RenderResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.result
}

// Err returns the failure of the last operation, nil after a success
func (p *Pipeline) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

// Active returns the parameters of the last Ready preview
func (p *Pipeline) Active() (types.Params, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active, p.hasActive
}

// Face returns the selected face, nil when none was found
func (p *Pipeline) Face() *types.FaceBox {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.face == nil {
		return nil
	}
	f := *p.face
	return &f
}

// Image returns the current source image
func (p *Pipeline) Image() *types.Image {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.img
}

// History returns the undo snapshots, most recent first
func (p *Pipeline) History() []types.Params {
	return p.history.Snapshots()
}

// Annotations reports whether preview overlays are enabled
func (p *Pipeline) Annotations() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.annotate
}
