package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/menta2k/headshot"
	"github.com/menta2k/headshot/internal/config"
	"github.com/menta2k/headshot/internal/logging"
	"github.com/menta2k/headshot/internal/metrics"
	"github.com/menta2k/headshot/internal/utils"
	"github.com/menta2k/headshot/pkg/client"
	"github.com/menta2k/headshot/pkg/detection"
	"github.com/menta2k/headshot/pkg/export"
	"github.com/menta2k/headshot/pkg/imageio"
	"github.com/menta2k/headshot/pkg/llamacpp"
	"github.com/menta2k/headshot/pkg/ollama"
	"github.com/menta2k/headshot/pkg/pipeline"
	"github.com/menta2k/headshot/pkg/render"
	"github.com/menta2k/headshot/pkg/types"
)

// previewMaxDim bounds the preview written with -preview
const previewMaxDim = 800

type options struct {
	in         string
	configPath string
	profile    string
	out        string
	format     string
	allFormats bool
	preview    string
	annotate   bool
	edits      string
	detector   string
	metricsOut string
	probe      bool
	strict     bool
	list       bool

	// per-flag overrides of the profile
	width, height              int
	padTop, padBottom, padSide float64
	shiftX, shiftY             int
	zoom                       float64
	border                     string
	grayscale                  bool
	quality                    int
}

func main() {
	var opts options

	flag.StringVar(&opts.in, "in", "", "input image path or URL (jpg/png/webp/bmp/tiff)")
	flag.StringVar(&opts.configPath, "config", "", "profile file (default $HEADSHOT_PROFILES or built-in defaults)")
	flag.StringVar(&opts.profile, "profile", config.DefaultProfile, "profile name")
	flag.StringVar(&opts.out, "out", "", "export name (default from the filename template)")
	flag.StringVar(&opts.format, "format", "", "download format key, e.g. jpeg|png|webp (default: profile format)")
	flag.BoolVar(&opts.allFormats, "all-formats", false, "export every download format in the profile file")
	flag.StringVar(&opts.preview, "preview", "", "write a display-sized PNG preview to this path")
	flag.BoolVar(&opts.annotate, "annotate", false, "draw face, padding and crop overlays on the preview")
	flag.StringVar(&opts.edits, "edits", "", `comma-separated edits applied in order, e.g. "zoom=1.3,shift_x=20,undo,reset"`)
	flag.StringVar(&opts.detector, "detector", "", "face detector: pigo|ollama|llamacpp|none (default $HEADSHOT_DETECTOR)")
	flag.StringVar(&opts.metricsOut, "metrics-out", "", "write Prometheus metrics to this file on exit")
	flag.BoolVar(&opts.probe, "probe", false, "ask the vision model to describe the input (ollama/llamacpp only)")
	flag.BoolVar(&opts.strict, "strict", false, "reject values outside the profile slider bounds instead of clamping")
	flag.BoolVar(&opts.list, "list", false, "list profiles and download formats, then exit")

	flag.IntVar(&opts.width, "width", 0, "target width override")
	flag.IntVar(&opts.height, "height", 0, "target height override")
	flag.Float64Var(&opts.padTop, "pad-top", 0, "top padding ratio override")
	flag.Float64Var(&opts.padBottom, "pad-bottom", 0, "bottom padding ratio override")
	flag.Float64Var(&opts.padSide, "pad-side", 0, "side padding ratio override")
	flag.IntVar(&opts.shiftX, "shift-x", 0, "horizontal shift override (px)")
	flag.IntVar(&opts.shiftY, "shift-y", 0, "vertical shift override (px)")
	flag.Float64Var(&opts.zoom, "zoom", 0, "zoom-out factor override")
	flag.StringVar(&opts.border, "border", "", "border color override (#rrggbb or name)")
	flag.BoolVar(&opts.grayscale, "grayscale", false, "render in grayscale")
	flag.IntVar(&opts.quality, "quality", 0, "JPEG/WebP quality override (1-100)")

	flag.Parse()
	if opts.in == "" && !opts.list {
		log.Fatalf("usage: %s -in portrait.jpg|URL [-config config.toml] [-profile linkedin] [-format png] [-edits zoom=1.3,undo] [-preview preview.png]", filepath.Base(os.Args[0]))
	}

	settings, err := config.LoadSettings()
	if err != nil {
		log.Fatalf("invalid settings: %v", err)
	}
	if opts.detector != "" {
		settings.Detector = strings.ToLower(opts.detector)
		if err := settings.Validate(); err != nil {
			log.Fatalf("invalid settings: %v", err)
		}
	}

	logger := logging.New(os.Stderr, logging.Options{
		Env:   settings.Env,
		Level: settings.LogLevel,
		File:  settings.LogFile,
	})
	slog.SetDefault(logger)
	if settings.IsDevelopment() {
		logger.Debug("settings loaded", "detector", settings.Detector, "export_dir", settings.ExportDir, "s3_bucket", settings.S3Bucket)
	}

	if opts.list {
		if err := list(opts, settings); err != nil {
			log.Fatalf("failed to list profiles: %v", err)
		}
		return
	}

	err = run(context.Background(), opts, settings, logger)

	if opts.metricsOut != "" {
		if dumpErr := writeMetrics(opts.metricsOut); dumpErr != nil {
			logger.Error("failed to write metrics", "error", dumpErr)
		}
	}
	if err != nil {
		logger.Error("headshot failed", "kind", types.KindOf(err), "error", err)
		os.Exit(1)
	}
}

// loadProfiles reads -config, then $HEADSHOT_PROFILES, then the per-user
// file if it exists. Without any of them the built-in defaults apply.
func loadProfiles(opts options, settings *config.Settings) (*config.File, error) {
	path := opts.configPath
	if path == "" {
		path = settings.ProfilesPath
	}
	if path == "" {
		if p := config.DefaultPath(); p != "" && utils.FileExists(p) {
			path = p
		}
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func list(opts options, settings *config.Settings) error {
	file, err := loadProfiles(opts, settings)
	if err != nil {
		return err
	}
	fmt.Println("profiles:")
	for _, name := range file.Profiles() {
		p, _ := file.Profile(name)
		fmt.Printf("  %-12s %dx%d %s zoom=%.2f border=%s\n", name, p.Params.TargetWidth, p.Params.TargetHeight, p.Params.Format, p.Params.ZoomOut, p.Params.Border)
	}
	fmt.Println("download formats:")
	for _, df := range file.Formats() {
		fmt.Printf("  %-12s %s %s\n", df.Key, df.Extension, df.MIME)
	}
	return nil
}

func run(ctx context.Context, opts options, settings *config.Settings, logger *slog.Logger) error {
	file, err := loadProfiles(opts, settings)
	if err != nil {
		return err
	}

	profile, err := file.Profile(opts.profile)
	if err != nil {
		return err
	}
	params, err := applyOverrides(profile.Params, opts)
	if err != nil {
		return err
	}
	gate := sliderGate(profile, opts.strict, logger)
	if params, err = gate(params); err != nil {
		return err
	}

	var dl config.DownloadFormat
	if opts.format != "" {
		df, ok := file.Format(opts.format)
		if !ok {
			return types.Errorf(types.KindUnsupportedFormat, "cli", "download format %q not offered (profile file offers %s)", opts.format, formatKeys(file))
		}
		dl = df
		params = df.Apply(params)
		if opts.quality > 0 {
			params.Quality = opts.quality
		}
	}

	detector, visionDetector, err := buildDetector(settings, logger)
	if err != nil {
		return err
	}
	exporter, err := buildExporter(settings, logger)
	if err != nil {
		return err
	}

	genCfg := headshot.DefaultConfig()
	genCfg.Detector = detector
	genCfg.CacheMaxEntries = settings.CacheMaxEntries
	genCfg.Annotate = opts.annotate || settings.Annotate
	genCfg.Logger = logger
	gen := headshot.NewWithConfig(genCfg)
	session := gen.NewSession()

	if !strings.Contains(opts.in, "://") {
		if !utils.FileExists(opts.in) {
			return types.Errorf(types.KindDecodeError, "cli", "input %q does not exist", opts.in)
		}
		if !utils.IsImageFile(opts.in) {
			logger.Warn("input extension is not a known image type, trying anyway", "in", opts.in)
		}
	}
	data, err := imageio.NewSource().Read(ctx, opts.in)
	if err != nil {
		return err
	}

	loadCtx, cancel := ctx, context.CancelFunc(func() {})
	if settings.VisionTimeout > 0 {
		loadCtx, cancel = context.WithTimeout(ctx, settings.VisionTimeout)
	}
	err = session.Load(loadCtx, data)
	cancel()
	if err != nil {
		return err
	}
	if face := session.Face(); face != nil {
		logger.Info("face selected", "x", face.X, "y", face.Y, "w", face.W, "h", face.H, "q", face.Q)
	}

	if opts.probe {
		if visionDetector == nil {
			return fmt.Errorf("-probe requires the ollama or llamacpp detector")
		}
		desc, err := visionDetector.Probe(ctx, session.Image())
		if err != nil {
			return err
		}
		fmt.Println(desc)
	}

	res, err := session.Apply(ctx, params)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		logger.Warn(w)
	}

	if err := runEdits(ctx, session, profile.Params, opts.edits, gate, logger); err != nil {
		return err
	}

	if opts.preview != "" {
		if err := writePreview(session.Result(), opts.preview); err != nil {
			return err
		}
		logger.Info("wrote preview", "path", opts.preview)
	}

	active, _ := session.Active()
	if opts.allFormats {
		return exportAll(ctx, session, file, profile.Name, active, exporter, logger)
	}

	out, err := session.Export(ctx)
	if err != nil {
		return err
	}
	ext := out.Format.Extension()
	if dl.Extension != "" {
		ext = dl.Extension
	}
	name := opts.out
	if name == "" {
		name = utils.GenerateFilename(file.UI.DefaultFilenameTemplate, profile.Name, active.Grayscale, ext)
	}
	loc, err := exporter.Export(ctx, name, out)
	if err != nil {
		return err
	}
	logger.Info("wrote headshot",
		"location", loc,
		"size", utils.FormatFileSize(int64(len(out.Data))),
		"crop", out.Crop.String(),
		"width", out.Width,
		"height", out.Height,
	)
	return nil
}

func exportAll(ctx context.Context, session *pipeline.Pipeline, file *config.File, profileName string, active types.Params, exporter export.Exporter, logger *slog.Logger) error {
	formats := file.Formats()
	encodings := make([]pipeline.Encoding, len(formats))
	for i, df := range formats {
		encodings[i] = pipeline.Encoding{Format: df.Format, Quality: df.Quality, Lossless: df.Lossless}
	}
	results, err := session.ExportAll(ctx, encodings)
	if err != nil {
		return err
	}
	for i, res := range results {
		name := utils.GenerateFilename(file.UI.DefaultFilenameTemplate, profileName, active.Grayscale, formats[i].Extension)
		loc, err := exporter.Export(ctx, name, res)
		if err != nil {
			return err
		}
		logger.Info("wrote headshot", "location", loc, "format", res.Format, "size", utils.FormatFileSize(int64(len(res.Data))))
	}
	return nil
}

// applyOverrides copies every explicitly set flag onto p.
func applyOverrides(p types.Params, opts options) (types.Params, error) {
	var err error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "width":
			p.TargetWidth = opts.width
		case "height":
			p.TargetHeight = opts.height
		case "pad-top":
			p.PaddingTop = opts.padTop
		case "pad-bottom":
			p.PaddingBottom = opts.padBottom
		case "pad-side":
			p.PaddingSide = opts.padSide
		case "shift-x":
			p.ShiftX = opts.shiftX
		case "shift-y":
			p.ShiftY = opts.shiftY
		case "zoom":
			p.ZoomOut = opts.zoom
		case "grayscale":
			p.Grayscale = opts.grayscale
		case "quality":
			p.Quality = opts.quality
		case "border":
			c, cerr := types.ParseColor(opts.border)
			if cerr != nil {
				err = cerr
				return
			}
			p.Border = c
		}
	})
	if err != nil {
		return types.Params{}, err
	}
	return p, p.Validate()
}

// sliderGate returns the check every parameter set passes before it is
// applied: rejected outside the profile slider bounds when strict, clamped
// into them otherwise.
func sliderGate(profile config.Profile, strict bool, logger *slog.Logger) func(types.Params) (types.Params, error) {
	return func(p types.Params) (types.Params, error) {
		if strict {
			if err := profile.Slider.Check(p); err != nil {
				return types.Params{}, err
			}
			return p, nil
		}
		if clamped := profile.Slider.Clamp(p); clamped != p {
			logger.Warn("parameters clamped to slider bounds", "profile", profile.Name)
			return clamped, nil
		}
		return p, nil
	}
}

// runEdits applies each edit of script in order. "undo" pops history and
// "reset" returns to defaults; everything else is a key=value change on the
// active parameters that goes through gate first.
func runEdits(ctx context.Context, session *pipeline.Pipeline, defaults types.Params, script string, gate func(types.Params) (types.Params, error), logger *slog.Logger) error {
	if strings.TrimSpace(script) == "" {
		return nil
	}
	for _, edit := range strings.Split(script, ",") {
		edit = strings.TrimSpace(edit)
		switch edit {
		case "":
			continue
		case "undo":
			_, ok, err := session.Undo(ctx)
			if err != nil {
				return err
			}
			if !ok {
				logger.Info("nothing to undo")
			}
			continue
		case "reset":
			if _, err := session.Reset(ctx, defaults); err != nil {
				return err
			}
			continue
		}

		key, value, found := strings.Cut(edit, "=")
		if !found {
			return types.Errorf(types.KindInvalidParameter, "cli.edits", "edit %q is not key=value, undo or reset", edit)
		}
		active, _ := session.Active()
		next, err := setParam(active, strings.TrimSpace(key), strings.TrimSpace(value))
		if err != nil {
			return err
		}
		if next, err = gate(next); err != nil {
			return err
		}
		if _, err := session.Apply(ctx, next); err != nil {
			return err
		}
		logger.Debug("applied edit", "edit", edit, "history", len(session.History()))
	}
	return nil
}

func setParam(p types.Params, key, value string) (types.Params, error) {
	const op = "cli.edits"
	bad := func(err error) (types.Params, error) {
		return types.Params{}, types.Wrap(err, types.KindInvalidParameter, op, fmt.Sprintf("invalid value for %s", key))
	}

	switch key {
	case "width", "target_width", "height", "target_height", "shift_x", "shift_y", "quality":
		n, err := strconv.Atoi(value)
		if err != nil {
			return bad(err)
		}
		switch key {
		case "width", "target_width":
			p.TargetWidth = n
		case "height", "target_height":
			p.TargetHeight = n
		case "shift_x":
			p.ShiftX = n
		case "shift_y":
			p.ShiftY = n
		case "quality":
			p.Quality = n
		}
	case "zoom", "zoom_out_factor", "padding_top", "padding_bottom", "padding_side":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return bad(err)
		}
		switch key {
		case "zoom", "zoom_out_factor":
			p.ZoomOut = v
		case "padding_top":
			p.PaddingTop = v
		case "padding_bottom":
			p.PaddingBottom = v
		case "padding_side":
			p.PaddingSide = v
		}
	case "grayscale", "lossless":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return bad(err)
		}
		if key == "grayscale" {
			p.Grayscale = v
		} else {
			p.Lossless = v
		}
	case "border", "border_color":
		c, err := types.ParseColor(value)
		if err != nil {
			return types.Params{}, err
		}
		p.Border = c
	case "format":
		p.Format = types.ParseFormat(value)
	default:
		return types.Params{}, types.Errorf(types.KindInvalidParameter, op, "unknown parameter %q", key)
	}
	return p, nil
}

func buildDetector(settings *config.Settings, logger *slog.Logger) (detection.FaceDetector, *detection.VisionDetector, error) {
	var visionClient client.VisionClient
	var err error

	switch settings.Detector {
	case config.DetectorNone:
		return detection.Noop{}, nil, nil
	case config.DetectorPigo:
		d, err := detection.LoadPigoDetector(settings.PigoCascade, detection.DefaultPigoConfig(), logger)
		if err != nil {
			return nil, nil, err
		}
		return d, nil, nil
	case config.DetectorOllama:
		visionClient, err = ollama.NewClient(settings.VisionURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
	case config.DetectorLlamaCpp:
		visionClient, err = llamacpp.NewClient(settings.VisionURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
	default:
		return nil, nil, fmt.Errorf("unknown detector: %s", settings.Detector)
	}

	vd := detection.NewVisionDetector(visionClient, detection.DefaultVisionConfig(settings.VisionModel), logger)
	return vd, vd, nil
}

func buildExporter(settings *config.Settings, logger *slog.Logger) (export.Exporter, error) {
	if settings.S3Bucket != "" {
		return export.NewS3Exporter(export.S3Config{
			Bucket:          settings.S3Bucket,
			Endpoint:        settings.S3Endpoint,
			Region:          settings.S3Region,
			AccessKeyID:     settings.S3AccessKeyID,
			SecretAccessKey: settings.S3SecretAccessKey,
		}, logger)
	}
	return export.NewLocalExporter(settings.ExportDir, logger)
}

func writePreview(res *types.RenderResult, path string) error {
	if res == nil {
		return fmt.Errorf("no preview rendered")
	}
	thumb, err := render.Thumbnail(res, previewMaxDim)
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, thumb.Data, 0o644)
}

func writeMetrics(path string) error {
	data, err := metrics.Dump()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func formatKeys(file *config.File) string {
	var keys []string
	for _, df := range file.Formats() {
		keys = append(keys, df.Key)
	}
	return strings.Join(keys, ", ")
}
