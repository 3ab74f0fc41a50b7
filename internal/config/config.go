// Package config loads headshot profiles from TOML and process settings
// from the environment.
//
// A profile file holds one table per profile plus the system tables
// [slider], [download_formats.<key>] and [ui]:
//
//	[default]
//	target_width = 400
//	target_height = 500
//	padding_top = 0.2
//	padding_bottom = 0.5
//	padding_side = 0.1
//	border_color = "#000000"
//	shift_x = 0
//	shift_y = 0
//	zoom_out_factor = 1.1
//
//	[linkedin]
//	target_height = 400
//	border_color = "#F3F2EF"
//
// Profiles other than default inherit every key they omit from default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/menta2k/headshot/pkg/types"
)

// DefaultProfile is the profile every file must define
const DefaultProfile = "default"

// DefaultFilenameTemplate names downloads when [ui] does not override it
const DefaultFilenameTemplate = "headshot_{preset}{grayscale_suffix}{extension}"

var systemTables = map[string]bool{"slider": true, "download_formats": true, "ui": true}

// keys the default profile must set explicitly
var requiredDefaultKeys = []string{
	"target_width", "target_height", "padding_top", "padding_bottom",
	"padding_side", "border_color", "shift_x", "shift_y", "zoom_out_factor",
}

// Profile is a named, fully resolved parameter set
type Profile struct {
	Name   string
	Params types.Params
	Slider SliderBounds
}

// DownloadFormat describes one offered download encoding
type DownloadFormat struct {
	Key       string       `toml:"-"`
	Format    types.Format `toml:"format"`
	Extension string       `toml:"extension"`
	MIME      string       `toml:"mime"`
	Quality   int          `toml:"quality"`
	Lossless  bool         `toml:"lossless"`
}

// Apply returns p encoded with this download format
func (d DownloadFormat) Apply(p types.Params) types.Params {
	p.Format = d.Format
	if d.Quality > 0 {
		p.Quality = d.Quality
	}
	p.Lossless = d.Lossless
	return p
}

// UIConfig holds the [ui] table
type UIConfig struct {
	AppTitle                string `toml:"app_title"`
	DefaultFilenameTemplate string `toml:"default_filename_template"`
}

// File is a parsed profile file
type File struct {
	Slider SliderBounds
	UI     UIConfig

	profiles map[string]Profile
	order    []string
	formats  map[string]DownloadFormat
}

// Default returns the built-in configuration: the stock default profile,
// default slider bounds and JPEG, PNG and WebP downloads.
func Default() *File {
	f := &File{
		Slider:   DefaultSliderBounds(),
		UI:       UIConfig{DefaultFilenameTemplate: DefaultFilenameTemplate},
		profiles: map[string]Profile{},
		formats:  defaultFormats(),
	}
	f.add(Profile{Name: DefaultProfile, Params: types.DefaultParams(), Slider: f.Slider})
	return f
}

// Load reads and parses a profile file
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a profile file and validates every profile in it.
func Parse(data []byte) (*File, error) {
	var raw map[string]toml.Primitive
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if _, ok := raw[DefaultProfile]; !ok {
		return nil, fmt.Errorf("missing required configuration section: %s", DefaultProfile)
	}
	for _, key := range requiredDefaultKeys {
		if !md.IsDefined(DefaultProfile, key) {
			return nil, fmt.Errorf("missing required key %q in %s configuration", key, DefaultProfile)
		}
	}

	f := &File{
		Slider:   DefaultSliderBounds(),
		UI:       UIConfig{DefaultFilenameTemplate: DefaultFilenameTemplate},
		profiles: map[string]Profile{},
		formats:  map[string]DownloadFormat{},
	}

	if prim, ok := raw["slider"]; ok {
		if err := md.PrimitiveDecode(prim, &f.Slider); err != nil {
			return nil, fmt.Errorf("invalid slider section: %w", err)
		}
	}
	if prim, ok := raw["ui"]; ok {
		if err := md.PrimitiveDecode(prim, &f.UI); err != nil {
			return nil, fmt.Errorf("invalid ui section: %w", err)
		}
		if f.UI.DefaultFilenameTemplate == "" {
			f.UI.DefaultFilenameTemplate = DefaultFilenameTemplate
		}
	}
	if prim, ok := raw["download_formats"]; ok {
		var formats map[string]DownloadFormat
		if err := md.PrimitiveDecode(prim, &formats); err != nil {
			return nil, fmt.Errorf("invalid download_formats section: %w", err)
		}
		for key, df := range formats {
			df.Key = strings.ToLower(key)
			df.Format = types.ParseFormat(string(df.Format))
			if df.Extension == "" {
				df.Extension = df.Format.Extension()
			}
			if df.MIME == "" {
				df.MIME = df.Format.MIME()
			}
			f.formats[df.Key] = df
		}
	}
	if len(f.formats) == 0 {
		f.formats = defaultFormats()
	}

	base, err := decodeProfile(md, raw[DefaultProfile], types.DefaultParams())
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", DefaultProfile, err)
	}
	f.add(Profile{Name: DefaultProfile, Params: base, Slider: f.Slider})

	// md.Keys preserves file order
	for _, key := range md.Keys() {
		if len(key) != 1 {
			continue
		}
		name := strings.ToLower(key[0])
		if name == DefaultProfile || systemTables[name] {
			continue
		}
		p, err := decodeProfile(md, raw[key[0]], base)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", name, err)
		}
		f.add(Profile{Name: name, Params: p, Slider: f.Slider})
	}

	return f, nil
}

func decodeProfile(md toml.MetaData, prim toml.Primitive, base types.Params) (types.Params, error) {
	p := base
	if err := md.PrimitiveDecode(prim, &p); err != nil {
		return types.Params{}, err
	}

	var extra struct {
		BorderColor string `toml:"border_color"`
	}
	if err := md.PrimitiveDecode(prim, &extra); err != nil {
		return types.Params{}, err
	}
	if extra.BorderColor != "" {
		c, err := types.ParseColor(extra.BorderColor)
		if err != nil {
			return types.Params{}, err
		}
		p.Border = c
	}

	p.Format = types.ParseFormat(string(p.Format))
	if p.Format == "" {
		p.Format = types.FormatJPEG
	}
	if err := p.Validate(); err != nil {
		return types.Params{}, err
	}
	return p, nil
}

func (f *File) add(p Profile) {
	if _, ok := f.profiles[p.Name]; !ok {
		f.order = append(f.order, p.Name)
	}
	f.profiles[p.Name] = p
}

// Profile returns the named profile; names are case-insensitive.
func (f *File) Profile(name string) (Profile, error) {
	p, ok := f.profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, types.Errorf(types.KindInvalidParameter, "config.profile",
			"profile %q not found (available: %s)", name, strings.Join(f.order, ", "))
	}
	return p, nil
}

// Profiles returns the profile names in file order, default first
func (f *File) Profiles() []string {
	return append([]string(nil), f.order...)
}

// Format returns the download format registered under key
func (f *File) Format(key string) (DownloadFormat, bool) {
	df, ok := f.formats[strings.ToLower(strings.TrimPrefix(key, "."))]
	if !ok {
		// accept format names and aliases such as "jpg"
		for _, candidate := range f.formats {
			if candidate.Format == types.ParseFormat(key) {
				return candidate, true
			}
		}
	}
	return df, ok
}

// Formats returns every download format sorted by key
func (f *File) Formats() []DownloadFormat {
	out := make([]DownloadFormat, 0, len(f.formats))
	for _, df := range f.formats {
		out = append(out, df)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func defaultFormats() map[string]DownloadFormat {
	return map[string]DownloadFormat{
		"jpeg": {Key: "jpeg", Format: types.FormatJPEG, Extension: ".jpg", MIME: "image/jpeg", Quality: 95},
		"png":  {Key: "png", Format: types.FormatPNG, Extension: ".png", MIME: "image/png"},
		"webp": {Key: "webp", Format: types.FormatWebP, Extension: ".webp", MIME: "image/webp", Quality: 90},
	}
}

// DefaultPath returns the default profile file location
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.toml"
	}
	return filepath.Join(home, ".config", "headshot", "config.toml")
}
