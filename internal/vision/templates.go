package vision

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"gopkg.in/yaml.v3"

	"genshin-autobot/internal/config"
)

// TemplateSpec is one known UI element: its grayscale reference image, the
// acceptance threshold, the expected vertical band, and the metrics to try.
// Specs are loaded once at startup and shared read-only across cycles.
type TemplateSpec struct {
	Name          string
	Threshold     float64
	BandCenter    float64
	BandTolerance float64
	Methods       []MatchMethod
	Width         int
	Height        int

	mat gocv.Mat
}

// bandContains reports whether a vertical center lies strictly inside the
// expected band for the given frame height.
func (s *TemplateSpec) bandContains(centerY, frameHeight int) bool {
	h := float64(frameHeight)
	low := (s.BandCenter - s.BandTolerance) * h
	high := (s.BandCenter + s.BandTolerance) * h
	y := float64(centerY)
	return y > low && y < high
}

// Close releases the native reference image.
func (s *TemplateSpec) Close() {
	s.mat.Close()
}

// manifest is the on-disk YAML shape of the template set.
type manifest struct {
	Templates []manifestEntry `yaml:"templates"`
}

type manifestEntry struct {
	Name          string   `yaml:"name"`
	File          string   `yaml:"file"`
	Threshold     *float64 `yaml:"threshold"`
	BandCenter    *float64 `yaml:"band_center"`
	BandTolerance *float64 `yaml:"band_tolerance"`
	Methods       []string `yaml:"methods"`
}

// TemplateLibrary holds every template named by the manifest, keyed by name.
type TemplateLibrary struct {
	specs map[string]*TemplateSpec
	names []string
}

// LoadTemplates reads the manifest and every reference image it names.
// A manifest that cannot be read, a missing or unreadable image file, an
// out-of-range threshold, or a duplicate name is a startup-fatal error, not
// a per-cycle condition. An empty manifest path yields an empty library with
// template-driven events disabled.
func LoadTemplates(manifestPath, dir string, defaults config.VisionConfig, logger *zap.Logger) (*TemplateLibrary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	lib := &TemplateLibrary{specs: make(map[string]*TemplateSpec)}
	if manifestPath == "" {
		logger.Warn("no template manifest configured, template events disabled")
		return lib, nil
	}

	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read template manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse template manifest %s: %w", manifestPath, err)
	}

	for _, entry := range m.Templates {
		spec, err := loadEntry(entry, dir, defaults)
		if err != nil {
			lib.Close()
			return nil, err
		}
		if _, dup := lib.specs[spec.Name]; dup {
			spec.Close()
			lib.Close()
			return nil, fmt.Errorf("template %q declared twice in %s", spec.Name, manifestPath)
		}
		lib.specs[spec.Name] = spec
		lib.names = append(lib.names, spec.Name)
		logger.Info("template loaded",
			zap.String("name", spec.Name),
			zap.Int("width", spec.Width),
			zap.Int("height", spec.Height),
			zap.Float64("threshold", spec.Threshold))
	}
	return lib, nil
}

func loadEntry(entry manifestEntry, dir string, defaults config.VisionConfig) (*TemplateSpec, error) {
	if entry.Name == "" {
		return nil, fmt.Errorf("template entry without a name")
	}
	if entry.File == "" {
		return nil, fmt.Errorf("template %q has no image file", entry.Name)
	}

	spec := &TemplateSpec{
		Name:          entry.Name,
		Threshold:     defaults.MatchThreshold,
		BandCenter:    defaults.BandCenter,
		BandTolerance: defaults.BandTolerance,
		Methods:       []MatchMethod{MatchCcoeffNormed},
	}
	if entry.Threshold != nil {
		spec.Threshold = *entry.Threshold
	}
	if entry.BandCenter != nil {
		spec.BandCenter = *entry.BandCenter
	}
	if entry.BandTolerance != nil {
		spec.BandTolerance = *entry.BandTolerance
	}
	if spec.Threshold < 0 || spec.Threshold > 1 {
		return nil, fmt.Errorf("template %q: threshold %v outside [0, 1]", entry.Name, spec.Threshold)
	}
	if spec.BandCenter < 0 || spec.BandCenter > 1 || spec.BandTolerance < 0 || spec.BandTolerance > 1 {
		return nil, fmt.Errorf("template %q: band must stay within [0, 1]", entry.Name)
	}
	if len(entry.Methods) > 0 {
		spec.Methods = spec.Methods[:0]
		for _, name := range entry.Methods {
			method, err := ParseMatchMethod(name)
			if err != nil {
				return nil, fmt.Errorf("template %q: %w", entry.Name, err)
			}
			spec.Methods = append(spec.Methods, method)
		}
	}

	path := entry.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	mat := gocv.IMRead(path, gocv.IMReadGrayScale)
	if mat.Empty() {
		return nil, fmt.Errorf("template %q: cannot read image %s", entry.Name, path)
	}
	spec.mat = mat
	spec.Width = mat.Cols()
	spec.Height = mat.Rows()
	return spec, nil
}

// Get returns the named spec.
func (l *TemplateLibrary) Get(name string) (*TemplateSpec, bool) {
	spec, ok := l.specs[name]
	return spec, ok
}

// Names returns template names in manifest order.
func (l *TemplateLibrary) Names() []string {
	return l.names
}

// Len returns the number of loaded templates.
func (l *TemplateLibrary) Len() int {
	return len(l.specs)
}

// Close releases every native reference image.
func (l *TemplateLibrary) Close() {
	for _, spec := range l.specs {
		spec.Close()
	}
	l.specs = map[string]*TemplateSpec{}
	l.names = nil
}
