package layout

import (
	"bytes"
	_ "embed"
	"fmt"
	"image"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed fortaleza.yaml
var fortalezaYAML []byte

// Kind selects the parser applied to a region's text.
type Kind string

const (
	KindDate   Kind = "date"
	KindNumber Kind = "number"
	KindText   Kind = "text"
	KindMoney  Kind = "money"
)

// Rect is a half-open pixel rectangle [YStart, YEnd) x [XStart, XEnd).
type Rect struct {
	YStart int `yaml:"y_start" json:"y_start"`
	YEnd   int `yaml:"y_end" json:"y_end"`
	XStart int `yaml:"x_start" json:"x_start"`
	XEnd   int `yaml:"x_end" json:"x_end"`
}

// Clamp fits r inside bounds. Negative starts are raised to the bounds origin,
// each side keeps at least one pixel of extent, and whatever lies outside the
// image is cut off. The result may be empty when r lies entirely outside.
func (r Rect) Clamp(bounds image.Rectangle) image.Rectangle {
	ys := max(r.YStart, 0) + bounds.Min.Y
	xs := max(r.XStart, 0) + bounds.Min.X
	ye := max(r.YEnd+bounds.Min.Y, ys+1)
	xe := max(r.XEnd+bounds.Min.X, xs+1)
	return image.Rect(xs, ys, xe, ye).Intersect(bounds)
}

// Region is a named field rectangle and how its text is interpreted.
type Region struct {
	Name  string `yaml:"name"`
	Field string `yaml:"field"`
	Kind  Kind   `yaml:"kind"`
	Rect  Rect   `yaml:"rect"`
}

// Layout is an ordered list of regions for one document template.
type Layout struct {
	Name    string   `yaml:"name"`
	DPI     int      `yaml:"dpi"`
	Regions []Region `yaml:"regions"`
}

// Region returns the region with the given name.
func (l *Layout) Region(name string) (Region, bool) {
	for _, r := range l.Regions {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

// Names returns the region names in layout order.
func (l *Layout) Names() []string {
	out := make([]string, len(l.Regions))
	for i, r := range l.Regions {
		out[i] = r.Name
	}
	return out
}

// Validate checks that names are unique and rectangles are well-formed.
func (l *Layout) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("layout: missing name")
	}
	if len(l.Regions) == 0 {
		return fmt.Errorf("layout %s: no regions", l.Name)
	}
	seen := make(map[string]struct{}, len(l.Regions))
	for i, r := range l.Regions {
		if r.Name == "" {
			return fmt.Errorf("layout %s: region %d has no name", l.Name, i)
		}
		if _, dup := seen[r.Name]; dup {
			return fmt.Errorf("layout %s: duplicate region %q", l.Name, r.Name)
		}
		seen[r.Name] = struct{}{}
		if r.Rect.YEnd <= r.Rect.YStart || r.Rect.XEnd <= r.Rect.XStart {
			return fmt.Errorf("layout %s: region %q has an empty rectangle", l.Name, r.Name)
		}
		switch r.Kind {
		case KindDate, KindNumber, KindText, KindMoney:
		default:
			return fmt.Errorf("layout %s: region %q has unknown kind %q", l.Name, r.Name, r.Kind)
		}
	}
	return nil
}

// Load decodes and validates a layout from YAML.
func Load(r io.Reader) (*Layout, error) {
	var l Layout
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&l); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// LoadFile loads a layout from a YAML file on disk.
func LoadFile(path string) (*Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open layout: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Fortaleza returns the built-in layout for Fortaleza NFS-e documents.
func Fortaleza() *Layout {
	l, err := Load(bytes.NewReader(fortalezaYAML))
	if err != nil {
		panic(fmt.Sprintf("embedded fortaleza layout: %v", err))
	}
	return l
}

// Registry maps layout names to layouts.
type Registry struct {
	layouts map[string]*Layout
}

// NewRegistry returns a registry holding the built-in layouts.
func NewRegistry() *Registry {
	reg := &Registry{layouts: map[string]*Layout{}}
	reg.Register(Fortaleza())
	return reg
}

// Register adds or replaces a layout under its name.
func (r *Registry) Register(l *Layout) {
	r.layouts[l.Name] = l
}

// Get returns the layout registered under name.
func (r *Registry) Get(name string) (*Layout, error) {
	l, ok := r.layouts[name]
	if !ok {
		return nil, fmt.Errorf("layout %q not registered", name)
	}
	return l, nil
}
