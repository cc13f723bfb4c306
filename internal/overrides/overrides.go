// Package overrides reads the YAML document that carries per-object import
// overrides and global placement settings, keyed by object identity.
package overrides

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/layout-bridge/backend/internal/models"
)

var (
	ErrUnknownTemplate = errors.New("unknown template")
	ErrUnknownObject   = errors.New("override matches no object")
	ErrMissingKey      = errors.New("override needs a zorder or a name")
)

// Settings overrides global placement options. Nil fields keep the current value.
type Settings struct {
	GlobalTemplate *string  `yaml:"global_template,omitempty"`
	PositionScale  *float64 `yaml:"position_scale,omitempty"`
	FlipY          *bool    `yaml:"flip_y,omitempty"`
	UseLocalFrame  *bool    `yaml:"use_local_frame,omitempty"`
	Parent         *string  `yaml:"parent,omitempty"`
}

// Object targets one record by zorder, or by source name when zorder is absent.
type Object struct {
	ZOrder           *int   `yaml:"zorder,omitempty"`
	Name             string `yaml:"name,omitempty"`
	models.ViewPatch `yaml:",inline"`
}

// Document is the whole overrides file.
type Document struct {
	Templates []models.Template `yaml:"templates"`
	Settings  Settings          `yaml:"settings"`
	Objects   []Object          `yaml:"objects"`
}

// ParseFile parses an overrides file.
func ParseFile(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse parses an overrides document from r.
func Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing overrides: %w", err)
	}
	for i, o := range doc.Objects {
		if o.ZOrder == nil && o.Name == "" {
			return nil, fmt.Errorf("objects[%d]: %w", i, ErrMissingKey)
		}
	}
	return &doc, nil
}

// Catalog returns the templates keyed by name, merged over base.
func (d *Document) Catalog(base map[string]models.Template) map[string]models.Template {
	out := make(map[string]models.Template, len(base)+len(d.Templates))
	for k, v := range base {
		out[k] = v
	}
	for _, t := range d.Templates {
		out[t.Name] = t
	}
	return out
}

// ApplyPatch updates one view. A template name must exist in templates; an
// empty name clears the per-view template.
func ApplyPatch(v *models.PlacementView, p models.ViewPatch, templates map[string]models.Template) error {
	if p.Template != nil {
		if *p.Template == "" {
			v.Template = nil
		} else {
			t, ok := templates[*p.Template]
			if !ok {
				return fmt.Errorf("%w: %s", ErrUnknownTemplate, *p.Template)
			}
			v.Template = &t
		}
	}
	if p.Create != nil {
		v.Create = *p.Create
	}
	if p.UseCustomName != nil {
		v.UseCustomName = *p.UseCustomName
	}
	if p.CustomName != nil {
		v.CustomName = *p.CustomName
	}
	return nil
}

// ApplySettings returns s with the document's settings applied.
func ApplySettings(s models.PlacementSettings, o Settings, templates map[string]models.Template) (models.PlacementSettings, error) {
	if o.GlobalTemplate != nil {
		if *o.GlobalTemplate == "" {
			s.GlobalTemplate = nil
		} else {
			t, ok := templates[*o.GlobalTemplate]
			if !ok {
				return s, fmt.Errorf("%w: %s", ErrUnknownTemplate, *o.GlobalTemplate)
			}
			s.GlobalTemplate = &t
		}
	}
	if o.PositionScale != nil {
		s.PositionScale = *o.PositionScale
	}
	if o.FlipY != nil {
		s.FlipY = *o.FlipY
	}
	if o.UseLocalFrame != nil {
		s.UseLocalFrame = *o.UseLocalFrame
	}
	if o.Parent != nil {
		s.Parent = *o.Parent
	}
	return s, nil
}

// Apply applies the whole document to views and settings. Nothing is changed
// unless every override can be applied.
func (d *Document) Apply(views []*models.PlacementView, s models.PlacementSettings, base map[string]models.Template) (models.PlacementSettings, error) {
	templates := d.Catalog(base)

	settings, err := ApplySettings(s, d.Settings, templates)
	if err != nil {
		return s, err
	}

	staged := make([]models.PlacementView, len(views))
	for i, v := range views {
		staged[i] = *v
	}

	for i, o := range d.Objects {
		matched := false
		for j := range staged {
			if !o.matches(staged[j].Object) {
				continue
			}
			matched = true
			if err := ApplyPatch(&staged[j], o.ViewPatch, templates); err != nil {
				return s, fmt.Errorf("objects[%d]: %w", i, err)
			}
		}
		if !matched {
			return s, fmt.Errorf("objects[%d]: %w", i, ErrUnknownObject)
		}
	}

	for i := range views {
		*views[i] = staged[i]
	}
	return settings, nil
}

func (o Object) matches(obj models.LayoutObject) bool {
	if o.ZOrder != nil {
		return obj.ZOrder == *o.ZOrder
	}
	return obj.Name == o.Name
}
