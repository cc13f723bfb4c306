// Package scene applies resolved placements to a scene host and provides an
// in-memory scene graph host.
package scene

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/layout-bridge/backend/internal/logging"
	"github.com/layout-bridge/backend/internal/models"
	"github.com/layout-bridge/backend/internal/placement"
)

// UndoLabel names the undo group of one instantiation batch.
const UndoLabel = "Create layout objects"

// SceneHost is what the instantiator needs from a scene editor.
type SceneHost interface {
	Lookup(ref string) (string, error)
	CreateEntity(name string, tmpl *models.Template) (string, error)
	SetParent(id, parent string) error
	SetLocalPosition(id string, p Vec3) error
	SetWorldPosition(id string, p Vec3) error
	WorldPosition(id string) (Vec3, error)
	TransformPoint(id string, p Vec3) (Vec3, error)
	SetWorldRotation(id string, q Quat) error
	HasSortingOrder(id string) bool
	SetSortingOrder(id string, order int) error

	BeginUndoGroup(label string)
	RegisterCreated(id string)
	EndUndoGroup()
	MarkDirty()
}

// Instantiator creates one entity per placement. It makes no decisions of its own.
type Instantiator struct {
	host   SceneHost
	logger logrus.FieldLogger
}

// NewInstantiator creates an instantiator for h. A nil logger discards output.
func NewInstantiator(h SceneHost, logger logrus.FieldLogger) *Instantiator {
	return &Instantiator{host: h, logger: logging.OrDiscard(logger)}
}

// Apply instantiates plan as a single undo group and returns the entity ids.
// An empty plan touches nothing. The parent is resolved before anything is created.
func (in *Instantiator) Apply(plan []placement.Placement) ([]string, error) {
	if len(plan) == 0 {
		return nil, nil
	}

	parents := make(map[string]string)
	for _, p := range plan {
		if p.Parent == "" {
			continue
		}
		if _, ok := parents[p.Parent]; ok {
			continue
		}
		id, err := in.host.Lookup(p.Parent)
		if err != nil {
			return nil, fmt.Errorf("resolving parent %q: %w", p.Parent, err)
		}
		parents[p.Parent] = id
	}

	in.host.BeginUndoGroup(UndoLabel)
	var created []string
	defer func() {
		in.host.EndUndoGroup()
		if len(created) > 0 {
			in.host.MarkDirty()
		}
	}()

	for _, p := range plan {
		id, err := in.host.CreateEntity(p.Name, p.Template)
		if err != nil {
			return created, fmt.Errorf("creating %q: %w", p.Name, err)
		}
		in.host.RegisterCreated(id)
		created = append(created, id)

		if err := in.place(id, p, parents[p.Parent]); err != nil {
			return created, fmt.Errorf("placing %q: %w", p.Name, err)
		}
	}

	in.logger.WithField("count", len(created)).Info("layout objects created")
	return created, nil
}

func (in *Instantiator) place(id string, p placement.Placement, parent string) error {
	pos := XYZ(float32(p.X), float32(p.Y), 0)

	switch {
	case parent != "" && p.LocalFrame:
		if err := in.host.SetParent(id, parent); err != nil {
			return err
		}
		if err := in.host.SetLocalPosition(id, pos); err != nil {
			return err
		}
	case parent != "":
		if err := in.host.SetParent(id, parent); err != nil {
			return err
		}
		world, err := in.host.TransformPoint(parent, pos)
		if err != nil {
			return err
		}
		if err := in.host.SetWorldPosition(id, world); err != nil {
			return err
		}
	default:
		if err := in.host.SetWorldPosition(id, pos); err != nil {
			return err
		}
	}

	if err := in.host.SetWorldRotation(id, QuatFromZDegrees(p.Rotation)); err != nil {
		return err
	}

	if in.host.HasSortingOrder(id) {
		return in.host.SetSortingOrder(id, p.SortingOrder)
	}
	world, err := in.host.WorldPosition(id)
	if err != nil {
		return err
	}
	world[2] = float32(p.Depth)
	return in.host.SetWorldPosition(id, world)
}

var _ SceneHost = (*Graph)(nil)
