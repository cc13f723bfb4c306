package scene

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/layout-bridge/backend/internal/models"
)

var (
	ErrEntityNotFound = errors.New("entity not found")
	ErrNothingToUndo  = errors.New("nothing to undo")
	ErrParentCycle    = errors.New("parent would create a cycle")
)

type entity struct {
	id       string
	name     string
	template string
	sprite   bool
	sorting  int
	parent   string
	pos      Vec3
	rot      Quat
	scale    Vec3
}

type undoGroup struct {
	label   string
	created []string
}

// EntityInfo is a read-only view of one entity.
type EntityInfo struct {
	ID            string  `json:"id" msgpack:"id"`
	Name          string  `json:"name" msgpack:"name"`
	Template      string  `json:"template,omitempty" msgpack:"template,omitempty"`
	Parent        string  `json:"parent,omitempty" msgpack:"parent,omitempty"`
	LocalPosition Vec3    `json:"localPosition" msgpack:"localPosition"`
	WorldPosition Vec3    `json:"worldPosition" msgpack:"worldPosition"`
	Rotation      float64 `json:"rotation" msgpack:"rotation"` // world rotation about z, degrees
	SortingOrder  *int    `json:"sortingOrder,omitempty" msgpack:"sortingOrder,omitempty"`
}

// Graph is an in-memory scene of transform nodes with undo groups.
// It is safe for concurrent use.
type Graph struct {
	mu       sync.RWMutex
	entities map[string]*entity
	order    []string
	undo     []undoGroup
	open     *undoGroup
	dirty    bool
}

// NewGraph creates an empty scene.
func NewGraph() *Graph {
	return &Graph{entities: make(map[string]*entity)}
}

// AddNode creates a plain node outside any undo group, e.g. a parent to place under.
func (g *Graph) AddNode(name, parent string, pos Vec3, rotDeg float64, scale Vec3) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if parent != "" {
		if _, ok := g.entities[parent]; !ok {
			return "", fmt.Errorf("%w: %s", ErrEntityNotFound, parent)
		}
	}
	id := g.insert(name, nil)
	e := g.entities[id]
	e.parent = parent
	e.pos = pos
	e.rot = QuatFromZDegrees(rotDeg)
	e.scale = scale
	g.dirty = true
	return id, nil
}

func (g *Graph) insert(name string, tmpl *models.Template) string {
	e := &entity{
		id:    uuid.New().String(),
		name:  name,
		rot:   QuatIdent(),
		scale: Vec3{1, 1, 1},
	}
	if tmpl != nil {
		e.template = tmpl.Name
		e.sprite = tmpl.Sprite
	}
	g.entities[e.id] = e
	g.order = append(g.order, e.id)
	return e.id
}

func (g *Graph) get(id string) (*entity, error) {
	e, ok := g.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	return e, nil
}

// Lookup resolves an entity id, or else the first entity with that name.
func (g *Graph) Lookup(ref string) (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.entities[ref]; ok {
		return ref, nil
	}
	for _, id := range g.order {
		if g.entities[id].name == ref {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrEntityNotFound, ref)
}

// CreateEntity creates a bare entity, or an instance of tmpl when it is set.
func (g *Graph) CreateEntity(name string, tmpl *models.Template) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.insert(name, tmpl), nil
}

// SetParent attaches id under parent keeping its local transform.
func (g *Graph) SetParent(id, parent string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, err := g.get(id)
	if err != nil {
		return err
	}
	for p := parent; p != ""; {
		if p == id {
			return ErrParentCycle
		}
		pe, err := g.get(p)
		if err != nil {
			return err
		}
		p = pe.parent
	}
	e.parent = parent
	return nil
}

func (g *Graph) SetLocalPosition(id string, p Vec3) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, err := g.get(id)
	if err != nil {
		return err
	}
	e.pos = p
	return nil
}

func (g *Graph) SetWorldPosition(id string, p Vec3) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, err := g.get(id)
	if err != nil {
		return err
	}
	e.pos = g.inverseTransformPoint(e.parent, p)
	return nil
}

func (g *Graph) WorldPosition(id string) (Vec3, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	e, err := g.get(id)
	if err != nil {
		return Vec3{}, err
	}
	return g.transformPoint(e.parent, e.pos), nil
}

// TransformPoint converts p from id's local space to world space.
func (g *Graph) TransformPoint(id string, p Vec3) (Vec3, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, err := g.get(id); err != nil {
		return Vec3{}, err
	}
	return g.transformPoint(id, p), nil
}

func (g *Graph) SetWorldRotation(id string, q Quat) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, err := g.get(id)
	if err != nil {
		return err
	}
	e.rot = g.worldRotation(e.parent).Conjugate().Mul(q)
	return nil
}

// HasSortingOrder reports whether the entity carries a 2D renderer.
func (g *Graph) HasSortingOrder(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	e, ok := g.entities[id]
	return ok && e.sprite
}

func (g *Graph) SetSortingOrder(id string, order int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, err := g.get(id)
	if err != nil {
		return err
	}
	if !e.sprite {
		return fmt.Errorf("entity %s has no 2D renderer", id)
	}
	e.sorting = order
	return nil
}

// BeginUndoGroup opens a group collecting created entities. Nested calls join the open group.
func (g *Graph) BeginUndoGroup(label string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.open == nil {
		g.open = &undoGroup{label: label}
	}
}

func (g *Graph) RegisterCreated(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.open != nil {
		g.open.created = append(g.open.created, id)
	}
}

// EndUndoGroup closes the open group. Empty groups are dropped.
func (g *Graph) EndUndoGroup() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.open != nil && len(g.open.created) > 0 {
		g.undo = append(g.undo, *g.open)
	}
	g.open = nil
}

func (g *Graph) MarkDirty() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dirty = true
}

// Dirty reports whether the scene changed since the last ClearDirty.
func (g *Graph) Dirty() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dirty
}

func (g *Graph) ClearDirty() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dirty = false
}

// UndoDepth returns the number of undoable groups.
func (g *Graph) UndoDepth() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.undo)
}

// Undo removes every entity created by the most recent group and returns its label.
func (g *Graph) Undo() (string, int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.undo) == 0 {
		return "", 0, ErrNothingToUndo
	}
	last := g.undo[len(g.undo)-1]
	g.undo = g.undo[:len(g.undo)-1]

	removed := make(map[string]bool, len(last.created))
	for _, id := range last.created {
		removed[id] = true
		delete(g.entities, id)
	}
	kept := g.order[:0]
	for _, id := range g.order {
		if !removed[id] {
			kept = append(kept, id)
		}
	}
	g.order = kept
	g.dirty = true
	return last.label, len(last.created), nil
}

// Len returns the number of entities.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entities)
}

// Entities lists all entities in creation order.
func (g *Graph) Entities() []EntityInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]EntityInfo, 0, len(g.order))
	for _, id := range g.order {
		e := g.entities[id]
		info := EntityInfo{
			ID:            e.id,
			Name:          e.name,
			Template:      e.template,
			Parent:        e.parent,
			LocalPosition: e.pos,
			WorldPosition: g.transformPoint(e.parent, e.pos),
			Rotation:      g.worldRotation(id).ZDegrees(),
		}
		if e.sprite {
			order := e.sorting
			info.SortingOrder = &order
		}
		out = append(out, info)
	}
	return out
}

// Entity returns one entity by id.
func (g *Graph) Entity(id string) (EntityInfo, error) {
	for _, info := range g.Entities() {
		if info.ID == id {
			return info, nil
		}
	}
	return EntityInfo{}, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
}

// transformPoint maps p from the local space of node id to world space.
// An empty id is the world itself.
func (g *Graph) transformPoint(id string, p Vec3) Vec3 {
	for id != "" {
		e := g.entities[id]
		p = e.pos.Add(e.rot.Rotate(p.Scale(e.scale)))
		id = e.parent
	}
	return p
}

func (g *Graph) inverseTransformPoint(id string, w Vec3) Vec3 {
	if id == "" {
		return w
	}
	e := g.entities[id]
	q := g.inverseTransformPoint(e.parent, w)
	return e.rot.Conjugate().Rotate(q.Sub(e.pos)).Unscale(e.scale)
}

func (g *Graph) worldRotation(id string) Quat {
	q := QuatIdent()
	for id != "" {
		e := g.entities[id]
		q = e.rot.Mul(q)
		id = e.parent
	}
	return q
}
