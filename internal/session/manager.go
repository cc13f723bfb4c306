package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/layout-bridge/backend/internal/importer"
	"github.com/layout-bridge/backend/internal/logging"
	"github.com/layout-bridge/backend/internal/models"
	"github.com/layout-bridge/backend/internal/overrides"
	"github.com/layout-bridge/backend/internal/placement"
	"github.com/layout-bridge/backend/internal/scene"
)

// MaxSessions limits concurrent import sessions
const MaxSessions = 10

// SessionMaxAge is how long to keep idle sessions before cleanup
const SessionMaxAge = 30 * time.Minute

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNothingLoaded   = errors.New("nothing loaded")
	ErrObjectNotFound  = errors.New("object not found")
)

// Options configures a Manager.
type Options struct {
	MaxSessions int
	// Settings are the placement settings new sessions start with.
	Settings  models.PlacementSettings
	Templates []models.Template
	Logger    logrus.FieldLogger
}

// Manager holds import sessions. Views and overrides live only in memory and
// are discarded with the session.
type Manager struct {
	sessions    map[string]*sessionState
	mu          sync.RWMutex
	importer    *importer.Importer
	logger      logrus.FieldLogger
	maxSessions int
	settings    models.PlacementSettings
	templates   map[string]models.Template
}

type sessionState struct {
	session      *models.ImportSession
	templates    map[string]models.Template
	lastAccessed time.Time
}

// NewManager creates a session manager.
func NewManager(opts Options) *Manager {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = MaxSessions
	}
	if opts.Settings.PositionScale == 0 {
		opts.Settings = models.DefaultPlacementSettings()
	}
	templates := make(map[string]models.Template, len(opts.Templates))
	for _, t := range opts.Templates {
		templates[t.Name] = t
	}
	return &Manager{
		sessions:    make(map[string]*sessionState),
		importer:    importer.New(opts.Logger),
		logger:      logging.WithComponent(opts.Logger, "session"),
		maxSessions: opts.MaxSessions,
		settings:    opts.Settings,
		templates:   templates,
	}
}

// Load reads an interchange document into a new session.
func (m *Manager) Load(path string) (*models.ImportSession, error) {
	loaded, err := m.importer.Load(path)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.evictIfNeeded()

	templates := make(map[string]models.Template, len(m.templates))
	for k, v := range m.templates {
		templates[k] = v
	}
	sess := &models.ImportSession{
		ID:         uuid.New().String(),
		SourcePath: path,
		Settings:   m.settings,
	}
	fill(sess, loaded)

	m.sessions[sess.ID] = &sessionState{session: sess, templates: templates, lastAccessed: time.Now()}
	return clone(sess), nil
}

// Reload re-reads a session's document, optionally from a new path. A failed
// load clears the previously loaded batch and views.
func (m *Manager) Reload(id, path string) (*models.ImportSession, error) {
	m.mu.RLock()
	state, ok := m.sessions[id]
	if ok && path == "" {
		path = state.session.SourcePath
	}
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	loaded, loadErr := m.importer.Load(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok = m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	state.lastAccessed = time.Now()
	sess := state.session
	sess.SourcePath = path

	if loadErr != nil {
		sess.Batch = nil
		sess.Views = nil
		sess.Warnings = nil
		sess.Status = models.SessionStatusError
		sess.Error = loadErr.Error()
		return clone(sess), loadErr
	}

	fill(sess, loaded)
	return clone(sess), nil
}

func fill(sess *models.ImportSession, loaded *importer.Loaded) {
	sess.Batch = loaded.Batch
	sess.Views = loaded.Views
	sess.Warnings = loaded.Warnings
	sess.Status = models.SessionStatusLoaded
	sess.Error = ""
	sess.Created = 0
	sess.LoadedAt = time.Now()
}

// evictIfNeeded removes the least recently used sessions when at capacity. Caller holds mu.
func (m *Manager) evictIfNeeded() {
	if len(m.sessions) < m.maxSessions {
		return
	}

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return m.sessions[ids[i]].lastAccessed.Before(m.sessions[ids[j]].lastAccessed)
	})

	toFree := len(m.sessions) - m.maxSessions + 1
	for _, id := range ids[:toFree] {
		delete(m.sessions, id)
		m.logger.WithField("session", id).Info("evicted session at capacity")
	}
}

// CleanupOldSessions removes sessions not accessed within maxAge.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, state := range m.sessions {
		if state.lastAccessed.Before(cutoff) {
			delete(m.sessions, id)
			removed++
			m.logger.WithFields(logrus.Fields{
				"session": id,
				"idle":    time.Since(state.lastAccessed).Round(time.Second),
			}).Info("cleaned up aged session")
		}
	}
	return removed
}

// Get returns a copy of the session.
func (m *Manager) Get(id string) (*models.ImportSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	state.lastAccessed = time.Now()
	return clone(state.session), true
}

// List returns copies of all sessions, most recently loaded first.
func (m *Manager) List() []*models.ImportSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.ImportSession, 0, len(m.sessions))
	for _, state := range m.sessions {
		out = append(out, clone(state.session))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoadedAt.After(out[j].LoadedAt) })
	return out
}

// Delete discards a session.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// withLoaded runs fn on a session that has a batch loaded, holding the write lock.
func (m *Manager) withLoaded(id string, fn func(state *sessionState) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	state.lastAccessed = time.Now()
	if state.session.Batch == nil {
		return ErrNothingLoaded
	}
	return fn(state)
}

// UpdateView patches the view of the record with the given zorder.
func (m *Manager) UpdateView(id string, zorder int, patch models.ViewPatch) (*models.PlacementView, error) {
	var out models.PlacementView
	err := m.withLoaded(id, func(state *sessionState) error {
		for _, v := range state.session.Views {
			if v.Object.ZOrder != zorder {
				continue
			}
			staged := *v
			if err := overrides.ApplyPatch(&staged, patch, state.templates); err != nil {
				return err
			}
			*v = staged
			out = staged
			return nil
		}
		return fmt.Errorf("%w: zorder %d", ErrObjectNotFound, zorder)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ApplyOverrides applies an overrides document to the session's views and settings.
func (m *Manager) ApplyOverrides(id string, doc *overrides.Document) (*models.ImportSession, error) {
	var out *models.ImportSession
	err := m.withLoaded(id, func(state *sessionState) error {
		settings, err := doc.Apply(state.session.Views, state.session.Settings, state.templates)
		if err != nil {
			return err
		}
		state.templates = doc.Catalog(state.templates)
		state.session.Settings = settings
		out = clone(state.session)
		return nil
	})
	return out, err
}

// SetSettings replaces the session's placement settings.
func (m *Manager) SetSettings(id string, settings models.PlacementSettings) (*models.ImportSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	state.lastAccessed = time.Now()
	state.session.Settings = settings
	return clone(state.session), nil
}

// Plan resolves the session's views into placements without touching any scene.
func (m *Manager) Plan(id string) ([]placement.Placement, error) {
	var plan []placement.Placement
	err := m.withLoaded(id, func(state *sessionState) error {
		plan = placement.Plan(state.session.Views, state.session.Settings)
		return nil
	})
	return plan, err
}

// Create instantiates every view marked for creation into host as one undo group.
func (m *Manager) Create(id string, host scene.SceneHost) (int, error) {
	var created int
	err := m.withLoaded(id, func(state *sessionState) error {
		plan := placement.Plan(state.session.Views, state.session.Settings)
		ids, err := scene.NewInstantiator(host, m.logger).Apply(plan)
		created = len(ids)
		if err != nil {
			return err
		}
		state.session.Status = models.SessionStatusCreated
		state.session.Created = created
		return nil
	})
	return created, err
}

// Thumbnail returns the preview of the record with the given zorder.
func (m *Manager) Thumbnail(id string, zorder int) (*models.Thumbnail, error) {
	var thumb *models.Thumbnail
	err := m.withLoaded(id, func(state *sessionState) error {
		for _, v := range state.session.Views {
			if v.Object.ZOrder == zorder {
				if v.Thumbnail == nil {
					return fmt.Errorf("%w: no thumbnail for zorder %d", ErrObjectNotFound, zorder)
				}
				t := *v.Thumbnail
				thumb = &t
				return nil
			}
		}
		return fmt.Errorf("%w: zorder %d", ErrObjectNotFound, zorder)
	})
	return thumb, err
}

func clone(s *models.ImportSession) *models.ImportSession {
	c := *s
	if s.Batch != nil {
		b := *s.Batch
		b.Objects = append([]models.LayoutObject(nil), s.Batch.Objects...)
		c.Batch = &b
	}
	c.Views = make([]*models.PlacementView, len(s.Views))
	for i, v := range s.Views {
		vc := *v
		c.Views[i] = &vc
	}
	c.Warnings = append([]string(nil), s.Warnings...)
	return &c
}
