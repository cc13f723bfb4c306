package testutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/layout-bridge/backend/internal/models"
	"github.com/layout-bridge/backend/internal/storage"
)

// MockStorage implements storage.Store over a temp directory without an
// index file. Failures can be injected per operation.
type MockStorage struct {
	mu    sync.RWMutex
	dir   string
	files map[string]*models.FileInfo
	seq   int

	SaveErr      error
	SetStatusErr error
}

var _ storage.Store = (*MockStorage)(nil)

// NewMockStorage creates a mock writing document bodies under dir.
func NewMockStorage(dir string) *MockStorage {
	return &MockStorage{dir: dir, files: make(map[string]*models.FileInfo)}
}

func (m *MockStorage) Save(name string, r io.Reader) (*models.FileInfo, error) {
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.seq++
	id := fmt.Sprintf("doc-%d", m.seq)
	m.mu.Unlock()

	return m.AddFile(id, name, data)
}

// AddFile stores data under a fixed id.
func (m *MockStorage) AddFile(id, name string, data []byte) (*models.FileInfo, error) {
	if err := os.WriteFile(filepath.Join(m.dir, id), data, 0644); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	info := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       int64(len(data)),
		UploadedAt: time.Now().Add(time.Duration(len(m.files)) * time.Millisecond),
		Status:     storage.StatusStored,
	}
	m.files[id] = info
	c := *info
	return &c, nil
}

func (m *MockStorage) Get(id string) (*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.files[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *info
	return &c, nil
}

// List returns newest first.
func (m *MockStorage) List(limit int) ([]*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.FileInfo, 0, len(m.files))
	for _, info := range m.files {
		c := *info
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.files, id)
	return os.Remove(filepath.Join(m.dir, id))
}

func (m *MockStorage) Rename(id, newName string) (*models.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.files[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	info.Name = newName
	c := *info
	return &c, nil
}

func (m *MockStorage) SetStatus(id, status string) error {
	if m.SetStatusErr != nil {
		return m.SetStatusErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.files[id]
	if !ok {
		return storage.ErrNotFound
	}
	info.Status = status
	return nil
}

func (m *MockStorage) GetFilePath(id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.files[id]; !ok {
		return "", storage.ErrNotFound
	}
	return filepath.Join(m.dir, id), nil
}

// Count returns the number of stored documents.
func (m *MockStorage) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}
