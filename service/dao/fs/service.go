// Package fs stores dao entities as JSON documents on any afs-supported
// storage (local file system, mem://, cloud buckets).
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
	"github.com/viant/kernsim/service/dao"
)

// Service implements a filesystem-based dao.Service
type Service[K comparable, T any] struct {
	baseURL     string
	fs          afs.Service
	keySelector func(*T) K
	mu          sync.RWMutex
}

// Save persists an entity as <baseURL>/<key>.json
func (s *Service[K, T]) Save(ctx context.Context, t *T) error {
	if t == nil {
		return dao.ErrNilEntity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}
	URL := s.entityURL(s.keySelector(t))
	if err = s.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save entity to %s: %w", URL, err)
	}
	return nil
}

// Load retrieves an entity by key
func (s *Service[K, T]) Load(ctx context.Context, key K) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	URL := s.entityURL(key)
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to check if %s exists: %w", URL, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %v", dao.ErrNotFound, key)
	}
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", URL, err)
	}
	var ret T
	if err := json.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", URL, err)
	}
	return &ret, nil
}

// Delete removes an entity
func (s *Service[K, T]) Delete(ctx context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	URL := s.entityURL(key)
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return fmt.Errorf("failed to check if %s exists: %w", URL, err)
	}
	if !exists {
		return fmt.Errorf("%w: %v", dao.ErrNotFound, key)
	}
	if err := s.fs.Delete(ctx, URL); err != nil {
		return fmt.Errorf("failed to delete %s: %w", URL, err)
	}
	return nil
}

// List returns every stored entity ordered by key name (shorter names first,
// so non-negative integer keys come back in numeric order).
func (s *Service[K, T]) List(ctx context.Context) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, err := s.fs.List(ctx, s.baseURL, option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.baseURL, err)
	}
	sort.Slice(objects, func(i, j int) bool {
		a, b := objects[i].Name(), objects[j].Name()
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})

	var ret []*T
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", object.URL(), err)
		}
		var entity T
		if err := json.Unmarshal(data, &entity); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", object.URL(), err)
		}
		ret = append(ret, &entity)
	}
	return ret, nil
}

func (s *Service[K, T]) entityURL(key K) string {
	return url.Join(s.baseURL, fmt.Sprintf("%v.json", key))
}

// New creates a store rooted at baseURL, creating the location when missing.
func New[K comparable, T any](ctx context.Context, baseURL string, keySelector func(*T) K) (*Service[K, T], error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	fs := afs.New()
	baseURL = url.Normalize(baseURL, file.Scheme)
	exists, _ := fs.Exists(ctx, baseURL)
	if !exists {
		if err := fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", baseURL, err)
		}
	}
	return &Service[K, T]{
		baseURL:     baseURL,
		fs:          fs,
		keySelector: keySelector,
	}, nil
}

var _ dao.Service[int, struct{}] = (*Service[int, struct{}])(nil)
