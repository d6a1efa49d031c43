// Package fs implements a filesystem-backed execution-state store on top of
// the afs abstraction, so state can live on local disk or any supported
// object store.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"

	"github.com/chatflow/chatflow/internal/clock"
	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/service/dao"
)

// Service persists one JSON document per conversation.
type Service struct {
	basePath string
	fs       afs.Service
	mu       sync.RWMutex
}

var _ dao.Service[string, model.ExecutionState] = (*Service)(nil)

// New creates a filesystem state store rooted at basePath.
func New(basePath string) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	fileService := afs.New()
	ctx := context.Background()
	if ok, _ := fileService.Exists(ctx, basePath); !ok {
		if err := fileService.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	return &Service{
		basePath: url.Normalize(basePath, file.Scheme),
		fs:       fileService,
	}, nil
}

// Save writes the state document.
func (s *Service) Save(ctx context.Context, state *model.ExecutionState) error {
	if state == nil {
		return dao.ErrNilEntity
	}
	if state.UniqueID == "" {
		return dao.ErrInvalidID
	}
	state.UpdatedAt = clock.Now()
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state %s: %w", state.UniqueID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	location := s.statePath(state.UniqueID)
	if err := s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save state to %s: %w", location, err)
	}
	return nil
}

// Load reads the state document or returns dao.ErrNotFound.
func (s *Service) Load(ctx context.Context, id string) (*model.ExecutionState, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	location := s.statePath(id)
	ok, err := s.fs.Exists(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to check state %s: %w", id, err)
	}
	if !ok {
		return nil, dao.ErrNotFound
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read state %s: %w", id, err)
	}
	state := &model.ExecutionState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state %s: %w", id, err)
	}
	return state, nil
}

// Delete removes the state document.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	location := s.statePath(id)
	ok, err := s.fs.Exists(ctx, location)
	if err != nil {
		return fmt.Errorf("failed to check state %s: %w", id, err)
	}
	if !ok {
		return dao.ErrNotFound
	}
	return s.fs.Delete(ctx, location)
}

// List returns every stored state; unreadable documents are skipped.
func (s *Service) List(ctx context.Context) ([]*model.ExecutionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects, err := s.fs.List(ctx, s.basePath, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list state documents: %w", err)
	}
	var states []*model.ExecutionState
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			continue
		}
		state := &model.ExecutionState{}
		if err := json.Unmarshal(data, state); err != nil {
			continue
		}
		states = append(states, state)
	}
	return states, nil
}

func (s *Service) statePath(id string) string {
	return path.Join(s.basePath, fmt.Sprintf("%s.json", id))
}
