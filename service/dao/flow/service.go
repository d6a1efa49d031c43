// Package flow loads flow definitions from YAML or JSON documents and caches
// them per location, with hot-swap support for edited flows.
package flow

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/chatflow/chatflow/model"
)

// Service resolves flow definitions by location.
type Service struct {
	fs    afs.Service
	cache map[string]*model.Flow
	mux   sync.RWMutex
}

// New creates a flow definition service.
func New() *Service {
	return &Service{
		fs:    afs.New(),
		cache: map[string]*model.Flow{},
	}
}

// Load returns the flow at the given URL, reading it on first use. YAML and
// JSON documents are both supported (JSON is a YAML subset).
func (s *Service) Load(ctx context.Context, URL string) (*model.Flow, error) {
	if filepath.Ext(URL) == "" {
		URL += ".yaml"
	}
	s.mux.RLock()
	cached, ok := s.cache[URL]
	s.mux.RUnlock()
	if ok {
		return cached, nil
	}

	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow from %s: %w", URL, err)
	}
	flow, err := s.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse flow from %s: %w", URL, err)
	}
	flow.Source = &model.Source{URL: URL}
	if flow.ID == "" {
		flow.ID = flowIDFromURL(URL)
	}

	s.mux.Lock()
	s.cache[URL] = flow
	s.mux.Unlock()
	return flow, nil
}

// Decode parses a flow definition and validates its structure.
func (s *Service) Decode(data []byte) (*model.Flow, error) {
	flow := &model.Flow{}
	if err := yaml.Unmarshal(data, flow); err != nil {
		return nil, err
	}
	if issues := flow.Validate(); len(issues) > 0 {
		return nil, issues[0]
	}
	return flow, nil
}

// Refresh discards the cached copy so the next Load re-reads the document.
func (s *Service) Refresh(URL string) {
	s.mux.Lock()
	defer s.mux.Unlock()
	delete(s.cache, URL)
}

// Upsert stores an already-decoded definition under the given location,
// making edited flows available without a round-trip to storage.
func (s *Service) Upsert(URL string, flow *model.Flow) {
	if flow == nil {
		s.Refresh(URL)
		return
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	s.cache[URL] = flow
}

func flowIDFromURL(URL string) string {
	base := filepath.Base(URL)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
