package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/review-scraper/pkg/orchestrate"
	"github.com/Sriram-PR/review-scraper/pkg/utils"
)

const stateFileName = "watch_state.yaml"

// SourceState is the outcome of the last scheduled crawl of one source
type SourceState struct {
	LastRunTime    time.Time `yaml:"last_run_time"`
	LastRunSuccess bool      `yaml:"last_run_success"`
	RunID          string    `yaml:"run_id,omitempty"`
	Airlines       int64     `yaml:"airlines"`
	Reviews        int64     `yaml:"reviews"`
	ErrorMessage   string    `yaml:"error_message,omitempty"`
}

type stateFile struct {
	Sources   map[string]SourceState `yaml:"sources"`
	UpdatedAt time.Time              `yaml:"updated_at"`
}

// StateStore persists per-source run history under the state directory
type StateStore struct {
	path  string
	mu    sync.RWMutex
	state stateFile
}

// NewStateStore creates a store backed by <stateDir>/watch_state.yaml
func NewStateStore(stateDir string) *StateStore {
	return &StateStore{
		path:  filepath.Join(stateDir, stateFileName),
		state: stateFile{Sources: make(map[string]SourceState)},
	}
}

// Load reads the state file. A missing file leaves the store empty.
func (s *StateStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read watch state: %w", utils.ErrFilesystem, err)
	}

	var loaded stateFile
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parse watch state '%s': %w", s.path, err)
	}
	if loaded.Sources == nil {
		loaded.Sources = make(map[string]SourceState)
	}
	s.state = loaded
	return nil
}

// Save writes the state file, creating the state directory if needed
func (s *StateStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.UpdatedAt = time.Now()
	data, err := yaml.Marshal(&s.state)
	if err != nil {
		return fmt.Errorf("marshal watch state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: create state directory: %w", utils.ErrFilesystem, err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write watch state: %w", utils.ErrFilesystem, err)
	}
	return nil
}

// Get returns the recorded state of a source
func (s *StateStore) Get(sourceKey string) (SourceState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.state.Sources[sourceKey]
	return st, ok
}

// Record stores the outcome of one crawl, stamped with at
func (s *StateStore) Record(result orchestrate.SourceResult, at time.Time) {
	st := SourceState{LastRunTime: at, LastRunSuccess: result.Success}
	if result.Error != nil {
		st.ErrorMessage = result.Error.Error()
	}
	if result.Summary != nil {
		st.RunID = result.Summary.RunID
		st.Airlines = result.Summary.Airlines
		st.Reviews = result.Summary.Reviews
	}

	s.mu.Lock()
	s.state.Sources[result.SourceKey] = st
	s.mu.Unlock()
}

// NextRun returns when a source is next due. Sources never crawled are due now.
func (s *StateStore) NextRun(sourceKey string, interval time.Duration, now time.Time) time.Time {
	st, ok := s.Get(sourceKey)
	if !ok {
		return now
	}
	return st.LastRunTime.Add(interval)
}

// Due reports whether a source should be crawled at now
func (s *StateStore) Due(sourceKey string, interval time.Duration, now time.Time) bool {
	return !s.NextRun(sourceKey, interval, now).After(now)
}
