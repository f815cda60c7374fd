package alignment

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileSignalStore keeps demand signals in a single JSON file, shared by the
// readiness CLI and the ingestion scheduler.
type FileSignalStore struct {
	path string

	mu sync.Mutex
}

func NewFileSignalStore(path string) *FileSignalStore {
	return &FileSignalStore{path: path}
}

func (s *FileSignalStore) SignalsForPathway(_ context.Context, pathwayID string) ([]Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}

	var signals []Signal
	for _, sig := range all {
		if sig.PathwayID == pathwayID {
			signals = append(signals, sig)
		}
	}
	return signals, nil
}

// Append adds new signals to the file.
func (s *FileSignalStore) Append(_ context.Context, signals []Signal) error {
	if len(signals) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	all = append(all, signals...)

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding signals: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing signals file %s: %w", s.path, err)
	}
	return nil
}

func (s *FileSignalStore) load() ([]Signal, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading signals file %s: %w", s.path, err)
	}

	var signals []Signal
	if err := json.Unmarshal(data, &signals); err != nil {
		return nil, fmt.Errorf("parsing signals file %s: %w", s.path, err)
	}
	return signals, nil
}
