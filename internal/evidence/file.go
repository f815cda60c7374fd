package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/pathwise/mri-engine/internal/skills"
)

// FileStore keeps proof records in a single JSON file. Good enough for the
// CLI; a real deployment would put these behind a database.
type FileStore struct {
	path string

	mu sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) ProofsForUser(_ context.Context, userID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}

	var proofs []Record
	for _, rec := range records {
		if rec.UserID == userID {
			proofs = append(proofs, rec)
		}
	}
	return proofs, nil
}

// VerifiedSkillNames returns the canonical skill names a user has verified
// proof for. A proof without an explicit skill name falls back to its title.
func (s *FileStore) VerifiedSkillNames(ctx context.Context, userID string) ([]string, error) {
	proofs, err := s.ProofsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var names []string
	for _, rec := range proofs {
		if rec.Status != StatusVerified {
			continue
		}
		name := rec.SkillName
		if name == "" {
			name = rec.Title
		}
		canonical := skills.Canonical(name)
		if canonical == "" || seen[canonical] {
			continue
		}
		seen[canonical] = true
		names = append(names, canonical)
	}
	return names, nil
}

func (s *FileStore) AnnotateRepoVerification(_ context.Context, proofID string, rv RepoVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}

	for i := range records {
		if records[i].ID != proofID {
			continue
		}
		records[i].RepoVerified = rv.Verified
		records[i].RepoVerification = &rv
		return s.save(records)
	}
	return fmt.Errorf("annotating proof %q: record not found", proofID)
}

func (s *FileStore) load() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading proofs file %s: %w", s.path, err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing proofs file %s: %w", s.path, err)
	}
	return records, nil
}

func (s *FileStore) save(records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding proofs: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing proofs file %s: %w", s.path, err)
	}
	return nil
}
