package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Store manages run reports on disk, one JSON file per run.
type Store struct {
	baseDir string
}

// NewStore creates a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// DefaultStore returns a Store at ~/.fixloop/reports.
func DefaultStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}
	return &Store{baseDir: filepath.Join(home, ".fixloop", "reports")}, nil
}

// BaseDir returns the store's root directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

func (s *Store) reportPath(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}

// Save writes the report, stamping FinishedAt when unset and recomputing
// counts. It returns the path written.
func (s *Store) Save(r *RunReport) (string, error) {
	if r.ID == "" {
		return "", fmt.Errorf("run report has no id")
	}
	if r.FinishedAt == "" {
		r.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	}
	r.Tally()
	path := s.reportPath(r.ID)
	if err := WriteJSON(path, r); err != nil {
		return "", fmt.Errorf("write run report %s: %w", r.ID, err)
	}
	return path, nil
}

// Get reads a report by run id.
func (s *Store) Get(id string) (*RunReport, error) {
	var r RunReport
	if err := ReadJSON(s.reportPath(id), &r); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run report %s not found", id)
		}
		return nil, err
	}
	return &r, nil
}

// List returns all reports, newest first.
func (s *Store) List() ([]RunReport, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", s.baseDir, err)
	}

	var reports []RunReport
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		r, err := s.Get(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue // skip broken entries
		}
		reports = append(reports, *r)
	}

	sort.Slice(reports, func(i, j int) bool {
		if reports[i].StartedAt == reports[j].StartedAt {
			return reports[i].ID > reports[j].ID
		}
		return reports[i].StartedAt > reports[j].StartedAt
	})
	return reports, nil
}

// Latest returns the most recent report, or nil when there are none.
func (s *Store) Latest() (*RunReport, error) {
	reports, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, nil
	}
	return &reports[0], nil
}
