package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "reports"))
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)

	r := &RunReport{
		ID:        "run-1",
		Root:      "/src",
		StartedAt: "2026-01-01T00:00:00Z",
		Files: []FileReport{
			{Path: "a.py", Outcome: "clean"},
			{Path: "b.py", Outcome: "fixed", Rounds: 2, Tickets: []string{"FIX-1"}, Written: true},
			{Path: "c.py", Outcome: "fixed", Rounds: 1},
		},
	}
	path, err := s.Save(r)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if path != filepath.Join(s.BaseDir(), "run-1.json") {
		t.Errorf("path = %q", path)
	}
	if r.FinishedAt == "" {
		t.Error("FinishedAt not stamped")
	}

	got, err := s.Get("run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Root != "/src" {
		t.Errorf("Root = %q, want /src", got.Root)
	}
	if len(got.Files) != 3 {
		t.Fatalf("Files = %d, want 3", len(got.Files))
	}
	if got.Files[1].Tickets[0] != "FIX-1" {
		t.Errorf("tickets not persisted: %+v", got.Files[1])
	}
	if got.Counts["fixed"] != 2 || got.Counts["clean"] != 1 {
		t.Errorf("Counts = %v", got.Counts)
	}
}

func TestSave_RequiresID(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Save(&RunReport{}); err == nil {
		t.Error("expected error for report without id")
	}
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("nope"); err == nil {
		t.Error("expected not found error")
	}
}

func TestListAndLatest(t *testing.T) {
	s := newTestStore(t)

	if got, err := s.Latest(); err != nil || got != nil {
		t.Fatalf("Latest on empty store = %v, %v", got, err)
	}

	for _, r := range []RunReport{
		{ID: "a", StartedAt: "2026-01-01T00:00:00Z"},
		{ID: "c", StartedAt: "2026-01-03T00:00:00Z"},
		{ID: "b", StartedAt: "2026-01-02T00:00:00Z"},
	} {
		r := r
		if _, err := s.Save(&r); err != nil {
			t.Fatalf("Save %s: %v", r.ID, err)
		}
	}
	// Stray files are ignored.
	os.WriteFile(filepath.Join(s.BaseDir(), "notes.txt"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(s.BaseDir(), "broken.json"), []byte("{"), 0o644)

	list, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("List = %d reports, want 3", len(list))
	}
	if list[0].ID != "c" || list[2].ID != "a" {
		t.Errorf("order = %s,%s,%s", list[0].ID, list[1].ID, list[2].ID)
	}

	latest, err := s.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.ID != "c" {
		t.Errorf("Latest = %s, want c", latest.ID)
	}
}

func TestRunReportFailed(t *testing.T) {
	ok := RunReport{Files: []FileReport{{Outcome: "clean"}, {Outcome: "fixed"}}}
	if ok.Failed() {
		t.Error("clean+fixed should not fail")
	}
	for _, outcome := range []string{"exhausted", "stalled", "errored"} {
		r := RunReport{Files: []FileReport{{Outcome: "clean"}, {Outcome: outcome}}}
		if !r.Failed() {
			t.Errorf("%s should fail the run", outcome)
		}
	}
}
